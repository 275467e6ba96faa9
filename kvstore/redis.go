package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments that want ledger
// state to survive a process restart. The kernel places no correctness
// requirement on this beyond same-process read-after-write; Redis is one
// pluggable KV backend among several, not a hard dependency (spec.md §6).
type RedisStore struct {
	c      *redis.Client
	ctx    context.Context
	cancel func()
}

// NewRedisStore creates a Redis-backed Store from a redis:// URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	c := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{c: c, ctx: context.Background()}, nil
}

func (r *RedisStore) Get(key string) (string, bool) {
	v, err := r.c.Get(r.ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		// Persistence failures are swallowed per spec.md §4.2 — reads
		// never throw, they return the zero value.
		return "", false
	}
	return v, true
}

func (r *RedisStore) Set(key, value string) {
	_ = r.c.Set(r.ctx, key, value, 0).Err()
}

func (r *RedisStore) Remove(key string) {
	_ = r.c.Del(r.ctx, key).Err()
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.c.Close()
}
