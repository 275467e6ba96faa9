// Package clock implements the per-scope monotonic logical clock (spec.md §4.1).
package clock

import (
	"fmt"
	"strconv"

	"github.com/relaxingmusicstudio/pipe-profit-pilot/services/kernel/kvstore"
)

const namespace = "ppp"

// Clock allocates "<prefix><n>" timestamps for one ledger family. Each
// ledger family owns a distinct prefix so timestamps are total within
// the family; ordering across families is not defined.
type Clock struct {
	store  kvstore.Store
	family string
	prefix string
}

// New returns a Clock for the given ledger family (used to namespace the
// persisted counter) stamping with prefix.
func New(store kvstore.Store, family, prefix string) *Clock {
	return &Clock{store: store, family: family, prefix: prefix}
}

func (c *Clock) key(scope string) string {
	return fmt.Sprintf("%s:%sClock:v1::%s", namespace, c.family, scope)
}

// Next increments the counter for scope and returns the new stamp. If the
// persisted value is missing or unparsable, the counter resets to 1.
func (c *Clock) Next(scope string) string {
	key := c.key(scope)
	n := 0
	if raw, ok := c.store.Get(key); ok {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}
	n++
	c.store.Set(key, strconv.Itoa(n))
	return fmt.Sprintf("%s%d", c.prefix, n)
}
