// Package config loads Revenue Kernel configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all kernel configuration values.
type Config struct {
	// Env names the deployment environment. logging.New always uses the
	// console writer; "development" selects debug level only when LogLevel
	// does not parse, since a valid LogLevel (default "info") takes precedence.
	Env string

	// KVBackend selects the kvstore.Store implementation: "memory" or "redis".
	KVBackend string
	RedisURL  string

	// Default PolicyContext applied by the demo/CLI wiring when the caller
	// supplies none.
	DefaultMode       string // OFFLINE | MOCK | LIVE
	DefaultTrustLevel int

	// Policy constitution: forbidden optimization terms (lowercased),
	// evaluated by the policy package's embedded Rego module.
	ForbiddenOptimizationTerms []string

	// Pod capacity defaults (C10).
	DefaultMaxConcurrentActions int
	DefaultRecoveryRate         int

	// Cooling thresholds (C11).
	CoolingDeferralThreshold int
	CoolingRepairThreshold   int

	// Throttle defaults (C9).
	ThrottleDailyCap  int
	ThrottleHourlyCap int
	ThrottleRampLimit int

	// Opportunity queue bound (C12).
	OpportunityMaxSize int

	// Capacity-energy limits (C13).
	EnergyPodLimit     int
	EnergyHumanLimit   int
	EnergyChannelLimit int
	EnergyDayLimit     int
	EnergyMinUnits     int

	// Chain depth cap (C14).
	ChainMaxDepth int

	// Retry decay base cooldown steps (C17).
	RetryBaseCooldownSteps int

	LogLevel string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                         getEnv("ENV", "development"),
		KVBackend:                   getEnv("KERNEL_KV_BACKEND", "memory"),
		RedisURL:                    getEnv("REDIS_URL", "redis://redis:6379"),
		DefaultMode:                 getEnv("KERNEL_DEFAULT_MODE", "MOCK"),
		DefaultTrustLevel:           getEnvInt("KERNEL_DEFAULT_TRUST_LEVEL", 1),
		ForbiddenOptimizationTerms:  getEnvList("KERNEL_FORBIDDEN_TERMS", defaultForbiddenTerms),
		DefaultMaxConcurrentActions: getEnvInt("KERNEL_POD_MAX_CONCURRENT", 5),
		DefaultRecoveryRate:         getEnvInt("KERNEL_POD_RECOVERY_RATE", 1),
		CoolingDeferralThreshold:    getEnvInt("KERNEL_COOLING_DEFERRAL_THRESHOLD", 3),
		CoolingRepairThreshold:      getEnvInt("KERNEL_COOLING_REPAIR_THRESHOLD", 6),
		ThrottleDailyCap:            getEnvInt("KERNEL_THROTTLE_DAILY_CAP", 50),
		ThrottleHourlyCap:           getEnvInt("KERNEL_THROTTLE_HOURLY_CAP", 10),
		ThrottleRampLimit:           getEnvInt("KERNEL_THROTTLE_RAMP_LIMIT", 5),
		OpportunityMaxSize:          getEnvInt("KERNEL_OPPORTUNITY_MAX_SIZE", 20),
		EnergyPodLimit:              getEnvInt("KERNEL_ENERGY_POD_LIMIT", 100),
		EnergyHumanLimit:            getEnvInt("KERNEL_ENERGY_HUMAN_LIMIT", 40),
		EnergyChannelLimit:          getEnvInt("KERNEL_ENERGY_CHANNEL_LIMIT", 60),
		EnergyDayLimit:              getEnvInt("KERNEL_ENERGY_DAY_LIMIT", 200),
		EnergyMinUnits:              getEnvInt("KERNEL_ENERGY_MIN_UNITS", 1),
		ChainMaxDepth:               getEnvInt("KERNEL_CHAIN_MAX_DEPTH", 3),
		RetryBaseCooldownSteps:      getEnvInt("KERNEL_RETRY_BASE_COOLDOWN_STEPS", 1),
		LogLevel:                    getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

var defaultForbiddenTerms = []string{"maximize engagement", "exploit loophole", "dark pattern"}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
