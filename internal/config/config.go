// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime tunable for the service. All values come from
// environment variables (godotenv loads a .env file in main) with sensible
// defaults for local development.
type Config struct {
	Port string

	// Room lifecycle.
	SweepInterval     time.Duration // how often the registry sweep runs
	EmptyGracePeriod  time.Duration // empty rooms older than this are deleted
	InactivityTimeout time.Duration // untouched rooms older than this are deleted

	// Auction pacing.
	BidTimer     time.Duration // bidding window per lot before the host may resolve
	AdvanceDelay time.Duration // pause on the sold screen before the next lot opens

	RedisAddr string
	RedisDB   int
}

// Load reads the full configuration from the environment.
func Load() Config {
	return Config{
		Port:              GetEnv("CREASE_PORT", "8080"),
		SweepInterval:     GetEnvDuration("ROOM_SWEEP_INTERVAL", time.Minute),
		EmptyGracePeriod:  GetEnvDuration("ROOM_EMPTY_GRACE", 2*time.Minute),
		InactivityTimeout: GetEnvDuration("ROOM_INACTIVITY_TIMEOUT", 30*time.Minute),
		BidTimer:          GetEnvDuration("AUCTION_BID_TIMER", 15*time.Second),
		AdvanceDelay:      GetEnvDuration("AUCTION_ADVANCE_DELAY", 4*time.Second),
		RedisAddr:         GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:           GetEnvInt("REDIS_DB", 0),
	}
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt is a helper to parse an environment variable as integer, else a default value.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// GetEnvDuration is a helper to parse an environment variable as a duration
// (e.g. "30s", "5m"), else a default value.
func GetEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
