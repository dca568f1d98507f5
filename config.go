package trigger

import (
	"os"
	"strconv"
	"time"
)

// Environment variables honored by ConfigFromEnv.
const (
	// EnvHTTPPoolSize overrides Config.HTTPPoolSize.
	EnvHTTPPoolSize = "EVENTS_HTTP_POOL_SIZE"

	// EnvFetchIntervalMS overrides Config.FetchInterval, in milliseconds.
	EnvFetchIntervalMS = "EVENTS_FETCH_INTERVAL_MS"
)

// Config holds the configuration for a Trigger instance.
type Config struct {
	// HTTPPoolSize caps concurrent outbound webhook calls across both
	// worker loops.
	HTTPPoolSize int

	// FetchInterval is how long the event loop idles after a non-full
	// lease batch.
	FetchInterval time.Duration

	// ScheduledInterval is the scheduled loop's cycle period.
	ScheduledInterval time.Duration

	// BatchSize is the lease batch size for both queues.
	BatchSize int

	// Horizon is how many upcoming events the materializer keeps per cron
	// trigger.
	Horizon int

	// SnapshotCacheTTL bounds staleness of the shared registry snapshot
	// when a KV cache is configured. Zero means no TTL bound.
	SnapshotCacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTPPoolSize:      100,
		FetchInterval:     1 * time.Second,
		ScheduledInterval: 60 * time.Second,
		BatchSize:         100,
		Horizon:           100,
		SnapshotCacheTTL:  30 * time.Second,
	}
}

// ConfigFromEnv returns DefaultConfig with environment overrides applied.
// Unset or unparseable values keep the default.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv(EnvHTTPPoolSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPoolSize = n
		}
	}
	if v := os.Getenv(EnvFetchIntervalMS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchInterval = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}
