// Package queue implements the Task Queue & Workers: a durable,
// at-least-once job queue backed by Redis, using the LPUSH/LMOVE
// "reliable queue" pattern (the non-deprecated successor to
// BRPOPLPUSH) plus a lease-based reaper that recovers jobs whose worker
// crashed mid-processing.
package queue

import (
	"time"

	"story-processor/pkg/config"
)

// Config holds the Task Queue's settings.
type Config struct {
	// RedisURL addresses the broker (env BROKER_URL).
	RedisURL string

	// KeyPrefix namespaces every queue key, so multiple environments can
	// share one Redis instance.
	KeyPrefix string

	// LeaseTimeout bounds how long a job may sit in the processing list
	// before the reaper considers its worker dead and reclaims it.
	LeaseTimeout time.Duration

	// MaxAttempts caps retries on transient failure before a job is
	// moved to the dead-letter list.
	MaxAttempts int

	// BaseRetryDelay is the first backoff delay applied to a retried
	// job; each subsequent retry doubles it, capped at MaxRetryDelay.
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      "story-processor:",
		LeaseTimeout:   10 * time.Minute,
		MaxAttempts:    5,
		BaseRetryDelay: 30 * time.Second,
		MaxRetryDelay:  30 * time.Minute,
	}
}

// LoadConfigFromEnv builds a Config from the process environment.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.RedisURL = config.GetEnvString("BROKER_URL", "")
	cfg.KeyPrefix = config.GetEnvString("QUEUE_KEY_PREFIX", cfg.KeyPrefix)
	cfg.LeaseTimeout = config.GetEnvDuration("QUEUE_LEASE_TIMEOUT", cfg.LeaseTimeout)
	cfg.MaxAttempts = config.GetEnvInt("QUEUE_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BaseRetryDelay = config.GetEnvDuration("QUEUE_BASE_RETRY_DELAY", cfg.BaseRetryDelay)
	cfg.MaxRetryDelay = config.GetEnvDuration("QUEUE_MAX_RETRY_DELAY", cfg.MaxRetryDelay)
	return cfg
}
