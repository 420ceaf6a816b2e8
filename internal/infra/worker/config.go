package worker

import (
	"fmt"
	"log/slog"
	"time"

	"story-processor/internal/pkg/config"
)

// WorkerConfig holds the configuration for the queue-consumer worker:
// how many jobs it processes at once, how it paces polling and lease
// maintenance, and where its health endpoint listens.
//
// Configuration sources:
//   - Environment variables (loaded via LoadConfigFromEnv)
//   - Default values (provided by DefaultConfig)
//
// All fields have sensible defaults and validation rules to ensure
// the worker can operate safely even with invalid or missing configuration.
//
// Example usage:
//
//	// Use defaults
//	config := DefaultConfig()
//
//	// Load from environment with fallback
//	config, err := LoadConfigFromEnv(logger, metrics)
//	if err != nil {
//	    // This should never happen with fail-open strategy
//	    log.Fatal("Unexpected configuration error: %v", err)
//	}
type WorkerConfig struct {
	// Concurrency is the number of goroutines consuming the task queue.
	// Each goroutine processes one classify-and-post job at a time.
	// Range: 1-64
	// Default: 8
	Concurrency int

	// PollInterval is how long a consumer sleeps after finding the queue
	// empty before polling again.
	// Must be positive (> 0)
	// Default: 2 seconds
	PollInterval time.Duration

	// ReapInterval is how often the maintenance goroutine promotes ready
	// delayed jobs and reclaims leases abandoned by crashed workers.
	// Must be positive (> 0)
	// Default: 30 seconds
	ReapInterval time.Duration

	// JobTimeout bounds one classify-and-post job end to end, including
	// the central-server post with its internal retries.
	// Must be positive (> 0)
	// Default: 5 minutes
	JobTimeout time.Duration

	// NotifyMaxConcurrent is the maximum number of concurrent notification
	// operations across channels.
	// Range: 1-100
	// Default: 10
	NotifyMaxConcurrent int

	// HealthPort is the port number for the health check HTTP server.
	// Range: 1024-65535 (avoid privileged ports)
	// Default: 9091
	HealthPort int
}

// DefaultConfig returns a WorkerConfig with sensible default values.
// These defaults are optimized for:
//   - Throughput: 8 consumers cover typical per-run batch volumes
//   - Safety: a 5-minute job timeout prevents stuck jobs from holding leases
//   - Responsiveness: 2-second polling keeps queue latency low without
//     hammering the broker
//   - Standard ports: 9091 for health checks (common Prometheus exporter port)
//
// Returns:
//   - WorkerConfig with production-ready default values
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:         8,
		PollInterval:        2 * time.Second,
		ReapInterval:        30 * time.Second,
		JobTimeout:          5 * time.Minute,
		NotifyMaxConcurrent: 10,
		HealthPort:          9091,
	}
}

// Validate checks if the configuration values are valid.
// This method validates each field using the reusable validators from
// internal/pkg/config. If multiple fields are invalid, all errors are
// collected and returned together.
//
// Validation rules:
//   - Concurrency: Must be between 1 and 64 (inclusive)
//   - PollInterval: Must be positive (> 0)
//   - ReapInterval: Must be positive (> 0)
//   - JobTimeout: Must be positive (> 0)
//   - NotifyMaxConcurrent: Must be between 1 and 100 (inclusive)
//   - HealthPort: Must be between 1024 and 65535 (avoid privileged ports)
//
// Returns:
//   - error: nil if configuration is valid, aggregated error if any validation fails
func (c *WorkerConfig) Validate() error {
	var errors []error

	// Validate Concurrency
	if err := config.ValidateIntRange(c.Concurrency, 1, 64); err != nil {
		errors = append(errors, fmt.Errorf("concurrency: %w", err))
	}

	// Validate PollInterval (must be positive)
	if err := config.ValidatePositiveDuration(c.PollInterval); err != nil {
		errors = append(errors, fmt.Errorf("poll interval: %w", err))
	}

	// Validate ReapInterval (must be positive)
	if err := config.ValidatePositiveDuration(c.ReapInterval); err != nil {
		errors = append(errors, fmt.Errorf("reap interval: %w", err))
	}

	// Validate JobTimeout (must be positive)
	if err := config.ValidatePositiveDuration(c.JobTimeout); err != nil {
		errors = append(errors, fmt.Errorf("job timeout: %w", err))
	}

	// Validate NotifyMaxConcurrent (range: 1-100)
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 100); err != nil {
		errors = append(errors, fmt.Errorf("notify max concurrent: %w", err))
	}

	// Validate HealthPort (range: 1024-65535)
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}

	// Return aggregated errors
	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables
// with validation and automatic fallback to default values on failure.
//
// This function implements the fail-open strategy:
//  1. Start with DefaultConfig() as base
//  2. Load each field from environment variables
//  3. Validate each loaded value
//  4. If validation fails: use default value, log warning, increment metrics
//  5. Never return error - always return a valid configuration
//
// Environment variables:
//   - WORKER_CONCURRENCY: Integer 1-64 (default: 8)
//   - WORKER_POLL_INTERVAL: Duration string, e.g., "2s" (default: 2 seconds)
//   - WORKER_REAP_INTERVAL: Duration string, e.g., "30s" (default: 30 seconds)
//   - WORKER_JOB_TIMEOUT: Duration string, e.g., "5m" (default: 5 minutes)
//   - NOTIFY_MAX_CONCURRENT: Integer 1-100 (default: 10)
//   - WORKER_HEALTH_PORT: Integer 1024-65535 (default: 9091)
//
// Metrics updated:
//   - ValidationErrorsTotal: Incremented for each validation failure
//   - FallbacksTotal: Incremented for each fallback applied
//   - FallbackActive: Set to 1 if any fallback is active, 0 otherwise
//   - LoadTimestamp: Set to current time after successful load
//
// Parameters:
//   - logger: Structured logger for warnings
//   - metrics: Metrics instance for tracking fallbacks
//
// Returns:
//   - *WorkerConfig: Valid configuration (never nil)
//   - error: Always nil (fail-open strategy)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	// Start with default config
	cfg := DefaultConfig()
	fallbackApplied := false

	// Load Concurrency
	result := config.LoadEnvInt("WORKER_CONCURRENCY", cfg.Concurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 64)
	})
	cfg.Concurrency = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("concurrency")
		metrics.RecordFallback("concurrency", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "Concurrency"),
				slog.String("warning", warning))
		}
	}

	// Load PollInterval
	result = config.LoadEnvDuration("WORKER_POLL_INTERVAL", cfg.PollInterval, config.ValidatePositiveDuration)
	cfg.PollInterval = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("poll_interval")
		metrics.RecordFallback("poll_interval", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "PollInterval"),
				slog.String("warning", warning))
		}
	}

	// Load ReapInterval
	result = config.LoadEnvDuration("WORKER_REAP_INTERVAL", cfg.ReapInterval, config.ValidatePositiveDuration)
	cfg.ReapInterval = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("reap_interval")
		metrics.RecordFallback("reap_interval", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "ReapInterval"),
				slog.String("warning", warning))
		}
	}

	// Load JobTimeout (with 10s-30m range limit)
	result = config.LoadEnvDuration("WORKER_JOB_TIMEOUT", cfg.JobTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 10*time.Second, 30*time.Minute)
	})
	cfg.JobTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("job_timeout")
		metrics.RecordFallback("job_timeout", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "JobTimeout"),
				slog.String("warning", warning))
		}
	}

	// Load NotifyMaxConcurrent
	result = config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	cfg.NotifyMaxConcurrent = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("notify_max_concurrent")
		metrics.RecordFallback("notify_max_concurrent", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "NotifyMaxConcurrent"),
				slog.String("warning", warning))
		}
	}

	// Load HealthPort
	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	if result.FallbackApplied {
		fallbackApplied = true
		metrics.RecordValidationError("health_port")
		metrics.RecordFallback("health_port", "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", "HealthPort"),
				slog.String("warning", warning))
		}
	}

	// Update metrics
	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	// Always return valid config (fail-open strategy)
	return &cfg, nil
}
