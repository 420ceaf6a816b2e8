// Package poster implements the Result Publisher's transport: posting
// above-threshold story batches to a project's update_post_url and
// classifying the response into retry or drop outcomes.
package poster

import (
	"time"

	"story-processor/pkg/config"
)

// Config holds the Result Publisher's settings, loaded once at process
// startup.
type Config struct {
	// Version is posted in every batch's PostPayload.Version (env VERSION).
	Version string

	// APIKey is posted in every batch's PostPayload.APIKey, the same
	// credential the Config Client uses (env FEMINICIDE_API_KEY).
	APIKey string

	// Timeout bounds one POST to a project's update_post_url. Central
	// server posts may legitimately take longer than other calls in this
	// system.
	Timeout time.Duration
}

// DefaultConfig returns sane defaults for every field except APIKey, which
// must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Version: "dev",
		Timeout: 10 * time.Minute,
	}
}

// LoadConfigFromEnv builds a Config from the process environment.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Version = config.GetEnvString("VERSION", cfg.Version)
	cfg.APIKey = config.GetEnvString("FEMINICIDE_API_KEY", "")
	cfg.Timeout = config.GetEnvDuration("CENTRAL_SERVER_POST_TIMEOUT", cfg.Timeout)
	return cfg
}
