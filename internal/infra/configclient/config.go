// Package configclient implements the Config Client: it fetches the
// project and model catalog from the central server, caches the last good
// snapshot on disk, and serves a read-only in-process snapshot for the
// duration of one Scheduler run.
package configclient

import (
	"time"

	"story-processor/pkg/config"
)

// Config holds the Config Client's settings, loaded once at process
// startup and never mutated afterward.
type Config struct {
	// BaseURL is the central server's base URL (env FEMINICIDE_API_URL).
	BaseURL string

	// APIKey is appended to every request as ?apikey=… (env
	// FEMINICIDE_API_KEY).
	APIKey string

	// ConfigDir is where the last-good snapshots are written
	// (config/projects.json, config/language-models.json).
	ConfigDir string

	// Timeout bounds a single HTTP call to the central server.
	Timeout time.Duration
}

// DefaultConfig returns sane defaults for every field except BaseURL and
// APIKey, which must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		ConfigDir: "config",
		Timeout:   60 * time.Second,
	}
}

// LoadConfigFromEnv builds a Config from the process environment,
// with sane defaults for everything except the credentials.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = config.GetEnvString("FEMINICIDE_API_URL", "")
	cfg.APIKey = config.GetEnvString("FEMINICIDE_API_KEY", "")
	cfg.ConfigDir = config.GetEnvString("CONFIG_DIR", cfg.ConfigDir)
	cfg.Timeout = config.GetEnvDuration("CONFIG_CLIENT_TIMEOUT", cfg.Timeout)
	return cfg
}

// Validate checks that the fields required to reach the central server are
// present. Missing BaseURL/APIKey is a ConfigError at startup.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return &missingFieldError{Field: "FEMINICIDE_API_URL"}
	}
	if c.APIKey == "" {
		return &missingFieldError{Field: "FEMINICIDE_API_KEY"}
	}
	return nil
}

type missingFieldError struct{ Field string }

func (e *missingFieldError) Error() string {
	return "missing required configuration: " + e.Field
}
