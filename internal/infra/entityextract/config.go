// Package entityextract implements the optional Entity Extractor: a
// thin HTTP client over a configured named-entity-recognition service,
// filtering its output to the accepted entity types.
package entityextract

import (
	"time"

	"story-processor/pkg/config"
)

// Config holds the Entity Extractor's settings.
type Config struct {
	// ServerURL is the entity server's base URL (env ENTITY_SERVER_URL).
	// Empty means the feature is unconfigured: Client.Entities always
	// returns a nil list without making a call.
	ServerURL string

	Timeout time.Duration
}

// DefaultConfig returns sane defaults for every field except ServerURL.
func DefaultConfig() Config {
	return Config{Timeout: 30 * time.Second}
}

// LoadConfigFromEnv builds a Config from the process environment.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ServerURL = config.GetEnvString("ENTITY_SERVER_URL", "")
	cfg.Timeout = config.GetEnvDuration("ENTITY_SERVER_TIMEOUT", cfg.Timeout)
	return cfg
}

// Configured reports whether a server URL was provided. An unconfigured
// service is not an error, it simply disables the feature.
func (c Config) Configured() bool {
	return c.ServerURL != ""
}
