// Package scraper implements the Source Adapters: one adapter per
// external story source (full-text index, web archive, RSS push feed,
// rate-limited commercial API), each satisfying ingest.Adapter.
package scraper

import (
	"time"

	"story-processor/pkg/config"
)

// Config carries the per-source tunables every adapter exposes as
// configurable.
type Config struct {
	// MediaCloudBaseURL/APIKey address the full-text index adapter.
	MediaCloudBaseURL string
	MediaCloudAPIKey  string
	// MaxStoriesPerProjectFulltext caps the mediacloud adapter per run.
	MaxStoriesPerProjectFulltext int

	// WaybackBaseURL addresses the archive adapter's search API.
	WaybackBaseURL string
	// MaxStoriesPerProjectArchive caps the wayback adapter per run.
	MaxStoriesPerProjectArchive int

	// NewsCatcherBaseURL/APIKey address the rate-limited commercial adapter.
	NewsCatcherBaseURL string
	NewsCatcherAPIKey  string
	// MaxStoriesPerProjectNewsCatcher caps the newscatcher adapter per run.
	MaxStoriesPerProjectNewsCatcher int
}

// DefaultConfig returns the built-in defaults; BaseURL/APIKey fields
// are left blank and must come from the environment.
func DefaultConfig() Config {
	return Config{
		MediaCloudBaseURL:               "https://search.mediacloud.org/api/v2",
		MaxStoriesPerProjectFulltext:    40000,
		WaybackBaseURL:                  "https://api.mediacloud.org/api/wayback",
		MaxStoriesPerProjectArchive:     5000,
		NewsCatcherBaseURL:              "https://api.newscatcherapi.com/v2",
		MaxStoriesPerProjectNewsCatcher: 5000,
	}
}

// LoadConfigFromEnv overlays DefaultConfig with values from the
// environment, falling back to defaults with a warning on bad values
// idiom rather than failing outright (credentials are validated lazily,
// the first time an adapter actually needs them).
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.MediaCloudBaseURL = config.GetEnvString("MEDIACLOUD_BASE_URL", cfg.MediaCloudBaseURL)
	cfg.MediaCloudAPIKey = config.GetEnvString("MEDIACLOUD_API_KEY", "")
	cfg.MaxStoriesPerProjectFulltext = config.GetEnvInt("MAX_STORIES_PER_PROJECT_FULLTEXT", cfg.MaxStoriesPerProjectFulltext)

	cfg.WaybackBaseURL = config.GetEnvString("WAYBACK_BASE_URL", cfg.WaybackBaseURL)
	cfg.MaxStoriesPerProjectArchive = config.GetEnvInt("MAX_STORIES_PER_PROJECT_ARCHIVE", cfg.MaxStoriesPerProjectArchive)

	cfg.NewsCatcherBaseURL = config.GetEnvString("NEWSCATCHER_BASE_URL", cfg.NewsCatcherBaseURL)
	cfg.NewsCatcherAPIKey = config.GetEnvString("NEWSCATCHER_API_KEY", "")
	cfg.MaxStoriesPerProjectNewsCatcher = config.GetEnvInt("MAX_STORIES_PER_PROJECT_NEWSCATCHER", cfg.MaxStoriesPerProjectNewsCatcher)

	return cfg
}

const (
	defaultDayOffset = 4 * 24 * time.Hour
	defaultDayWindow = 3 * 24 * time.Hour
)
