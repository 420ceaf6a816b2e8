// Package model implements the Model Registry & Classifier: it
// downloads classifier artifacts from URLs named in the model catalog,
// materializes them under a deterministic on-disk layout, and evaluates a
// project's (possibly chained) classifier against article text.
package model

import (
	"time"

	"story-processor/pkg/config"
)

// Config controls where artifacts live on disk and how long a single
// artifact download may take.
type Config struct {
	// ModelDir is the root directory model/vectorizer artifacts are
	// stored under (files/models by convention).
	ModelDir string

	// DownloadTimeout bounds a single artifact download.
	DownloadTimeout time.Duration

	// EmbeddingLanguages is the set of language buckets embeddings
	// vectorizers are materialized into (embeddings-{bucket}/). A
	// project's language maps to "en" when it equals "en", and to
	// "multi" otherwise; this list only controls which buckets
	// RefreshModels populates up front.
	EmbeddingLanguages []string
}

// DefaultConfig returns the conventional artifact layout.
func DefaultConfig() Config {
	return Config{
		ModelDir:           "files/models",
		DownloadTimeout:    5 * time.Minute,
		EmbeddingLanguages: []string{"en", "multi"},
	}
}

// LoadConfigFromEnv builds a Config from the process environment.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ModelDir = config.GetEnvString("MODEL_DIR", cfg.ModelDir)
	cfg.DownloadTimeout = config.GetEnvDuration("MODEL_DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	return cfg
}

// LanguageBucket maps a project's language to the embeddings
// subdirectory it is served from (: "embeddings-en/",
// "embeddings-multi/").
func LanguageBucket(language string) string {
	if language == "en" {
		return "en"
	}
	return "multi"
}
