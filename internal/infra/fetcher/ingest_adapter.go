package fetcher

import (
	"context"

	"story-processor/internal/domain/entity"
	"story-processor/internal/usecase/ingest"
)

// extractorPort is the subset of CachedExtractor's behavior IngestExtractor
// wraps. Defined locally so tests can substitute a fake without building a
// real ReadabilityFetcher/LRU cache.
type extractorPort interface {
	Extract(ctx context.Context, url string) (*ExtractedArticle, error)
}

// IngestExtractor adapts a CachedExtractor (whose result type is local to
// this package, see ExtractedArticle's doc comment) to ingest.Extractor,
// the Scheduler's Content Extractor port. It exists only to perform
// that type conversion; all real extraction logic lives in
// ReadabilityFetcher and CachedExtractor.
type IngestExtractor struct {
	inner extractorPort
}

// NewIngestExtractor wraps inner as an ingest.Extractor.
func NewIngestExtractor(inner extractorPort) *IngestExtractor {
	return &IngestExtractor{inner: inner}
}

// Extract implements ingest.Extractor. A failure is wrapped as
// *entity.ExtractionError so the Scheduler can downgrade it to
// EXTRACTION_FAILED without aborting the rest of the batch.
func (e *IngestExtractor) Extract(ctx context.Context, url string) (*ingest.ExtractedArticle, error) {
	article, err := e.inner.Extract(ctx, url)
	if err != nil {
		return nil, &entity.ExtractionError{URL: url, Err: err}
	}
	out := ingest.ExtractedArticle{
		Text:            article.Text,
		Title:           article.Title,
		PublishDate:     article.PublishDate,
		Language:        article.Language,
		CanonicalDomain: article.CanonicalDomain,
	}
	return &out, nil
}
