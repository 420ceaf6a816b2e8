package fetcher

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"story-processor/internal/observability/metrics"
)

// extractor is the subset of ReadabilityFetcher's behavior CachedExtractor
// wraps. Defined locally so tests can substitute a fake.
type extractor interface {
	Extract(ctx context.Context, url string) (*ExtractedArticle, error)
}

// CachedExtractor wraps an extractor with an LRU cache keyed by URL, so a
// story seen by more than one source adapter in the same run (or a
// re-queued job) doesn't re-fetch and re-parse the same page.
type CachedExtractor struct {
	inner extractor
	cache *lru.Cache[string, ExtractedArticle]
}

// NewCachedExtractor builds a CachedExtractor with the given capacity
// (spec default ~50,000 entries).
func NewCachedExtractor(inner extractor, capacity int) (*CachedExtractor, error) {
	cache, err := lru.New[string, ExtractedArticle](capacity)
	if err != nil {
		return nil, fmt.Errorf("create content extraction cache: %w", err)
	}
	return &CachedExtractor{inner: inner, cache: cache}, nil
}

// Extract returns the cached result for url if present, otherwise
// delegates to the wrapped extractor and populates the cache on success.
func (c *CachedExtractor) Extract(ctx context.Context, url string) (*ExtractedArticle, error) {
	if article, ok := c.cache.Get(url); ok {
		metrics.RecordContentFetchCacheHit()
		out := article
		return &out, nil
	}

	article, err := c.inner.Extract(ctx, url)
	if err != nil {
		return nil, err
	}
	c.cache.Add(url, *article)
	return article, nil
}
