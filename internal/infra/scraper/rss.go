package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
	"story-processor/internal/usecase/ingest"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
)

// RSSAlertsAdapter is the RSS-style push Source Adapter: it
// parses the project's rss_url feed and stops at the first item whose
// (normalized) URL equals the watermark's last_url. No rate limiting is
// applied since these are client-configured feeds, not a shared API.
type RSSAlertsAdapter struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	logger         *slog.Logger
}

// NewRSSAlertsAdapter builds an RSSAlertsAdapter over the given HTTP client.
func NewRSSAlertsAdapter(client *http.Client, logger *slog.Logger) *RSSAlertsAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSAlertsAdapter{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retryConfig:    retry.FeedFetchConfig(),
		logger:         logger,
	}
}

// Name implements ingest.Adapter.
func (a *RSSAlertsAdapter) Name() entity.Source { return entity.SourceRSSAlerts }

// Iterate implements ingest.Adapter.
func (a *RSSAlertsAdapter) Iterate(ctx context.Context, project entity.Project, window ingest.Window, cursor ingest.Cursor) <-chan ingest.AdapterResult {
	out := make(chan ingest.AdapterResult)

	go func() {
		defer close(out)

		if !project.RequiresRSS() {
			return
		}

		feed, err := a.fetchFeed(ctx, project.RSSURL)
		if err != nil {
			a.logger.Warn("rss-alerts adapter: feed fetch failed",
				slog.Int64("project_id", project.ID), slog.Any("error", err))
			out <- ingest.AdapterResult{Err: &entity.TransientSourceError{Source: entity.SourceRSSAlerts, Err: err}}
			return
		}

		for _, item := range feed.Items {
			realURL := normalizeAlertLink(item.Link)
			if cursor.LastURL != "" && realURL == cursor.LastURL {
				return
			}

			publishDate := time.Now()
			if item.PublishedParsed != nil {
				publishDate = *item.PublishedParsed
			}

			candidate := entity.CandidateArticle{
				Source:          entity.SourceRSSAlerts,
				URL:             realURL,
				Title:           item.Title,
				Language:        project.Language,
				PublishDate:     publishDate,
				MediaURL:        canonicalDomain(realURL),
				MediaName:       canonicalDomain(realURL),
				ProjectID:       project.ID,
				LanguageModelID: project.LanguageModelID,
			}

			select {
			case out <- ingest.AdapterResult{Candidate: candidate}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// normalizeAlertLink unwraps a redirector link (e.g. Google Alerts) by
// parsing its wrapped "url" query parameter; links that aren't wrapped
// pass through unchanged.
func normalizeAlertLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	wrapped := parsed.Query().Get("url")
	if wrapped == "" {
		return link
	}
	return wrapped
}

func canonicalDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func (a *RSSAlertsAdapter) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed
	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, feedURL)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				a.logger.Warn("rss-alerts circuit breaker open, request rejected",
					slog.String("url", feedURL), slog.String("state", a.circuitBreaker.State().String()))
			}
			return err
		}
		feed = result.(*gofeed.Feed)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return feed, nil
}

func (a *RSSAlertsAdapter) doFetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "StoryProcessorBot"
	fp.Client = a.client
	return fp.ParseURLWithContext(feedURL, ctx)
}
