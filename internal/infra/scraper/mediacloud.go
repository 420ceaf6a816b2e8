package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
	"story-processor/internal/usecase/ingest"
)

// mediaCloudStory mirrors the fields of a single story as returned by the
// full-text index's story list endpoint.
type mediaCloudStory struct {
	StoriesID   int64  `json:"stories_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Language    string `json:"language"`
	PublishDate string `json:"publish_date"`
	MediaID     int64  `json:"media_id"`
	MediaName   string `json:"media_name"`
	MediaURL    string `json:"media_url"`
}

type mediaCloudPage struct {
	Stories []mediaCloudStory `json:"stories"`
}

// MediaCloudAdapter is the full-text index Source Adapter:
// it paginates by an opaque "last processed" integer cursor, filtering by
// search terms, language, collection ids, and a start-date clause.
type MediaCloudAdapter struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *slog.Logger
}

// NewMediaCloudAdapter builds a MediaCloudAdapter over the given HTTP
// client and config.
func NewMediaCloudAdapter(cfg Config, client *http.Client, logger *slog.Logger) *MediaCloudAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaCloudAdapter{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.SourceAdapterConfig("mediacloud")),
		logger:         logger,
	}
}

// Name implements ingest.Adapter.
func (a *MediaCloudAdapter) Name() entity.Source { return entity.SourceMediaCloud }

// Iterate implements ingest.Adapter. The returned channel is closed once
// the per-run cap is hit, a page comes back empty, or a non-retryable
// error occurs; in the error case a final AdapterResult carries Err so
// the Scheduler knows the cursor was not advanced past that point.
func (a *MediaCloudAdapter) Iterate(ctx context.Context, project entity.Project, window ingest.Window, cursor ingest.Cursor) <-chan ingest.AdapterResult {
	out := make(chan ingest.AdapterResult)

	go func() {
		defer close(out)

		lastID := cursor.LastProcessedID
		emitted := 0
		for emitted < a.cfg.MaxStoriesPerProjectFulltext {
			page, err := a.fetchPage(ctx, project, window, lastID)
			if err != nil {
				a.logger.Warn("mediacloud adapter: page fetch failed",
					slog.Int64("project_id", project.ID), slog.Any("error", err))
				out <- ingest.AdapterResult{Err: &entity.TransientSourceError{Source: entity.SourceMediaCloud, Err: err}}
				return
			}
			if len(page.Stories) == 0 {
				return
			}

			for _, s := range page.Stories {
				candidate, ok := a.toCandidate(project, s)
				if !ok {
					continue
				}
				select {
				case out <- ingest.AdapterResult{Candidate: candidate}:
				case <-ctx.Done():
					return
				}
				emitted++
				lastID = s.StoriesID
				if emitted >= a.cfg.MaxStoriesPerProjectFulltext {
					return
				}
			}
		}
	}()

	return out
}

func (a *MediaCloudAdapter) toCandidate(project entity.Project, s mediaCloudStory) (entity.CandidateArticle, bool) {
	if s.URL == "" {
		return entity.CandidateArticle{}, false
	}
	publishDate, _ := time.Parse(time.RFC3339, s.PublishDate)

	mediaURL := s.MediaURL
	if mediaURL == "" {
		mediaURL = s.MediaName
	}

	return entity.CandidateArticle{
		Source:          entity.SourceMediaCloud,
		URL:             s.URL,
		Title:           s.Title,
		Language:        s.Language,
		PublishDate:     publishDate,
		MediaURL:        mediaURL,
		MediaName:       s.MediaName,
		ProjectID:       project.ID,
		LanguageModelID: project.LanguageModelID,
		SourceStoriesID: s.StoriesID,
	}, true
}

func (a *MediaCloudAdapter) fetchPage(ctx context.Context, project entity.Project, window ingest.Window, lastID int64) (*mediaCloudPage, error) {
	q := buildMediaCloudQuery(project)

	start := window.Start
	if project.StartDate.After(start) {
		start = project.StartDate
	}

	values := url.Values{}
	values.Set("q", q)
	values.Set("key", a.cfg.MediaCloudAPIKey)
	values.Set("last_processed_stories_id", strconv.FormatInt(lastID, 10))
	values.Set("rows", "100")
	values.Set("start_date", start.Format("2006-01-02"))
	values.Set("end_date", window.End.Format("2006-01-02"))

	reqURL := a.cfg.MediaCloudBaseURL + "/stories_public/list?" + values.Encode()

	var page mediaCloudPage
	err := retry.WithBackoff(ctx, retry.MediaCloudConfig(), func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			resp, err := a.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
			}
			return body, nil
		})
		if err != nil {
			return err
		}
		return json.Unmarshal(result.([]byte), &page)
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// buildMediaCloudQuery composes the boolean query from search terms and
// the project's configured collection ids, mirroring the corresponding
// archive-adapter query builder minus the domain clause,
// since the full-text index filters by collection id directly.
func buildMediaCloudQuery(project entity.Project) string {
	q := fmt.Sprintf("(%s) AND language:%s", project.SearchTerms, project.Language)
	if len(project.MediaCollections) == 0 {
		return q
	}
	clauses := make([]string, 0, len(project.MediaCollections))
	for _, cid := range project.MediaCollections {
		clauses = append(clauses, fmt.Sprintf("tags_id_media:%s", cid))
	}
	return fmt.Sprintf("%s AND (%s)", q, strings.Join(clauses, " OR "))
}
