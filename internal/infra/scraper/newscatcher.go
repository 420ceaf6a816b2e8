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

	"golang.org/x/time/rate"
)

const newscatcherPageSize = 100

type newscatcherArticle struct {
	Link          string   `json:"link"`
	Title         string   `json:"title"`
	PublishedDate string   `json:"published_date"`
	Authors       []string `json:"authors"`
}

type newscatcherResponse struct {
	TotalHits int                  `json:"total_hits"`
	Articles  []newscatcherArticle `json:"articles"`
}

// NewsCatcherAdapter is the rate-limited commercial API Source Adapter:
// it paginates search results at 5 req/s and uses the same
// watermark-broadening rule as the Wayback adapter.
type NewsCatcherAdapter struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// NewNewsCatcherAdapter builds a NewsCatcherAdapter.
func NewNewsCatcherAdapter(cfg Config, client *http.Client, logger *slog.Logger) *NewsCatcherAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsCatcherAdapter{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.SourceAdapterConfig("newscatcher")),
		limiter:        rate.NewLimiter(rate.Limit(5), 1),
		logger:         logger,
	}
}

// Name implements ingest.Adapter.
func (a *NewsCatcherAdapter) Name() entity.Source { return entity.SourceNewsCatcher }

// Iterate implements ingest.Adapter.
func (a *NewsCatcherAdapter) Iterate(ctx context.Context, project entity.Project, window ingest.Window, cursor ingest.Cursor) <-chan ingest.AdapterResult {
	out := make(chan ingest.AdapterResult)

	go func() {
		defer close(out)

		if !project.HasCountry() {
			return
		}

		start, end := waybackDateWindow(cursor.LastPublishDate)
		emitted := 0
		page := 1
		totalHits := -1

		for {
			if err := a.limiter.Wait(ctx); err != nil {
				return
			}

			resp, err := a.fetchPage(ctx, project, start, end, page)
			if err != nil {
				a.logger.Error("newscatcher adapter: skipping project after decode/request failure",
					slog.Int64("project_id", project.ID), slog.Any("error", err))
				return
			}
			totalHits = resp.TotalHits

			for _, item := range resp.Articles {
				candidate := newscatcherToCandidate(project, item)
				select {
				case out <- ingest.AdapterResult{Candidate: candidate}:
				case <-ctx.Done():
					return
				}
				emitted++
				if emitted >= a.cfg.MaxStoriesPerProjectNewsCatcher {
					return
				}
			}

			pageCount := (totalHits + newscatcherPageSize - 1) / newscatcherPageSize
			if page >= pageCount || len(resp.Articles) == 0 {
				return
			}
			page++
		}
	}()

	return out
}

func newscatcherToCandidate(project entity.Project, item newscatcherArticle) entity.CandidateArticle {
	publishDate, _ := time.Parse("2006-01-02 15:04:05", item.PublishedDate)
	domain := canonicalDomain(item.Link)
	return entity.CandidateArticle{
		Source:          entity.SourceNewsCatcher,
		URL:             item.Link,
		Title:           item.Title,
		Language:        project.Language,
		PublishDate:     publishDate,
		MediaURL:        domain,
		MediaName:       domain,
		ProjectID:       project.ID,
		LanguageModelID: project.LanguageModelID,
	}
}

func (a *NewsCatcherAdapter) fetchPage(ctx context.Context, project entity.Project, start, end time.Time, page int) (*newscatcherResponse, error) {
	values := url.Values{}
	values.Set("q", project.SearchTerms)
	values.Set("lang", project.Language)
	values.Set("countries", strings.ReplaceAll(project.Country, " ", ""))
	values.Set("page_size", strconv.Itoa(newscatcherPageSize))
	values.Set("from", start.Format("2006-01-02"))
	values.Set("to", end.Format("2006-01-02"))
	values.Set("page", strconv.Itoa(page))

	reqURL := a.cfg.NewsCatcherBaseURL + "/search?" + values.Encode()

	var resp newscatcherResponse
	err := retry.WithBackoff(ctx, retry.NewsCatcherConfig(), func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("x-api-key", a.cfg.NewsCatcherAPIKey)
			httpResp, err := a.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer func() { _ = httpResp.Body.Close() }()

			body, err := io.ReadAll(httpResp.Body)
			if err != nil {
				return nil, err
			}
			if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
				return nil, &retry.HTTPError{StatusCode: httpResp.StatusCode, Message: string(body)}
			}
			return body, nil
		})
		if err != nil {
			return err
		}
		if jsonErr := json.Unmarshal(result.([]byte), &resp); jsonErr != nil {
			return fmt.Errorf("decode newscatcher response: %w", jsonErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
