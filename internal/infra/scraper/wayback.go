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
	"sync"
	"time"

	"story-processor/internal/domain/entity"
	"story-processor/internal/resilience/circuitbreaker"
	"story-processor/internal/resilience/retry"
	"story-processor/internal/usecase/ingest"
)

const maxWaybackQueryBytes = 16 * 1024

// waybackDomainCache resolves a project's media collection ids to
// publisher domains and caches the result for the lifetime of the
// process, mirroring the original adapter's on-disk cache
// without persisting across runs.
type waybackDomainCache struct {
	mu      sync.RWMutex
	domains map[string][]string
}

func newWaybackDomainCache() *waybackDomainCache {
	return &waybackDomainCache{domains: make(map[string][]string)}
}

type mediaCloudSource struct {
	Name string `json:"name"`
}

type mediaCloudSourceListPage struct {
	Results []mediaCloudSource `json:"results"`
	Next    *string            `json:"next"`
}

// WaybackAdapter is the archive Source Adapter.
type WaybackAdapter struct {
	cfg            Config
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *slog.Logger
	domains        *waybackDomainCache
}

// NewWaybackAdapter builds a WaybackAdapter.
func NewWaybackAdapter(cfg Config, client *http.Client, logger *slog.Logger) *WaybackAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WaybackAdapter{
		cfg:            cfg,
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.SourceAdapterConfig("wayback")),
		logger:         logger,
		domains:        newWaybackDomainCache(),
	}
}

// Name implements ingest.Adapter.
func (a *WaybackAdapter) Name() entity.Source { return entity.SourceWayback }

// Iterate implements ingest.Adapter.
func (a *WaybackAdapter) Iterate(ctx context.Context, project entity.Project, window ingest.Window, cursor ingest.Cursor) <-chan ingest.AdapterResult {
	out := make(chan ingest.AdapterResult)

	go func() {
		defer close(out)

		domains, err := a.domainsForProject(ctx, project)
		if err != nil {
			out <- ingest.AdapterResult{Err: &entity.TransientSourceError{Source: entity.SourceWayback, Err: err}}
			return
		}
		if len(domains) == 0 {
			return
		}

		start, end := waybackDateWindow(cursor.LastPublishDate)
		shards := shardQueries(project.SearchTerms, project.Language, domains)

		emitted := 0
		for _, shard := range shards {
			if err := a.iterateShard(ctx, project, shard, start, end, out, &emitted); err != nil {
				out <- ingest.AdapterResult{Err: &entity.TransientSourceError{Source: entity.SourceWayback, Err: err}}
				return
			}
			if emitted >= a.cfg.MaxStoriesPerProjectArchive {
				return
			}
		}
	}()

	return out
}

func (a *WaybackAdapter) iterateShard(ctx context.Context, project entity.Project, query string, start, end time.Time, out chan<- ingest.AdapterResult, emitted *int) error {
	page := 1
	for {
		stories, hasMore, err := a.fetchPage(ctx, query, start, end, page)
		if err != nil {
			return err
		}
		for _, s := range stories {
			candidate, ok := waybackToCandidate(project, s)
			if !ok {
				continue
			}
			select {
			case out <- ingest.AdapterResult{Candidate: candidate}:
			case <-ctx.Done():
				return nil
			}
			*emitted++
			if *emitted >= a.cfg.MaxStoriesPerProjectArchive {
				return nil
			}
		}
		if !hasMore || len(stories) == 0 {
			return nil
		}
		page++
	}
}

// waybackDateWindow computes the inclusive [start, end] scan window:
// end is now minus the processing-lag offset, start is end minus the
// scan width, broadened to cover any gap since the last watermark.
func waybackDateWindow(lastPublishDate time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	end := now.Add(-defaultDayOffset)
	start := end.Add(-(defaultDayOffset + defaultDayWindow))
	if !lastPublishDate.IsZero() {
		localStart := lastPublishDate.Add(-24 * time.Hour)
		if localStart.Before(start) {
			start = localStart
		}
	}
	return start, end
}

// shardQueries builds one query per domain shard, halving the domain set
// repeatedly until every shard's query fits within maxWaybackQueryBytes.
func shardQueries(searchTerms, language string, domains []string) []string {
	shards := [][]string{domains}
	for {
		queries := make([]string, len(shards))
		tooBig := false
		for i, shard := range shards {
			queries[i] = buildWaybackQuery(searchTerms, language, shard)
			if len(queries[i]) > maxWaybackQueryBytes {
				tooBig = true
			}
		}
		if !tooBig {
			return queries
		}
		shards = splitShards(shards)
	}
}

func splitShards(shards [][]string) [][]string {
	out := make([][]string, 0, len(shards)*2)
	for _, shard := range shards {
		if len(shard) <= 1 {
			out = append(out, shard)
			continue
		}
		mid := len(shard) / 2
		out = append(out, shard[:mid], shard[mid:])
	}
	return out
}

func buildWaybackQuery(searchTerms, language string, domains []string) string {
	clauses := make([]string, len(domains))
	for i, d := range domains {
		clauses[i] = fmt.Sprintf("domain:%s", d)
	}
	return fmt.Sprintf("(%s) AND (language:%s) AND (%s)", searchTerms, language, strings.Join(clauses, " OR "))
}

func waybackToCandidate(project entity.Project, s mediaCloudStory) (entity.CandidateArticle, bool) {
	if s.URL == "" {
		return entity.CandidateArticle{}, false
	}
	publishDate, _ := time.Parse(time.RFC3339, s.PublishDate)
	mediaURL := s.MediaURL
	if mediaURL == "" {
		mediaURL = s.MediaName
	}
	return entity.CandidateArticle{
		Source:          entity.SourceWayback,
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

func (a *WaybackAdapter) fetchPage(ctx context.Context, query string, start, end time.Time, page int) ([]mediaCloudStory, bool, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("start_date", start.Format("2006-01-02"))
	values.Set("end_date", end.Format("2006-01-02"))
	values.Set("page", strconv.Itoa(page))
	reqURL := a.cfg.WaybackBaseURL + "/stories/search?" + values.Encode()

	var resultPage mediaCloudPage
	err := retry.WithBackoff(ctx, retry.WaybackConfig(), func() error {
		result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
			return a.doGet(ctx, reqURL)
		})
		if err != nil {
			return err
		}
		return json.Unmarshal(result.([]byte), &resultPage)
	})
	if err != nil {
		return nil, false, err
	}
	return resultPage.Stories, len(resultPage.Stories) > 0, nil
}

func (a *WaybackAdapter) doGet(ctx context.Context, reqURL string) ([]byte, error) {
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
}

// domainsForProject resolves every media collection id on the project
// into its set of publisher domains, using the process-local cache to
// avoid re-querying the source list for collections already seen.
func (a *WaybackAdapter) domainsForProject(ctx context.Context, project entity.Project) ([]string, error) {
	seen := make(map[string]struct{})
	var domains []string
	for _, cid := range project.MediaCollections {
		cidDomains, err := a.domainsForCollection(ctx, cid)
		if err != nil {
			return nil, err
		}
		for _, d := range cidDomains {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			domains = append(domains, d)
		}
	}
	return domains, nil
}

func (a *WaybackAdapter) domainsForCollection(ctx context.Context, collectionID string) ([]string, error) {
	a.domains.mu.RLock()
	if cached, ok := a.domains.domains[collectionID]; ok {
		a.domains.mu.RUnlock()
		return cached, nil
	}
	a.domains.mu.RUnlock()

	a.domains.mu.Lock()
	defer a.domains.mu.Unlock()
	if cached, ok := a.domains.domains[collectionID]; ok {
		return cached, nil
	}

	var domains []string
	offset := 0
	const limit = 1000
	for {
		values := url.Values{}
		values.Set("collection_id", collectionID)
		values.Set("key", a.cfg.MediaCloudAPIKey)
		values.Set("limit", strconv.Itoa(limit))
		values.Set("offset", strconv.Itoa(offset))
		reqURL := a.cfg.MediaCloudBaseURL + "/sources/list?" + values.Encode()

		var body []byte
		err := retry.WithBackoff(ctx, retry.MediaCloudConfig(), func() error {
			result, err := a.circuitBreaker.Execute(func() (interface{}, error) {
				return a.doGet(ctx, reqURL)
			})
			if err != nil {
				return err
			}
			body = result.([]byte)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("resolve domains for collection %s: %w", collectionID, err)
		}

		var page mediaCloudSourceListPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode source list for collection %s: %w", collectionID, err)
		}
		for _, s := range page.Results {
			if s.Name != "" {
				domains = append(domains, s.Name)
			}
		}
		if page.Next == nil {
			break
		}
		offset += limit
	}

	a.domains.domains[collectionID] = domains
	return domains, nil
}
