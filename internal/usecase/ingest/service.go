package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"story-processor/internal/domain/entity"
	"story-processor/internal/observability/metrics"
	"story-processor/internal/repository"
	"story-processor/internal/usecase/notify"
	"story-processor/internal/utils/text"
)

// nearCapFraction is how close Fetched must get to a project's configured
// per-run cap before the Scheduler flags NearCap in the run summary.
const nearCapFraction = 0.95

// extractParallelism bounds concurrent Content Extractor calls per project;
// projectParallelism bounds concurrent projects processed within one run.
const (
	defaultProjectParallelism = 8
	defaultExtractParallelism = 16
)

// minStoryTextRunes is the shortest extracted text worth classifying.
// Pages that yield less than this are almost always paywall stubs,
// cookie walls, or error pages, and counting runes rather than bytes
// keeps the cutoff meaningful for non-Latin scripts.
const minStoryTextRunes = 150

// Service is the Ingestion Scheduler for one source adapter. One
// Service is constructed per source (mediacloud, wayback, rss-alerts,
// newscatcher) and invoked once per scheduled run via Run.
type Service struct {
	adapter   Adapter
	extractor Extractor
	enqueuer  Enqueuer
	projects  ProjectLoader
	audit     repository.AuditRepository
	notifier  notify.Service
	filter    ProjectFilter

	projectParallelism int
	extractParallelism int
	perProjectCap      int

	logger *slog.Logger
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithParallelism overrides the default project- and extraction-level
// concurrency.
func WithParallelism(project, extract int) Option {
	return func(s *Service) {
		if project > 0 {
			s.projectParallelism = project
		}
		if extract > 0 {
			s.extractParallelism = extract
		}
	}
}

// WithPerProjectCap sets the adapter's configured per-project-per-run
// fetch cap, used only to compute the NearCap warning. Zero
// disables the warning.
func WithPerProjectCap(cap int) Option {
	return func(s *Service) { s.perProjectCap = cap }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds a Scheduler for one source adapter.
func NewService(
	adapter Adapter,
	extractor Extractor,
	enqueuer Enqueuer,
	projects ProjectLoader,
	audit repository.AuditRepository,
	notifier notify.Service,
	filter ProjectFilter,
	opts ...Option,
) *Service {
	s := &Service{
		adapter:            adapter,
		extractor:          extractor,
		enqueuer:           enqueuer,
		projects:           projects,
		audit:              audit,
		notifier:           notifier,
		filter:             filter,
		projectParallelism: defaultProjectParallelism,
		extractParallelism: defaultExtractParallelism,
		logger:             slog.Default(),
	}
	if s.filter == nil {
		s.filter = AcceptAll
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one full scheduler pass: load_projects, then for every
// project accepted by the filter, fetch_candidates -> extract_text ->
// persist_and_enqueue, advancing the watermark as it goes, and finally
// emit_summary to the Notifier. Run never returns an error for
// per-project failures (a source crawl continues past one bad project);
// it returns an error only if loading the project catalog itself fails,
// which aborts the entire run.
func (s *Service) Run(ctx context.Context, window Window) (*entity.RunSummary, error) {
	start := time.Now()
	summary := &entity.RunSummary{
		Source:    s.adapter.Name(),
		StartedAt: start,
	}

	all, err := s.projects.GetProjects(ctx)
	if err != nil {
		summary.FatalError = fmt.Sprintf("load projects: %v", err)
		summary.EndedAt = time.Now()
		s.emit(ctx, summary)
		return summary, fmt.Errorf("load projects: %w", err)
	}

	var targets []entity.Project
	for _, p := range all {
		if s.filter(p) {
			targets = append(targets, p)
		}
	}

	var (
		mu    sync.Mutex
		stats = make([]entity.ProjectRunStats, len(targets))
	)

	sem := make(chan struct{}, s.projectParallelism)
	var wg sync.WaitGroup
	for i, project := range targets {
		i, project := i, project
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			stat := s.runProject(ctx, project, window)
			mu.Lock()
			stats[i] = stat
			mu.Unlock()
		}()
	}
	wg.Wait()

	summary.Projects = stats
	summary.EndedAt = time.Now()
	metrics.RecordSchedulerRun(string(s.adapter.Name()), summary.EndedAt.Sub(start))
	s.emit(ctx, summary)
	return summary, nil
}

// runProject drives one project through fetch_candidates, extract_text
// and persist_and_enqueue, recovering from a panic in any stage so one
// misbehaving project cannot take down the whole run.
func (s *Service) runProject(ctx context.Context, project entity.Project, window Window) (stat entity.ProjectRunStats) {
	stat = entity.ProjectRunStats{ProjectID: project.ID, ProjectTitle: project.Title}

	defer func() {
		if r := recover(); r != nil {
			stat.Failed++
			stat.Errors = append(stat.Errors, fmt.Sprintf("panic: %v", r))
			s.logger.Error("ingestion panic recovered",
				slog.Int64("project_id", project.ID),
				slog.Any("panic", r))
		}
	}()

	cursor := s.loadCursor(ctx, project.ID)

	candidates, fetchErr := s.fetchCandidates(ctx, project, window, cursor)
	stat.Fetched = len(candidates)
	if fetchErr != nil {
		stat.Failed++
		stat.Errors = append(stat.Errors, fetchErr.Error())
	}
	if s.perProjectCap > 0 && float64(stat.Fetched) >= float64(s.perProjectCap)*nearCapFraction {
		stat.NearCap = true
	}
	metrics.RecordStoriesFetched(string(s.adapter.Name()), project.ID, stat.Fetched)

	if len(candidates) == 0 {
		return stat
	}

	candidates = dedupeByURL(candidates)
	extracted := s.extractText(ctx, candidates)

	persisted, err := s.persistAndEnqueue(ctx, project, extracted)
	if err != nil {
		stat.Failed++
		stat.Errors = append(stat.Errors, err.Error())
		return stat
	}
	stat.Queued = len(persisted)
	metrics.RecordStoriesQueued(string(s.adapter.Name()), project.ID, stat.Queued)

	s.advanceWatermark(ctx, project.ID, persisted)

	return stat
}

// loadCursor reads the project's watermark, returning a zero-value
// Cursor if the project has never been processed (the watermark is
// advisory, its absence is not an error).
func (s *Service) loadCursor(ctx context.Context, projectID int64) Cursor {
	history, ok, err := s.audit.GetHistory(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load project watermark, scanning without a cursor",
			slog.Int64("project_id", projectID), slog.Any("error", err))
		return Cursor{}
	}
	if !ok {
		return Cursor{}
	}
	return Cursor{
		LastProcessedID: history.LastProcessedID,
		LastPublishDate: history.LastPublishDate,
		LastURL:         history.LastURL,
	}
}

// fetchCandidates drains the adapter's channel for one project. An Err on
// the final element means the adapter stopped early; the
// candidates collected so far are still returned.
func (s *Service) fetchCandidates(ctx context.Context, project entity.Project, window Window, cursor Cursor) ([]entity.CandidateArticle, error) {
	start := time.Now()
	var (
		candidates []entity.CandidateArticle
		fetchErr   error
	)
	for result := range s.adapter.Iterate(ctx, project, window, cursor) {
		if result.Err != nil {
			fetchErr = result.Err
			metrics.RecordSourceFetchError(string(s.adapter.Name()), classifyFetchError(result.Err))
			continue
		}
		candidates = append(candidates, result.Candidate)
	}
	metrics.RecordSourceFetch(string(s.adapter.Name()), time.Since(start))
	return candidates, fetchErr
}

// classifyFetchError buckets an adapter error for the fetch-error metric
// label, distinguishing transient-source errors from everything else.
func classifyFetchError(err error) string {
	var transient *entity.TransientSourceError
	if errors.As(err, &transient) {
		return "transient"
	}
	return "other"
}

// extractText runs the Content Extractor over every candidate with
// bounded concurrency, dropping candidates whose text could not be
// extracted.
func (s *Service) extractText(ctx context.Context, candidates []entity.CandidateArticle) []entity.CandidateArticle {
	out := make([]entity.CandidateArticle, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.extractParallelism)

	for i, c := range candidates {
		i, c := i, c
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			article, err := s.extractor.Extract(egCtx, c.URL)
			if err != nil || article == nil {
				if err != nil {
					s.logger.Warn("content extraction failed, dropping candidate",
						slog.String("url", c.URL), slog.Any("error", err))
				}
				return nil
			}
			if text.CountRunes(article.Text) < minStoryTextRunes {
				s.logger.Debug("extracted text too short, dropping candidate",
					slog.String("url", c.URL))
				return nil
			}

			c.StoryText = article.Text
			if c.Title == "" {
				c.Title = article.Title
			}
			if c.Language == "" {
				c.Language = article.Language
			}
			if c.PublishDate.IsZero() {
				c.PublishDate = article.PublishDate
			}
			out[i] = c
			return nil
		})
	}
	_ = eg.Wait() // extractText never returns a per-item error; failures just drop the slot

	result := make([]entity.CandidateArticle, 0, len(candidates))
	for _, c := range out {
		if c.URL != "" {
			result = append(result, c)
		}
	}
	return result
}

// dedupeByURL removes duplicate (project_id, url) pairs within a single
// batch before persistence, keeping the first occurrence. The Audit Store
// remains the cross-run de-duplication authority; this only protects
// against an adapter yielding the same URL twice in one page of results.
func dedupeByURL(candidates []entity.CandidateArticle) []entity.CandidateArticle {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]entity.CandidateArticle, 0, len(candidates))
	for _, c := range candidates {
		key := fmt.Sprintf("%d|%s", c.ProjectID, c.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// persistAndEnqueue writes the extracted batch to the Audit Store, then
// hands it to the Task Queue. Persistence happens first so every
// candidate carries a LogDBID before a worker could possibly pick it up.
func (s *Service) persistAndEnqueue(ctx context.Context, project entity.Project, candidates []entity.CandidateArticle) ([]entity.CandidateArticle, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	persisted, err := s.audit.AddStories(ctx, candidates, project.ID, s.adapter.Name())
	if err != nil {
		return nil, fmt.Errorf("persist candidates: %w", err)
	}

	if err := s.enqueuer.Enqueue(ctx, project.ID, s.adapter.Name(), persisted); err != nil {
		return nil, fmt.Errorf("enqueue candidates: %w", err)
	}

	return persisted, nil
}

// advanceWatermark moves the project's cursor forward: last_publish_date
// to the latest publish date seen in this batch, last_url to the FIRST
// article's URL in source-native order. Push-style feeds are newest-first,
// so the first URL is the idempotence anchor the next scan stops on; the
// max-publish URL is not, when feed order and publish order disagree.
// Failures are logged, never propagated: the watermark is advisory, so a
// failure to save it degrades to a wider re-scan next run rather than
// aborting.
func (s *Service) advanceWatermark(ctx context.Context, projectID int64, candidates []entity.CandidateArticle) {
	if len(candidates) == 0 {
		return
	}

	latestPublish := candidates[0].PublishDate
	for _, c := range candidates[1:] {
		if c.PublishDate.After(latestPublish) {
			latestPublish = c.PublishDate
		}
	}

	history, _, err := s.audit.GetHistory(ctx, projectID)
	if err != nil {
		s.logger.Warn("failed to load watermark before advancing",
			slog.Int64("project_id", projectID), slog.Any("error", err))
		history = entity.ProjectHistory{ProjectID: projectID}
	}
	history.ProjectID = projectID

	next := history.Advance(latestPublish, candidates[0].URL, time.Now())
	if err := s.audit.SaveHistory(ctx, next); err != nil {
		s.logger.Warn("failed to save watermark",
			slog.Int64("project_id", projectID), slog.Any("error", err))
	}
}

// emit sends the run summary to the Notifier, logging (never
// propagating) a dispatch failure: a notification outage must not be
// mistaken for an ingestion outage.
func (s *Service) emit(ctx context.Context, summary *entity.RunSummary) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.notifier.NotifyRunComplete(notifyCtx, summary); err != nil {
		s.logger.Warn("failed to dispatch run summary notification", slog.Any("error", err))
	}
}
