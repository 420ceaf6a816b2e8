package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"story-processor/internal/domain/entity"
	"story-processor/internal/observability/metrics"
	"story-processor/internal/repository"
)

// Config holds the static parts of the post body the central server
// expects alongside every batch.
type Config struct {
	// Version is the value posted as PostPayload.Version, typically the
	// build's VERSION env var.
	Version string

	// APIKey is appended to the post body, mirroring the Config
	// Client's own FEMINICIDE_API_KEY.
	APIKey string
}

// Service implements the classify-and-post worker contract: one call to
// Process handles one dequeued batch end to end.
type Service struct {
	classifiers ClassifierSource
	entities    EntityExtractor
	projects    ProjectLookup
	audit       repository.AuditRepository
	poster      Poster
	cfg         Config
	logger      *slog.Logger

	now func() time.Time
}

// NewService builds a classify Service. entities may be nil to disable
// entity attachment entirely.
func NewService(classifiers ClassifierSource, entities EntityExtractor, projects ProjectLookup, audit repository.AuditRepository, poster Poster, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		classifiers: classifiers,
		entities:    entities,
		projects:    projects,
		audit:       audit,
		poster:      poster,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Process runs the full classify-and-post contract against one batch of candidates
// belonging to a single project/source, as delivered by one queue.Job.
// The returned error, if any, is one of the pipeline error taxonomy types; the
// caller (the worker consumer loop) uses entity.IsRetryable and
// errors.As to decide whether to Ack, Retry, or Drop the job.
func (s *Service) Process(ctx context.Context, projectID int64, source entity.Source, candidates []entity.CandidateArticle) error {
	if len(candidates) == 0 {
		return nil
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return &entity.AuditStoreError{Op: "look up project for classification", Err: err}
	}

	classifier, err := s.classifiers.Classifier(project.LanguageModelID, project.Language)
	if err != nil {
		return err // *entity.ModelError, non-retryable
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.StoryText
	}

	scores, err := classifier.Score(texts)
	if err != nil {
		for range candidates {
			metrics.RecordStoryScored(projectID, false)
		}
		return err // *entity.ModelError, non-retryable
	}

	now := s.now()
	stories := make([]entity.Story, len(candidates))
	for i, c := range candidates {
		story := c.ToStory(now)
		story.MarkProcessed(&scores[i].Model1, scores[i].Model2, &scores[i].Combined, now)
		stories[i] = story
		metrics.RecordStoryScored(projectID, true)
	}

	if err := s.audit.UpdateProcessed(ctx, stories); err != nil {
		return &entity.AuditStoreError{Op: "update_processed", Err: err}
	}

	type survivor struct {
		story     entity.Story
		candidate entity.CandidateArticle
	}
	var survivors []survivor
	for i, story := range stories {
		if story.ModelScore != nil && *story.ModelScore >= project.MinConfidence {
			survivors = append(survivors, survivor{story: story, candidate: candidates[i]})
		}
	}
	if len(survivors) == 0 {
		return nil
	}

	if s.entities != nil {
		for i := range survivors {
			survivors[i].story.Entities = s.entities.Entities(ctx, survivors[i].candidate.StoryText, project.Language)
		}
	}

	aboveThresholdIDs := make([]int64, len(survivors))
	storiesOut := make([]StoryOut, len(survivors))
	for i, sv := range survivors {
		aboveThresholdIDs[i] = sv.story.LogDBID
		storiesOut[i] = ToStoryOut(sv.story, project)
		metrics.RecordStoryAboveThreshold(projectID)
	}
	if err := s.audit.MarkAboveThreshold(ctx, aboveThresholdIDs); err != nil {
		return &entity.AuditStoreError{Op: "mark_above_threshold", Err: err}
	}

	if project.UpdatePostURL == "" {
		s.logger.Warn("project has no update_post_url, leaving stories unposted",
			slog.Int64("project_id", projectID))
		return nil
	}

	payload := PostPayload{
		Version: s.cfg.Version,
		Project: ToProjectOut(project),
		Stories: storiesOut,
		APIKey:  s.cfg.APIKey,
	}

	if err := s.poster.Post(ctx, project.UpdatePostURL, payload); err != nil {
		metrics.RecordStoryPosted(projectID, "failed")
		return err // *entity.TransientPostError or *entity.PermanentPostError
	}

	if err := s.audit.UpdatePosted(ctx, aboveThresholdIDs); err != nil {
		return &entity.AuditStoreError{Op: "update_posted", Err: err}
	}
	metrics.RecordStoryPosted(projectID, "success")
	return nil
}

// ToStoryOut projects a scored entity.Story into the wire shape posted to
// a project's update_post_url. Exported so cmd/queue-unposted-retry
// can rebuild a post payload for stories that were scored in an earlier
// process without re-running the classifier.
func ToStoryOut(story entity.Story, project entity.Project) StoryOut {
	var entities []string
	for _, e := range story.Entities {
		entities = append(entities, fmt.Sprintf("%s:%s", e.Type, e.Text))
	}
	confidence := 0.0
	if story.ModelScore != nil {
		confidence = *story.ModelScore
	}
	return StoryOut{
		StoriesID:       story.StoriesID,
		Source:          string(story.Source),
		Language:        story.Language,
		MediaURL:        story.MediaURL,
		MediaName:       story.MediaName,
		PublishDate:     story.PublishedDate.Format(time.RFC3339),
		StoryTags:       story.StoryTags,
		Title:           story.Title,
		URL:             story.URL,
		Entities:        entities,
		Confidence:      confidence,
		ProjectID:       story.ProjectID,
		LanguageModelID: project.LanguageModelID,
	}
}

// ToProjectOut projects an entity.Project into the wire shape embedded in
// a post payload.
func ToProjectOut(p entity.Project) ProjectOut {
	return ProjectOut{
		ID:                       p.ID,
		Title:                    p.Title,
		Language:                 p.Language,
		LanguageModelID:          p.LanguageModelID,
		SearchTerms:              p.SearchTerms,
		MediaCollections:         p.MediaCollections,
		Country:                  p.Country,
		RSSURL:                   p.RSSURL,
		MinConfidence:            p.MinConfidence,
		UpdatePostURL:            p.UpdatePostURL,
		LatestProcessedStoriesID: p.LatestProcessedStoriesID,
	}
}
