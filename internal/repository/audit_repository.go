package repository

import (
	"context"
	"time"

	"story-processor/internal/domain/entity"
)

// StoryFilter narrows the read-only audit queries backing the dashboard.
type StoryFilter struct {
	ProjectID      *int64
	AboveThreshold *bool
}

// AuditRepository is the Audit Store contract: durable bookkeeping of
// every candidate a Source Adapter has ever produced, plus the per-project
// watermark used to avoid re-fetching old articles.
type AuditRepository interface {
	// AddStories inserts candidates for one project/source batch inside a
	// single transaction, with queued_date=now and above_threshold=false.
	// For sources that carry no native id, a second pass sets stories_id
	// equal to the generated internal id. Returns the candidates annotated
	// with LogDBID.
	AddStories(ctx context.Context, candidates []entity.CandidateArticle, projectID int64, source entity.Source) ([]entity.CandidateArticle, error)

	// UpdateProcessed sets model_score/model_1_score/model_2_score and
	// processed_date=now for each story, addressed by LogDBID. Idempotent.
	UpdateProcessed(ctx context.Context, stories []entity.Story) error

	// MarkAboveThreshold sets above_threshold=true for the given LogDBIDs.
	MarkAboveThreshold(ctx context.Context, logDBIDs []int64) error

	// UpdatePosted sets posted_date=now for the given LogDBIDs.
	UpdatePosted(ctx context.Context, logDBIDs []int64) error

	// ListStories backs the read-only /stories surface.
	ListStories(ctx context.Context, filter StoryFilter, offset, limit int) ([]entity.Story, error)
	CountStories(ctx context.Context, filter StoryFilter) (int64, error)

	// UnpostedAboveThreshold backs queue-unposted-retry: stories marked
	// above_threshold that never received a posted_date.
	UnpostedAboveThreshold(ctx context.Context, olderThan time.Duration) ([]entity.Story, error)

	// GetHistory returns the project's watermark, or the zero value with
	// ok=false if the project has never been processed.
	GetHistory(ctx context.Context, projectID int64) (entity.ProjectHistory, bool, error)

	// SaveHistory upserts the project's watermark.
	SaveHistory(ctx context.Context, history entity.ProjectHistory) error
}
