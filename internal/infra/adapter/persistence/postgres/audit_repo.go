package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"story-processor/internal/domain/entity"
	"story-processor/internal/repository"
	"story-processor/internal/resilience/circuitbreaker"
)

// AuditRepo is the postgres-backed Audit Store. Write-path transactions go
// straight to the pool; the read-only dashboard queries run through a
// database circuit breaker so a dead database fails listing requests fast
// instead of tying up handler goroutines.
type AuditRepo struct {
	db    *sql.DB
	reads *circuitbreaker.DBCircuitBreaker
}

func NewAuditRepo(db *sql.DB) repository.AuditRepository {
	return &AuditRepo{db: db, reads: circuitbreaker.NewDBCircuitBreaker(db)}
}

func (r *AuditRepo) AddStories(ctx context.Context, candidates []entity.CandidateArticle, projectID int64, source entity.Source) ([]entity.CandidateArticle, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AddStories: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	queuedAt := time.Now().UTC()
	const insert = `
INSERT INTO stories
       (stories_id, project_id, model_id, source, url, title, language,
        media_url, media_name, published_date, queued_date, above_threshold)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE)
RETURNING id`

	out := make([]entity.CandidateArticle, len(candidates))
	for i, c := range candidates {
		out[i] = c
		var id int64
		err := tx.QueryRowContext(ctx, insert,
			c.SourceStoriesID, projectID, c.LanguageModelID, string(source), c.URL, c.Title,
			c.Language, c.MediaURL, c.MediaName, c.PublishDate, queuedAt,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("AddStories: insert: %w", err)
		}
		out[i].LogDBID = id
		if c.SourceStoriesID == 0 {
			if _, err := tx.ExecContext(ctx, `UPDATE stories SET stories_id = $1 WHERE id = $1`, id); err != nil {
				return nil, fmt.Errorf("AddStories: backfill stories_id: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AddStories: Commit: %w", err)
	}
	return out, nil
}

func (r *AuditRepo) UpdateProcessed(ctx context.Context, stories []entity.Story) error {
	if len(stories) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpdateProcessed: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
UPDATE stories SET
       model_score   = $1,
       model_1_score = $2,
       model_2_score = $3,
       processed_date = now()
WHERE id = $4`
	for _, s := range stories {
		if _, err := tx.ExecContext(ctx, query, s.ModelScore, s.Model1Score, s.Model2Score, s.LogDBID); err != nil {
			return fmt.Errorf("UpdateProcessed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpdateProcessed: Commit: %w", err)
	}
	return nil
}

func (r *AuditRepo) MarkAboveThreshold(ctx context.Context, logDBIDs []int64) error {
	if len(logDBIDs) == 0 {
		return nil
	}
	const query = `UPDATE stories SET above_threshold = TRUE WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(logDBIDs)); err != nil {
		return fmt.Errorf("MarkAboveThreshold: %w", err)
	}
	return nil
}

func (r *AuditRepo) UpdatePosted(ctx context.Context, logDBIDs []int64) error {
	if len(logDBIDs) == 0 {
		return nil
	}
	const query = `UPDATE stories SET posted_date = now() WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(logDBIDs)); err != nil {
		return fmt.Errorf("UpdatePosted: %w", err)
	}
	return nil
}

func (r *AuditRepo) ListStories(ctx context.Context, filter repository.StoryFilter, offset, limit int) ([]entity.Story, error) {
	query, args := buildStoryQuery(filter)
	query += fmt.Sprintf(" ORDER BY queued_date DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.reads.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListStories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stories := make([]entity.Story, 0, limit)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("ListStories: Scan: %w", err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

func (r *AuditRepo) CountStories(ctx context.Context, filter repository.StoryFilter) (int64, error) {
	query, args := buildStoryQuery(filter)
	query = strings.Replace(query, storyColumns, "COUNT(*)", 1)

	var count int64
	if err := r.reads.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountStories: %w", err)
	}
	return count, nil
}

func (r *AuditRepo) UnpostedAboveThreshold(ctx context.Context, olderThan time.Duration) ([]entity.Story, error) {
	const query = storySelect + `
WHERE above_threshold = TRUE
  AND posted_date IS NULL
  AND processed_date <= $1
ORDER BY processed_date ASC`
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.reads.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("UnpostedAboveThreshold: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stories []entity.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("UnpostedAboveThreshold: Scan: %w", err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

func (r *AuditRepo) GetHistory(ctx context.Context, projectID int64) (entity.ProjectHistory, bool, error) {
	const query = `
SELECT project_id, last_processed_id, last_publish_date, last_url, created_at, updated_at
FROM project_history
WHERE project_id = $1`
	var h entity.ProjectHistory
	var lastPublish sql.NullTime
	err := r.db.QueryRowContext(ctx, query, projectID).
		Scan(&h.ProjectID, &h.LastProcessedID, &lastPublish, &h.LastURL, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return entity.ProjectHistory{}, false, nil
	}
	if err != nil {
		return entity.ProjectHistory{}, false, fmt.Errorf("GetHistory: %w", err)
	}
	if lastPublish.Valid {
		h.LastPublishDate = lastPublish.Time
	}
	return h, true, nil
}

func (r *AuditRepo) SaveHistory(ctx context.Context, history entity.ProjectHistory) error {
	const query = `
INSERT INTO project_history (project_id, last_processed_id, last_publish_date, last_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (project_id) DO UPDATE SET
    last_processed_id = EXCLUDED.last_processed_id,
    last_publish_date = EXCLUDED.last_publish_date,
    last_url           = EXCLUDED.last_url,
    updated_at          = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		history.ProjectID, history.LastProcessedID, history.LastPublishDate,
		history.LastURL, history.CreatedAt, history.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("SaveHistory: %w", err)
	}
	return nil
}

const storyColumns = `id, stories_id, project_id, model_id, source, url, title, language,
       media_url, media_name, published_date, queued_date, processed_date, posted_date,
       above_threshold, model_score, model_1_score, model_2_score`

const storySelect = `SELECT ` + storyColumns + ` FROM stories`

func buildStoryQuery(filter repository.StoryFilter) (string, []any) {
	query := storySelect
	var where []string
	var args []any
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.AboveThreshold != nil {
		args = append(args, *filter.AboveThreshold)
		where = append(where, fmt.Sprintf("above_threshold = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStory(row scanner) (entity.Story, error) {
	var s entity.Story
	var source string
	var published, processed, posted sql.NullTime
	err := row.Scan(
		&s.LogDBID, &s.StoriesID, &s.ProjectID, &s.ModelID, &source, &s.URL, &s.Title, &s.Language,
		&s.MediaURL, &s.MediaName, &published, &s.QueuedDate, &processed, &posted,
		&s.AboveThreshold, &s.ModelScore, &s.Model1Score, &s.Model2Score,
	)
	if err != nil {
		return entity.Story{}, err
	}
	s.Source = entity.Source(source)
	if published.Valid {
		s.PublishedDate = published.Time
	}
	if processed.Valid {
		t := processed.Time
		s.ProcessedDate = &t
	}
	if posted.Valid {
		t := posted.Time
		s.PostedDate = &t
	}
	return s, nil
}
