package db

import "database/sql"

// MigrateUp creates the audit store's schema: one row per discovered
// candidate (stories) and one watermark row per project (project_history).
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS project_history (
    project_id        BIGINT PRIMARY KEY,
    last_processed_id BIGINT NOT NULL DEFAULT 0,
    last_publish_date TIMESTAMPTZ,
    last_url          TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS stories (
    id              BIGSERIAL PRIMARY KEY,
    stories_id      BIGINT NOT NULL,
    project_id      BIGINT NOT NULL,
    model_id        BIGINT NOT NULL,
    source          VARCHAR(32) NOT NULL,
    url             TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    language        VARCHAR(8) NOT NULL DEFAULT '',
    media_url       TEXT NOT NULL DEFAULT '',
    media_name      TEXT NOT NULL DEFAULT '',
    story_tags      TEXT[] NOT NULL DEFAULT '{}',
    published_date  TIMESTAMPTZ,
    queued_date     TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_date  TIMESTAMPTZ,
    posted_date     TIMESTAMPTZ,
    above_threshold BOOLEAN NOT NULL DEFAULT FALSE,
    model_score     DOUBLE PRECISION,
    model_1_score   DOUBLE PRECISION,
    model_2_score   DOUBLE PRECISION,
    UNIQUE (project_id, stories_id, source)
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_stories_project_id ON stories(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_published_above ON stories(((published_date::date)), above_threshold)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_processed_above ON stories(((processed_date::date)), above_threshold)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_posted_above ON stories(((posted_date::date)), above_threshold)`,
		`CREATE INDEX IF NOT EXISTS idx_stories_above_threshold ON stories(above_threshold)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown drops the audit store's schema. Use with caution: this
// deletes every story and watermark ever recorded.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS stories CASCADE`,
		`DROP TABLE IF EXISTS project_history CASCADE`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
