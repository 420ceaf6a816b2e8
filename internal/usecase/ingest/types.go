// Package ingest implements the per-source Ingestion Scheduler: it
// loads projects, drives a Source Adapter, extracts article text, persists
// and enqueues candidates, advances the per-project watermark, and emits a
// run summary. One Service is constructed per source (mediacloud, wayback,
// rss-alerts, newscatcher) and invoked once per scheduled run.
package ingest

import (
	"context"
	"time"

	"story-processor/internal/domain/entity"
)

// Window bounds a source scan in time. Adapters interpret Start/End
// according to their own native semantics (inclusive date window for
// archive-style adapters, "since" cursor for push feeds).
type Window struct {
	Start time.Time
	End   time.Time
}

// Cursor carries the per-project watermark into an adapter invocation. It
// is advisory: the audit store and the central server remain
// the final de-duplication authority.
type Cursor struct {
	LastProcessedID int64
	LastPublishDate time.Time
	LastURL         string
}

// AdapterResult is one element of an adapter's lazy output sequence. Err is
// only set on the final element emitted before the channel closes early,
// signaling that the cursor was not advanced past this point while still
// surfacing every candidate found so far.
type AdapterResult struct {
	Candidate entity.CandidateArticle
	Err       error
}

// Adapter is the Source Adapter contract. Implementations are
// stateless aside from their configured credentials; the cursor and window
// come from the Scheduler.
type Adapter interface {
	Name() entity.Source
	Iterate(ctx context.Context, project entity.Project, window Window, cursor Cursor) <-chan AdapterResult
}

// ExtractedArticle is the Content Extractor's successful result.
type ExtractedArticle struct {
	Text             string
	Title            string
	PublishDate      time.Time
	Language         string
	CanonicalDomain  string
}

// Extractor is the Content Extractor contract: given a URL, return
// cleaned article text or nil on failure. Failures are swallowed by the
// caller because one unparsable page must not abort a batch.
type Extractor interface {
	Extract(ctx context.Context, url string) (*ExtractedArticle, error)
}

// Enqueuer is the Task Queue producer-side contract used by the
// Scheduler to hand a persisted batch off to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, projectID int64, source entity.Source, candidates []entity.CandidateArticle) error
}

// ProjectLoader is the Config Client contract the Scheduler needs:
// the process-wide project catalog for the current run.
type ProjectLoader interface {
	GetProjects(ctx context.Context) ([]entity.Project, error)
}

// ProjectFilter narrows LoadProjects to the projects a given source can
// actually drive (e.g. rss-alerts requires RSSURL, wayback/newscatcher
// typically require Country).
type ProjectFilter func(entity.Project) bool

// RequiresRSS keeps only projects with an rss_url configured.
func RequiresRSS(p entity.Project) bool { return p.RequiresRSS() }

// RequiresCountry keeps only projects with a country configured, used by
// adapters that resolve collections to domains or narrow queries by
// country (wayback, newscatcher).
func RequiresCountry(p entity.Project) bool { return p.HasCountry() }

// AcceptAll keeps every project; used by the full-text index adapter
// (mediacloud), which needs neither field.
func AcceptAll(entity.Project) bool { return true }
