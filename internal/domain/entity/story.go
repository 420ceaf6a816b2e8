package entity

import "time"

// Source identifies which adapter discovered a Story.
type Source string

const (
	SourceMediaCloud  Source = "mediacloud"
	SourceWayback     Source = "wayback"
	SourceRSSAlerts   Source = "rss-alerts"
	SourceNewsCatcher Source = "newscatcher"
)

// Story is the audit record owned by the Audit Store. It is created at
// enqueue time and mutated at most three more times: once by the worker
// after scoring, optionally once when marked above threshold, and
// optionally once when posted. It is never deleted by the core.
type Story struct {
	// LogDBID is the internal autoincrement primary key. It is populated
	// by AddStories and used as the handle for every later update.
	LogDBID int64

	// StoriesID is the source-assigned id, or equal to LogDBID when the
	// source has none (the canonical "most capable variant", see
	// DESIGN.md Open Question resolutions).
	StoriesID int64

	ProjectID int64
	ModelID   int64
	Source    Source
	URL       string

	Title     string
	Language  string
	MediaURL  string
	MediaName string
	StoryTags []string

	PublishedDate time.Time
	QueuedDate    time.Time
	ProcessedDate *time.Time
	PostedDate    *time.Time

	AboveThreshold bool

	ModelScore  *float64
	Model1Score *float64
	Model2Score *float64

	// Entities holds the filtered named-entity list produced by the
	// optional Entity Extractor. Nil when unconfigured or failed.
	Entities []ExtractedEntity
}

// ExtractedEntity is one named entity surviving the accepted-type filter
//.
type ExtractedEntity struct {
	Type string
	Text string
}

// Validate checks the invariants a Story must hold before it is persisted.
func (s *Story) Validate() error {
	if s.ProjectID <= 0 {
		return &ValidationError{Field: "project_id", Message: "project_id is required"}
	}
	if s.URL == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	if err := ValidateURL(s.URL); err != nil {
		return err
	}
	if s.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	return nil
}

// MarkProcessed records classifier output on the story. Idempotent: calling
// it twice with the same scores leaves the row in the same state.
func (s *Story) MarkProcessed(model1, model2, combined *float64, processedAt time.Time) {
	s.Model1Score = model1
	s.Model2Score = model2
	s.ModelScore = combined
	s.ProcessedDate = &processedAt
}

// MarkAboveThreshold flips the threshold flag. The caller is responsible
// for only calling this when ModelScore >= project.MinConfidence (the
// invariant `above_threshold=true ⇒ model_score ≥ min_confidence` is
// enforced by the worker, not by this method).
func (s *Story) MarkAboveThreshold() {
	s.AboveThreshold = true
}

// MarkPosted records that the story was accepted by the central server.
// The caller must only call this after MarkAboveThreshold and after
// ProcessedDate has been set; PostedDate() is the invariant-checking
// accessor callers should use to confirm that.
func (s *Story) MarkPosted(postedAt time.Time) {
	s.PostedDate = &postedAt
}

// SatisfiesPostInvariant reports theinvariant:
// posted_date ≠ null ⇒ above_threshold=true ∧ processed_date ≠ null.
func (s *Story) SatisfiesPostInvariant() bool {
	if s.PostedDate == nil {
		return true
	}
	return s.AboveThreshold && s.ProcessedDate != nil
}
