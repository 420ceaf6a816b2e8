package entity

import "time"

// CandidateArticle is the transient record that flows from a Source
// Adapter through extraction, persistence, and the task queue. It is
// never itself stored; by the time it reaches the Audit Store its fields
// are projected onto a Story.
type CandidateArticle struct {
	Source          Source
	URL             string
	Title           string
	Language        string
	PublishDate     time.Time
	MediaURL        string
	MediaName       string
	ProjectID       int64
	LanguageModelID int64

	// SourceStoriesID carries the source-native id when one exists
	// (MediaCloud). Zero for sources that have none.
	SourceStoriesID int64

	// StoryText is populated by the Content Extractor; candidates
	// for which extraction failed are dropped before persistence.
	StoryText string

	// LogDBID is populated once the candidate has been persisted by the
	// Audit Store, so later pipeline stages can address the same row.
	LogDBID int64
}

// Validate checks that a candidate carries the minimum fields the
// pipeline requires before extraction.
func (c *CandidateArticle) Validate() error {
	if c.ProjectID <= 0 {
		return &ValidationError{Field: "project_id", Message: "project_id is required"}
	}
	if c.URL == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	if err := ValidateURL(c.URL); err != nil {
		return err
	}
	if c.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	return nil
}

// ToStory projects a (post-extraction, post-persistence) candidate onto
// the Story shape the Audit Store writes. queuedAt is the instant the
// enclosing batch was enqueued.
func (c *CandidateArticle) ToStory(queuedAt time.Time) Story {
	storiesID := c.SourceStoriesID
	if storiesID == 0 {
		storiesID = c.LogDBID
	}
	return Story{
		LogDBID:       c.LogDBID,
		StoriesID:     storiesID,
		ProjectID:     c.ProjectID,
		ModelID:       c.LanguageModelID,
		Source:        c.Source,
		URL:           c.URL,
		Title:         c.Title,
		Language:      c.Language,
		MediaURL:      c.MediaURL,
		MediaName:     c.MediaName,
		PublishedDate: c.PublishDate,
		QueuedDate:    queuedAt,
	}
}
