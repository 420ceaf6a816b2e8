package entity

import (
	"fmt"
	"time"
)

// Project is a client configuration binding a search query, a language, a
// model, a minimum confidence, and a result-sink URL. It is refreshed once
// per run from the config client and treated as read-only for the
// remainder of that run.
type Project struct {
	ID                       int64
	Title                    string
	Language                 string
	LanguageModelID          int64
	SearchTerms              string
	MediaCollections         []string
	Country                  string
	RSSURL                   string
	MinConfidence            float64
	UpdatePostURL            string
	LatestProcessedStoriesID int64
	StartDate                time.Time
}

// Validate checks that a Project carries everything the pipeline needs to
// run safely. Fields left optional by the central server (Country, RSSURL,
// MediaCollections) are not required here.
func (p *Project) Validate() error {
	if p.ID <= 0 {
		return &ValidationError{Field: "id", Message: "project id must be positive"}
	}
	if p.Language == "" {
		return &ValidationError{Field: "language", Message: "language is required"}
	}
	if p.LanguageModelID <= 0 {
		return &ValidationError{Field: "language_model_id", Message: "language_model_id is required"}
	}
	if p.MinConfidence < 0 || p.MinConfidence > 1 {
		return &ValidationError{Field: "min_confidence", Message: "min_confidence must be in [0,1]"}
	}
	if p.UpdatePostURL != "" {
		if err := ValidateURL(p.UpdatePostURL); err != nil {
			return fmt.Errorf("update_post_url: %w", err)
		}
	}
	return nil
}

// RequiresRSS reports whether this project can be driven by the RSS-style
// push adapter (it must carry a feed URL).
func (p *Project) RequiresRSS() bool {
	return p.RSSURL != ""
}

// HasCountry reports whether this project scopes itself to a country,
// which several archive-style adapters use to narrow their query.
func (p *Project) HasCountry() bool {
	return p.Country != ""
}
