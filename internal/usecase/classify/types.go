// Package classify implements the worker-side half of the pipeline: the
// classify-and-post contract run once per dequeued batch.
// It scores candidates against the project's model, records the scores,
// filters by confidence, attaches entities, and publishes survivors back
// to the central server.
package classify

import (
	"context"

	"story-processor/internal/domain/entity"
	"story-processor/internal/infra/model"
)

// Scorer scores a batch of texts against one loaded model.
type Scorer interface {
	Score(texts []string) ([]model.Scores, error)
}

// ClassifierSource resolves the Model Registry lookup the Service
// needs: one cached Classifier per (model id, language).
type ClassifierSource interface {
	Classifier(modelID int64, language string) (Scorer, error)
}

// RegistrySource adapts *model.Registry to ClassifierSource.
type RegistrySource struct {
	Registry *model.Registry
}

// Classifier implements ClassifierSource.
func (r RegistrySource) Classifier(modelID int64, language string) (Scorer, error) {
	return r.Registry.Classifier(modelID, language)
}

// EntityExtractor is the optional Entity Extractor contract. A nil
// EntityExtractor disables entity attachment entirely.
type EntityExtractor interface {
	Entities(ctx context.Context, text, language string) []entity.ExtractedEntity
}

// ProjectLookup resolves one project's full record by id. Unlike the
// Scheduler, a worker job only carries a project id,
// so it must look the rest up from the cached catalog.
type ProjectLookup interface {
	GetProject(ctx context.Context, projectID int64) (entity.Project, error)
}

// StoryOut is the wire shape of one posted story.
type StoryOut struct {
	StoriesID          int64    `json:"stories_id"`
	Source             string   `json:"source"`
	ProcessedStoriesID *int64   `json:"processed_stories_id,omitempty"`
	Language           string   `json:"language"`
	MediaID            *int64   `json:"media_id,omitempty"`
	MediaURL           string   `json:"media_url"`
	MediaName          string   `json:"media_name"`
	PublishDate        string   `json:"publish_date"`
	StoryTags          []string `json:"story_tags,omitempty"`
	Title              string   `json:"title"`
	URL                string   `json:"url"`
	Entities           []string `json:"entities,omitempty"`
	Confidence         float64  `json:"confidence"`
	ProjectID          int64    `json:"project_id"`
	LanguageModelID    int64    `json:"language_model_id"`
}

// ProjectOut is the full project object embedded in the post body. It
// mirrors the fields the central server handed out originally.
type ProjectOut struct {
	ID                       int64    `json:"id"`
	Title                    string   `json:"title"`
	Language                 string   `json:"language"`
	LanguageModelID          int64    `json:"language_model_id"`
	SearchTerms              string   `json:"search_terms"`
	MediaCollections         []string `json:"media_collections,omitempty"`
	Country                  string   `json:"country,omitempty"`
	RSSURL                   string   `json:"rss_url,omitempty"`
	MinConfidence            float64  `json:"min_confidence"`
	UpdatePostURL            string   `json:"update_post_url"`
	LatestProcessedStoriesID int64    `json:"latest_processed_stories_id,omitempty"`
}

// PostPayload is the full body POSTed to project.update_post_url.
type PostPayload struct {
	Version string     `json:"version"`
	Project ProjectOut `json:"project"`
	Stories []StoryOut `json:"stories"`
	APIKey  string     `json:"apikey"`
}

// Poster is the Result Publisher's transport contract. Implementations
// classify their own failures into *entity.TransientPostError (worth a
// queue retry) or *entity.PermanentPostError (drop and log)
type Poster interface {
	Post(ctx context.Context, url string, payload PostPayload) error
}
