package configclient

import (
	"time"

	"story-processor/internal/domain/entity"
)

// projectDTO mirrors the central server's JSON shape for one project
//. Field names match the wire contract, not Go convention.
type projectDTO struct {
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
	StartDate                string   `json:"start_date,omitempty"`
}

func (d projectDTO) toEntity() entity.Project {
	var start time.Time
	if d.StartDate != "" {
		if parsed, err := time.Parse(time.RFC3339, d.StartDate); err == nil {
			start = parsed
		}
	}
	return entity.Project{
		ID:                       d.ID,
		Title:                    d.Title,
		Language:                 d.Language,
		LanguageModelID:          d.LanguageModelID,
		SearchTerms:              d.SearchTerms,
		MediaCollections:         d.MediaCollections,
		Country:                  d.Country,
		RSSURL:                   d.RSSURL,
		MinConfidence:            d.MinConfidence,
		UpdatePostURL:            d.UpdatePostURL,
		LatestProcessedStoriesID: d.LatestProcessedStoriesID,
		StartDate:                start,
	}
}

func projectToDTO(p entity.Project) projectDTO {
	dto := projectDTO{
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
	if !p.StartDate.IsZero() {
		dto.StartDate = p.StartDate.Format(time.RFC3339)
	}
	return dto
}

// modelStageDTO mirrors one stage of a model catalog entry.
type modelStageDTO struct {
	ModelType      string   `json:"model_type"`
	VectorizerType string   `json:"vectorizer_type"`
	ModelURLs      []string `json:"model_urls"`
	VectorizerURLs []string `json:"vectorizer_urls"`
}

func (d modelStageDTO) toEntity() entity.ModelStage {
	return entity.ModelStage{
		ModelType:      entity.ModelType(d.ModelType),
		VectorizerType: entity.VectorizerType(d.VectorizerType),
		ModelURLs:      d.ModelURLs,
		VectorizerURLs: d.VectorizerURLs,
	}
}

func modelStageToDTO(s entity.ModelStage) modelStageDTO {
	return modelStageDTO{
		ModelType:      string(s.ModelType),
		VectorizerType: string(s.VectorizerType),
		ModelURLs:      s.ModelURLs,
		VectorizerURLs: s.VectorizerURLs,
	}
}

// modelSpecDTO mirrors one entry of the central server's model catalog.
type modelSpecDTO struct {
	ID             int64         `json:"id"`
	FilenamePrefix string        `json:"filename_prefix"`
	ChainedModels  bool          `json:"chained_models"`
	Stage1         modelStageDTO `json:"stage1"`
	Stage2         modelStageDTO `json:"stage2,omitempty"`
}

func (d modelSpecDTO) toEntity() entity.ModelSpec {
	return entity.ModelSpec{
		ID:             d.ID,
		FilenamePrefix: d.FilenamePrefix,
		ChainedModels:  d.ChainedModels,
		Stage1:         d.Stage1.toEntity(),
		Stage2:         d.Stage2.toEntity(),
	}
}

func modelSpecToDTO(m entity.ModelSpec) modelSpecDTO {
	return modelSpecDTO{
		ID:             m.ID,
		FilenamePrefix: m.FilenamePrefix,
		ChainedModels:  m.ChainedModels,
		Stage1:         modelStageToDTO(m.Stage1),
		Stage2:         modelStageToDTO(m.Stage2),
	}
}
