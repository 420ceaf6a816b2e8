// Package story exposes the minimal read-only HTTP surface over the Audit
// Store that the dashboard consumes: story listings, counts, and the
// unposted-backlog view. The audit store has no write surface reachable
// over HTTP at all.
package story

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"story-processor/internal/common/pagination"
	"story-processor/internal/domain/entity"
	"story-processor/internal/handler/http/middleware"
	"story-processor/internal/handler/http/respond"
	"story-processor/internal/repository"
)

// DTO is the public JSON projection of entity.Story. Unlike the internal
// entity, it never exposes LogDBID as a write handle since this surface
// has no mutation endpoints.
type DTO struct {
	StoriesID      int64   `json:"stories_id"`
	ProjectID      int64   `json:"project_id"`
	ModelID        int64   `json:"model_id"`
	Source         string  `json:"source"`
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Language       string  `json:"language"`
	MediaURL       string  `json:"media_url"`
	MediaName      string  `json:"media_name"`
	PublishedDate  string  `json:"published_date"`
	QueuedDate     string  `json:"queued_date"`
	ProcessedDate  *string `json:"processed_date,omitempty"`
	PostedDate     *string `json:"posted_date,omitempty"`
	AboveThreshold bool    `json:"above_threshold"`
	ModelScore     *float64 `json:"model_score,omitempty"`
	Model1Score    *float64 `json:"model_1_score,omitempty"`
	Model2Score    *float64 `json:"model_2_score,omitempty"`
}

func toDTO(s entity.Story) DTO {
	d := DTO{
		StoriesID:      s.StoriesID,
		ProjectID:      s.ProjectID,
		ModelID:        s.ModelID,
		Source:         string(s.Source),
		URL:            s.URL,
		Title:          s.Title,
		Language:       s.Language,
		MediaURL:       s.MediaURL,
		MediaName:      s.MediaName,
		PublishedDate:  s.PublishedDate.Format(time.RFC3339),
		QueuedDate:     s.QueuedDate.Format(time.RFC3339),
		AboveThreshold: s.AboveThreshold,
		ModelScore:     s.ModelScore,
		Model1Score:    s.Model1Score,
		Model2Score:    s.Model2Score,
	}
	if s.ProcessedDate != nil {
		v := s.ProcessedDate.Format(time.RFC3339)
		d.ProcessedDate = &v
	}
	if s.PostedDate != nil {
		v := s.PostedDate.Format(time.RFC3339)
		d.PostedDate = &v
	}
	return d
}

// Register wires the read-only story endpoints onto mux.
func Register(mux *http.ServeMux, repo repository.AuditRepository, cfg pagination.Config, logger *slog.Logger, limiter *middleware.RateLimiter) {
	list := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listStories(w, r, repo, cfg, logger)
	})
	unposted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listUnposted(w, r, repo, logger)
	})

	if limiter != nil {
		mux.Handle("/stories", limiter.Middleware(list))
		mux.Handle("/stories/unposted", limiter.Middleware(unposted))
		return
	}
	mux.Handle("/stories", list)
	mux.Handle("/stories/unposted", unposted)
}

// listStories handles GET /stories?project_id=&above_threshold=&page=&limit=.
func listStories(w http.ResponseWriter, r *http.Request, repo repository.AuditRepository, cfg pagination.Config, logger *slog.Logger) {
	if r.Method != http.MethodGet {
		respond.Error(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	params, err := pagination.ParseQueryParams(r, cfg)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	total, err := repo.CountStories(ctx, filter)
	if err != nil {
		logger.Error("count stories failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	offset := pagination.CalculateOffset(params.Page, params.Limit)
	stories, err := repo.ListStories(ctx, filter, offset, params.Limit)
	if err != nil {
		logger.Error("list stories failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]DTO, len(stories))
	for i, s := range stories {
		dtos[i] = toDTO(s)
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	resp := pagination.NewResponse(dtos, pagination.Metadata{
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	})
	respond.JSON(w, http.StatusOK, resp)
}

// listUnposted handles GET /stories/unposted?older_than=, backing operator
// visibility into the queue-unposted-retry backlog.
func listUnposted(w http.ResponseWriter, r *http.Request, repo repository.AuditRepository, logger *slog.Logger) {
	if r.Method != http.MethodGet {
		respond.Error(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	olderThan := time.Hour
	if v := r.URL.Query().Get("older_than_minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes < 0 {
			respond.Error(w, http.StatusBadRequest, errInvalidOlderThan)
			return
		}
		olderThan = time.Duration(minutes) * time.Minute
	}

	stories, err := repo.UnpostedAboveThreshold(r.Context(), olderThan)
	if err != nil {
		logger.Error("list unposted stories failed", slog.Any("error", err))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]DTO, len(stories))
	for i, s := range stories {
		dtos[i] = toDTO(s)
	}
	respond.JSON(w, http.StatusOK, map[string]any{"data": dtos})
}

func parseFilter(r *http.Request) (repository.StoryFilter, error) {
	var filter repository.StoryFilter

	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, errInvalidProjectID
		}
		filter.ProjectID = &id
	}

	if v := r.URL.Query().Get("above_threshold"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errInvalidAboveThreshold
		}
		filter.AboveThreshold = &b
	}

	return filter, nil
}
