package classify

import (
	"context"
	"log/slog"
	"time"

	"story-processor/internal/domain/entity"
	"story-processor/internal/observability/metrics"
)

// RetryUnposted re-attempts the publish step for every
// story that was marked above_threshold but never received a posted_date,
// and is older than olderThan (so a story still mid-flight through its
// first Process call is not double-posted). It backs the
// queue-unposted-retry command, a standalone remediation pass distinct
// from the normal worker consumer loop.
//
// Stories are grouped by project so each group is posted in one batch
// against that project's update_post_url, matching the shape the central
// server expects from Process. A project lookup or post failure for one
// group is logged and does not abort the remaining groups; the returned
// error is non-nil only if every group failed.
func (s *Service) RetryUnposted(ctx context.Context, olderThan time.Duration) (int, error) {
	stories, err := s.audit.UnpostedAboveThreshold(ctx, olderThan)
	if err != nil {
		return 0, &entity.AuditStoreError{Op: "unposted_above_threshold", Err: err}
	}
	if len(stories) == 0 {
		return 0, nil
	}

	byProject := make(map[int64][]entity.Story)
	for _, story := range stories {
		byProject[story.ProjectID] = append(byProject[story.ProjectID], story)
	}

	var posted int
	var lastErr error
	attempted := false
	for projectID, group := range byProject {
		attempted = true
		n, err := s.retryProjectGroup(ctx, projectID, group)
		posted += n
		if err != nil {
			lastErr = err
			s.logger.Warn("retry-unposted failed for project",
				slog.Int64("project_id", projectID), slog.Any("error", err))
		}
	}

	if posted == 0 && attempted && lastErr != nil {
		return 0, lastErr
	}
	return posted, nil
}

func (s *Service) retryProjectGroup(ctx context.Context, projectID int64, stories []entity.Story) (int, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return 0, &entity.AuditStoreError{Op: "look up project for retry", Err: err}
	}
	if project.UpdatePostURL == "" {
		return 0, nil
	}

	logDBIDs := make([]int64, len(stories))
	storiesOut := make([]StoryOut, len(stories))
	for i, story := range stories {
		logDBIDs[i] = story.LogDBID
		storiesOut[i] = ToStoryOut(story, project)
	}

	payload := PostPayload{
		Version: s.cfg.Version,
		Project: ToProjectOut(project),
		Stories: storiesOut,
		APIKey:  s.cfg.APIKey,
	}

	if err := s.poster.Post(ctx, project.UpdatePostURL, payload); err != nil {
		metrics.RecordStoryPosted(projectID, "failed")
		return 0, err
	}

	if err := s.audit.UpdatePosted(ctx, logDBIDs); err != nil {
		return 0, &entity.AuditStoreError{Op: "update_posted", Err: err}
	}
	metrics.RecordStoryPosted(projectID, "success")
	return len(stories), nil
}
