package entity

import "time"

// ProjectHistory is the per-project watermark the Scheduler uses to bound
// a source scan: (last_processed_id, last_publish_date, last_url). It is
// advisory — the audit store and the central server remain the final
// de-duplication authority.
type ProjectHistory struct {
	ProjectID       int64
	LastProcessedID int64
	LastPublishDate time.Time
	LastURL         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Advance returns a copy of h with the watermark moved forward to the
// given publish date and URL, never backward. publishDate is only applied
// if it is later than the current LastPublishDate; lastURL always
// overwrites (it anchors "the first article seen in this batch", which is
// meaningful even when publishDate ties).
func (h ProjectHistory) Advance(publishDate time.Time, lastURL string, now time.Time) ProjectHistory {
	next := h
	if publishDate.After(h.LastPublishDate) {
		next.LastPublishDate = publishDate
	}
	if lastURL != "" {
		next.LastURL = lastURL
	}
	next.UpdatedAt = now
	return next
}
