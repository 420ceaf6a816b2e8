package story

import "errors"

var (
	errMethodNotAllowed      = errors.New("method not allowed")
	errInvalidProjectID      = errors.New("invalid query parameter: project_id must be a positive integer")
	errInvalidAboveThreshold = errors.New("invalid query parameter: above_threshold must be true or false")
	errInvalidOlderThan      = errors.New("invalid query parameter: older_than_minutes must be a non-negative integer")
)
