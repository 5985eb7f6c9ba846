package model

import "errors"

var (
	// ErrAlertNotFound is returned when an alert id does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidTimeRange is returned for any reporting window other than 24h, 7d or 30d.
	ErrInvalidTimeRange = errors.New("invalid time range: use '24h', '7d', or '30d'")

	// ErrThresholdOutOfRange is returned when a detection threshold update falls outside [0,1].
	ErrThresholdOutOfRange = errors.New("threshold must be between 0 and 1")

	// ErrInvalidAlertStatus is returned for a transition to an unknown status.
	ErrInvalidAlertStatus = errors.New("invalid alert status")

	// ErrScoringUnavailable signals that the scoring backend failed and the
	// fail-open fallback result was used instead. It is logged, never surfaced
	// as a request failure.
	ErrScoringUnavailable = errors.New("scoring backend unavailable")
)
