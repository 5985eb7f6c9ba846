package model

import (
	"context"
	"time"
)

// TrafficRepository persists traffic observations.
type TrafficRepository interface {
	// Insert stores an observation and returns its assigned id.
	Insert(ctx context.Context, obs *TrafficObservation) (int64, error)

	// CountSince counts observations with timestamp >= since.
	CountSince(ctx context.Context, since time.Time) (int64, error)

	// CountWithScoreAbove counts observations with timestamp >= since and a
	// stored anomaly score strictly greater than score.
	CountWithScoreAbove(ctx context.Context, since time.Time, score float64) (int64, error)
}

// AlertRepository persists alerts.
type AlertRepository interface {
	// Insert stores an alert and returns its assigned id.
	Insert(ctx context.Context, alert *Alert) (int64, error)

	// FindByID returns the alert with the given id, or nil if it does not exist.
	FindByID(ctx context.Context, id int64) (*Alert, error)

	// Update rewrites the mutable fields of an existing alert.
	Update(ctx context.Context, alert *Alert) error

	// List returns alerts matching the filter, newest first.
	List(ctx context.Context, filter AlertFilter) ([]*Alert, error)

	// CountSince counts alerts created at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// Store bundles the repositories over one backing database and provides the
// transactional unit the engine needs for all-or-nothing persistence.
type Store interface {
	Traffic() TrafficRepository
	Alerts() AlertRepository

	// InTx runs fn with repositories bound to a single transaction. If fn
	// returns an error the transaction is rolled back and nothing is persisted.
	InTx(ctx context.Context, fn func(traffic TrafficRepository, alerts AlertRepository) error) error

	Close()
}
