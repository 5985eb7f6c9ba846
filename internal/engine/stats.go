package engine

import (
	"context"
	"fmt"
	"time"

	"NetSentry/internal/model"
)

// reportingThreshold is the fixed cutoff used for the anomaly counter in
// statistics. It is deliberately independent of the live detection threshold:
// tuning detection sensitivity must not rewrite historical reporting.
const reportingThreshold = 0.75

var windowDurations = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// StatsAggregator computes windowed traffic counters for reporting.
type StatsAggregator struct {
	store model.Store
	now   func() time.Time
}

// NewStatsAggregator creates a StatsAggregator over the given store.
func NewStatsAggregator(store model.Store) *StatsAggregator {
	return &StatsAggregator{store: store, now: time.Now}
}

// WindowStats counts observations, anomalous observations and alerts inside
// the given window. Only the tokens "24h", "7d" and "30d" are accepted. The
// window boundary is captured once so the three counters are mutually
// consistent.
func (s *StatsAggregator) WindowStats(ctx context.Context, timeRange string) (*model.WindowStats, error) {
	duration, ok := windowDurations[timeRange]
	if !ok {
		return nil, fmt.Errorf("%w: got %q", model.ErrInvalidTimeRange, timeRange)
	}

	since := s.now().UTC().Add(-duration)

	total, err := s.store.Traffic().CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	anomalies, err := s.store.Traffic().CountWithScoreAbove(ctx, since, reportingThreshold)
	if err != nil {
		return nil, fmt.Errorf("count anomalous observations: %w", err)
	}
	alerts, err := s.store.Alerts().CountSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}

	return &model.WindowStats{
		TotalObservations:   total,
		AnomalyObservations: anomalies,
		Alerts:              alerts,
	}, nil
}
