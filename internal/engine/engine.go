package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"NetSentry/internal/classify"
	"NetSentry/internal/metrics"
	"NetSentry/internal/model"
	"NetSentry/internal/scoring"
	"NetSentry/internal/threshold"
)

// Engine drives the alert lifecycle: it scores observations, classifies them,
// opens alerts past the detection threshold and applies status transitions.
// Engines are safe for concurrent use; the threshold store is the only shared
// mutable state and no lock is held across scoring or persistence calls.
type Engine struct {
	store      model.Store
	scorer     *scoring.Adapter
	thresholds *threshold.Store
	archive    model.TrafficArchiver
	notifier   model.Notifier
	notifyMin  model.ThreatLevel
	now        func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithArchiver mirrors persisted observations into an analytics store.
func WithArchiver(a model.TrafficArchiver) Option {
	return func(e *Engine) { e.archive = a }
}

// WithNotifier sends a notification for every alert at or above min.
func WithNotifier(n model.Notifier, min model.ThreatLevel) Option {
	return func(e *Engine) {
		e.notifier = n
		e.notifyMin = min
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(store model.Store, scorer *scoring.Adapter, thresholds *threshold.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		scorer:     scorer,
		thresholds: thresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Thresholds exposes the engine's detection threshold store.
func (e *Engine) Thresholds() *threshold.Store {
	return e.thresholds
}

// ProcessObservation scores one observation, persists it unconditionally and
// opens an alert assigned to analyst when the score exceeds the current
// detection threshold. The observation and the optional alert are committed as
// one transaction; if either insert fails, nothing is persisted. A scoring
// failure is not an error: the fail-open fallback is used and the observation
// is still recorded.
func (e *Engine) ProcessObservation(ctx context.Context, obs *model.TrafficObservation, analyst string) (*model.ProcessingResult, error) {
	result, scoreErr := e.scorer.Score(ctx, obs.Features())
	if scoreErr != nil {
		log.Printf("Scoring failed for traffic from %s, using fail-open fallback: %v", obs.SourceIP, scoreErr)
		metrics.ScoringFailures.Inc()
	}
	return e.finishObservation(ctx, obs, result, analyst)
}

// ProcessBatch analyzes a batch of observations. Scoring failures fall back
// per item and never abort the batch; a persistence failure aborts the
// remainder, with already-committed items staying committed.
func (e *Engine) ProcessBatch(ctx context.Context, observations []*model.TrafficObservation, analyst string) ([]*model.ProcessingResult, error) {
	features := make([]model.FeatureView, len(observations))
	for i, obs := range observations {
		features[i] = obs.Features()
	}

	scores, failed := e.scorer.ScoreBatch(ctx, features)
	if failed > 0 {
		log.Printf("Scoring failed for %d of %d batch items, using fail-open fallback", failed, len(observations))
		for i := 0; i < failed; i++ {
			metrics.ScoringFailures.Inc()
		}
	}

	results := make([]*model.ProcessingResult, 0, len(observations))
	for i, obs := range observations {
		result, err := e.finishObservation(ctx, obs, scores[i], analyst)
		if err != nil {
			return results, fmt.Errorf("batch item %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) finishObservation(ctx context.Context, obs *model.TrafficObservation, score model.ScoreResult, analyst string) (*model.ProcessingResult, error) {
	obs.AnomalyScore = score.AnomalyScore
	if obs.Timestamp.IsZero() {
		obs.Timestamp = e.now().UTC()
	}

	level := classify.Level(score.AnomalyScore)
	isAnomaly := score.AnomalyScore > e.thresholds.Get()

	var created *model.Alert
	err := e.store.InTx(ctx, func(traffic model.TrafficRepository, alerts model.AlertRepository) error {
		id, err := traffic.Insert(ctx, obs)
		if err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
		obs.ID = id

		if !isAnomaly {
			return nil
		}

		alert := &model.Alert{
			Title:       fmt.Sprintf("Anomalous Traffic Detected from %s", obs.SourceIP),
			Description: fmt.Sprintf("Suspicious network activity detected with anomaly score: %.2f", score.AnomalyScore),
			ThreatLevel: level,
			Status:      model.StatusOpen,
			TrafficID:   id,
			AssignedTo:  analyst,
			CreatedAt:   e.now().UTC(),
		}
		alertID, err := alerts.Insert(ctx, alert)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
		alert.ID = alertID
		created = alert
		return nil
	})
	if err != nil {
		metrics.PersistenceFailures.Inc()
		return nil, err
	}

	metrics.ObservationsProcessed.Inc()
	if created != nil {
		metrics.AlertsCreated.WithLabelValues(level.String()).Inc()
		e.notify(created)
	}
	if e.archive != nil {
		e.archive.Archive(obs)
	}

	return &model.ProcessingResult{
		TrafficID:    obs.ID,
		AlertCreated: created != nil,
		Classification: model.Classification{
			IsAnomaly:    isAnomaly,
			ThreatLevel:  level,
			AnomalyScore: score.AnomalyScore,
			Confidence:   score.Confidence,
		},
	}, nil
}

// TransitionAlert moves an alert to the given status. Any status may move to
// any other; entering resolved or false_positive stamps resolved_at, leaving
// them keeps the last resolution timestamp for the audit trail. Non-empty
// notes overwrite prior notes. Transitioning an alert into the status it
// already holds is a no-op beyond the notes and succeeds.
func (e *Engine) TransitionAlert(ctx context.Context, id int64, status model.AlertStatus, notes string) (*model.Alert, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAlertStatus, status)
	}

	alert, err := e.store.Alerts().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find alert %d: %w", id, err)
	}
	if alert == nil {
		return nil, model.ErrAlertNotFound
	}

	if status.Terminal() && (alert.Status != status || alert.ResolvedAt == nil) {
		resolvedAt := e.now().UTC()
		alert.ResolvedAt = &resolvedAt
	}
	alert.Status = status
	if notes != "" {
		alert.ResolutionNotes = notes
	}

	if err := e.store.Alerts().Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("update alert %d: %w", id, err)
	}
	return alert, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func (e *Engine) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	return e.store.Alerts().List(ctx, filter)
}

func (e *Engine) notify(alert *model.Alert) {
	if e.notifier == nil || alert.ThreatLevel < e.notifyMin {
		return
	}
	go func() {
		subject := fmt.Sprintf("NetSentry %s alert: %s", alert.ThreatLevel, alert.Title)
		body := fmt.Sprintf("<h1>%s</h1><p>%s</p><p>Status: %s, assigned to %s.</p>",
			alert.Title, alert.Description, alert.Status, alert.AssignedTo)
		if err := e.notifier.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send alert notification: %v", err)
		}
	}()
}
