package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"NetSentry/internal/model"
	"NetSentry/internal/scoring"
	"NetSentry/internal/threshold"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- in-memory store fakes ----

type fakeTrafficRepo struct {
	observations []*model.TrafficObservation
	nextID       int64
	failInsert   error
}

func (r *fakeTrafficRepo) Insert(_ context.Context, obs *model.TrafficObservation) (int64, error) {
	if r.failInsert != nil {
		return 0, r.failInsert
	}
	r.nextID++
	stored := *obs
	stored.ID = r.nextID
	r.observations = append(r.observations, &stored)
	return r.nextID, nil
}

func (r *fakeTrafficRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, obs := range r.observations {
		if !obs.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeTrafficRepo) CountWithScoreAbove(_ context.Context, since time.Time, score float64) (int64, error) {
	var n int64
	for _, obs := range r.observations {
		if !obs.Timestamp.Before(since) && obs.AnomalyScore > score {
			n++
		}
	}
	return n, nil
}

type fakeAlertRepo struct {
	alerts     []*model.Alert
	nextID     int64
	failInsert error
}

func (r *fakeAlertRepo) Insert(_ context.Context, alert *model.Alert) (int64, error) {
	if r.failInsert != nil {
		return 0, r.failInsert
	}
	r.nextID++
	stored := *alert
	stored.ID = r.nextID
	r.alerts = append(r.alerts, &stored)
	return r.nextID, nil
}

func (r *fakeAlertRepo) FindByID(_ context.Context, id int64) (*model.Alert, error) {
	for _, alert := range r.alerts {
		if alert.ID == id {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeAlertRepo) Update(_ context.Context, alert *model.Alert) error {
	for i, existing := range r.alerts {
		if existing.ID == alert.ID {
			copied := *alert
			r.alerts[i] = &copied
			return nil
		}
	}
	return errors.New("update of unknown alert")
}

func (r *fakeAlertRepo) List(_ context.Context, filter model.AlertFilter) ([]*model.Alert, error) {
	var out []*model.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		alert := r.alerts[i]
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.Level != nil && alert.ThreatLevel != *filter.Level {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeAlertRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, alert := range r.alerts {
		if !alert.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeStore struct {
	traffic *fakeTrafficRepo
	alerts  *fakeAlertRepo
}

func newFakeStore() *fakeStore {
	return &fakeStore{traffic: &fakeTrafficRepo{}, alerts: &fakeAlertRepo{}}
}

func (s *fakeStore) Traffic() model.TrafficRepository { return s.traffic }
func (s *fakeStore) Alerts() model.AlertRepository    { return s.alerts }
func (s *fakeStore) Close()                           {}

// InTx mimics all-or-nothing persistence by discarding anything fn appended
// when it returns an error.
func (s *fakeStore) InTx(_ context.Context, fn func(model.TrafficRepository, model.AlertRepository) error) error {
	obsMark := len(s.traffic.observations)
	alertMark := len(s.alerts.alerts)
	if err := fn(s.traffic, s.alerts); err != nil {
		s.traffic.observations = s.traffic.observations[:obsMark]
		s.alerts.alerts = s.alerts.alerts[:alertMark]
		return err
	}
	return nil
}

type stubScorer struct {
	result model.ScoreResult
	err    error
}

func (s *stubScorer) Score(context.Context, model.FeatureView) (model.ScoreResult, error) {
	return s.result, s.err
}

func newTestEngine(store model.Store, backend model.Scorer, opts ...Option) *Engine {
	adapter := scoring.NewAdapter(backend, time.Second)
	return New(store, adapter, threshold.NewStore(threshold.DefaultValue), opts...)
}

func sampleObservation() *model.TrafficObservation {
	return &model.TrafficObservation{
		SourceIP:        "203.0.113.7",
		DestinationIP:   "10.0.0.12",
		Protocol:        "TCP",
		SourcePort:      51515,
		DestinationPort: 443,
		PacketSize:      820,
	}
}

// ---- processObservation ----

func TestProcessObservationOpensAlertAboveThreshold(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.82, Confidence: 0.9}})

	result, err := e.ProcessObservation(context.Background(), sampleObservation(), "analyst-7")
	require.NoError(t, err)

	assert.True(t, result.AlertCreated)
	assert.True(t, result.Classification.IsAnomaly)
	assert.Equal(t, model.ThreatLevelHigh, result.Classification.ThreatLevel)
	assert.Equal(t, 0.82, result.Classification.AnomalyScore)

	require.Len(t, store.alerts.alerts, 1)
	alert := store.alerts.alerts[0]
	assert.Equal(t, "Anomalous Traffic Detected from 203.0.113.7", alert.Title)
	assert.Contains(t, alert.Description, "0.82")
	assert.Equal(t, model.StatusOpen, alert.Status)
	assert.Equal(t, model.ThreatLevelHigh, alert.ThreatLevel)
	assert.Equal(t, result.TrafficID, alert.TrafficID)
	assert.Equal(t, "analyst-7", alert.AssignedTo)
	assert.Nil(t, alert.ResolvedAt)
}

func TestProcessObservationBelowThresholdStillPersists(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.72, Confidence: 0.8}})

	result, err := e.ProcessObservation(context.Background(), sampleObservation(), "analyst-7")
	require.NoError(t, err)

	assert.False(t, result.AlertCreated)
	assert.False(t, result.Classification.IsAnomaly)
	assert.Equal(t, model.ThreatLevelMedium, result.Classification.ThreatLevel)
	assert.Len(t, store.traffic.observations, 1, "observation recorded even without an anomaly")
	assert.Empty(t, store.alerts.alerts)
	assert.Equal(t, 0.72, store.traffic.observations[0].AnomalyScore)
}

func TestProcessObservationScoringFailureFailsOpen(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{err: errors.New("model service down")})

	result, err := e.ProcessObservation(context.Background(), sampleObservation(), "analyst-7")
	require.NoError(t, err, "scoring failure is absorbed, not surfaced")

	assert.False(t, result.AlertCreated)
	assert.Equal(t, model.ThreatLevelLow, result.Classification.ThreatLevel)
	assert.Equal(t, 0.0, result.Classification.AnomalyScore)
	assert.Equal(t, 0.0, result.Classification.Confidence)
	require.Len(t, store.traffic.observations, 1)
	assert.Equal(t, 0.0, store.traffic.observations[0].AnomalyScore)
}

func TestProcessObservationRespectsLiveThreshold(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.85, Confidence: 0.9}})

	require.NoError(t, e.Thresholds().Set(ctx, 0.9))
	result, err := e.ProcessObservation(ctx, sampleObservation(), "a")
	require.NoError(t, err)
	assert.False(t, result.AlertCreated, "0.85 is below a raised threshold of 0.9")

	require.NoError(t, e.Thresholds().Set(ctx, 0.5))
	result, err = e.ProcessObservation(ctx, sampleObservation(), "a")
	require.NoError(t, err)
	assert.True(t, result.AlertCreated)
}

func TestProcessObservationRollsBackAsAUnit(t *testing.T) {
	store := newFakeStore()
	store.alerts.failInsert = errors.New("disk full")
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})

	_, err := e.ProcessObservation(context.Background(), sampleObservation(), "a")
	require.Error(t, err)
	assert.Empty(t, store.traffic.observations, "observation must not survive a failed alert insert")
	assert.Empty(t, store.alerts.alerts)
}

func TestProcessBatchContinuesPastScoringFailures(t *testing.T) {
	store := newFakeStore()
	adapter := scoring.NewAdapter(&batchFlakyScorer{failOn: 2}, time.Second)
	e := New(store, adapter, threshold.NewStore(threshold.DefaultValue))

	batch := []*model.TrafficObservation{sampleObservation(), sampleObservation(), sampleObservation()}
	results, err := e.ProcessBatch(context.Background(), batch, "a")
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.True(t, results[0].AlertCreated)
	assert.False(t, results[1].AlertCreated, "failed item fell back to score zero")
	assert.True(t, results[2].AlertCreated)
	assert.Len(t, store.traffic.observations, 3)
}

type batchFlakyScorer struct {
	failOn int
	calls  int
}

func (s *batchFlakyScorer) Score(context.Context, model.FeatureView) (model.ScoreResult, error) {
	s.calls++
	if s.calls == s.failOn {
		return model.ScoreResult{}, errors.New("transient failure")
	}
	return model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}, nil
}

// ---- transitionAlert ----

func openAlert(t *testing.T, e *Engine, store *fakeStore) *model.Alert {
	t.Helper()
	_, err := e.ProcessObservation(context.Background(), sampleObservation(), "analyst-7")
	require.NoError(t, err)
	require.Len(t, store.alerts.alerts, 1)
	return store.alerts.alerts[0]
}

func TestTransitionAlertResolvedSetsTimestamp(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})
	alert := openAlert(t, e, store)

	updated, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusResolved, "benign scanner")
	require.NoError(t, err)

	assert.Equal(t, model.StatusResolved, updated.Status)
	assert.Equal(t, "benign scanner", updated.ResolutionNotes)
	require.NotNil(t, updated.ResolvedAt)
}

func TestTransitionAlertResolvedIsIdempotent(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})
	alert := openAlert(t, e, store)

	first, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusResolved, "")
	require.NoError(t, err)
	require.NotNil(t, first.ResolvedAt)
	stamp := *first.ResolvedAt

	second, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusResolved, "")
	require.NoError(t, err, "repeating the transition is not an error")
	assert.Equal(t, model.StatusResolved, second.Status)
	require.NotNil(t, second.ResolvedAt)
	assert.Equal(t, stamp, *second.ResolvedAt, "resolved_at is set once")
}

func TestTransitionAlertLeavingTerminalKeepsTimestamp(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})
	alert := openAlert(t, e, store)

	resolved, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusFalsePositive, "")
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	reopened, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusInvestigating, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, reopened.Status)
	assert.NotNil(t, reopened.ResolvedAt, "last resolution timestamp is preserved")
}

func TestTransitionAlertNotesOverwrite(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})
	alert := openAlert(t, e, store)

	_, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusInvestigating, "first pass")
	require.NoError(t, err)

	updated, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusInvestigating, "second pass")
	require.NoError(t, err)
	assert.Equal(t, "second pass", updated.ResolutionNotes)

	kept, err := e.TransitionAlert(context.Background(), alert.ID, model.StatusOpen, "")
	require.NoError(t, err)
	assert.Equal(t, "second pass", kept.ResolutionNotes, "empty notes leave prior notes intact")
}

func TestTransitionAlertUnknownID(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{})

	_, err := e.TransitionAlert(context.Background(), 404, model.StatusResolved, "")
	assert.ErrorIs(t, err, model.ErrAlertNotFound)
}

func TestTransitionAlertInvalidStatusRejectedBeforeLookup(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})
	alert := openAlert(t, e, store)

	_, err := e.TransitionAlert(context.Background(), alert.ID, "escalated", "")
	assert.ErrorIs(t, err, model.ErrInvalidAlertStatus)

	unchanged, findErr := store.alerts.FindByID(context.Background(), alert.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.StatusOpen, unchanged.Status, "no state change on validation failure")
}

func TestListAlertsFiltersAndOrdersNewestFirst(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store, &stubScorer{result: model.ScoreResult{AnomalyScore: 0.95, Confidence: 0.9}})

	for i := 0; i < 3; i++ {
		_, err := e.ProcessObservation(context.Background(), sampleObservation(), "a")
		require.NoError(t, err)
	}
	_, err := e.TransitionAlert(context.Background(), 1, model.StatusResolved, "")
	require.NoError(t, err)

	all, err := e.ListAlerts(context.Background(), model.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[2].ID, "newest first")

	open, err := e.ListAlerts(context.Background(), model.AlertFilter{Status: model.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	critical := model.ThreatLevelCritical
	byLevel, err := e.ListAlerts(context.Background(), model.AlertFilter{Level: &critical})
	require.NoError(t, err)
	assert.Len(t, byLevel, 3)
}
