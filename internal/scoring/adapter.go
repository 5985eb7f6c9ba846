package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"NetSentry/internal/model"
)

// fallback is the fail-open result used whenever the backend cannot produce a
// score: a zero score reads as "no anomaly detected", so a broken scoring
// backend degrades detection instead of blocking ingestion.
var fallback = model.ScoreResult{AnomalyScore: 0.0, Confidence: 0.0}

// Adapter wraps the scoring collaborator, bounds its latency, normalizes its
// output into [0,1] and absorbs its failures.
type Adapter struct {
	backend model.Scorer
	timeout time.Duration
}

// NewAdapter creates an adapter around the given backend. A non-positive
// timeout defaults to 5s.
func NewAdapter(backend model.Scorer, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{backend: backend, timeout: timeout}
}

// Score calls the backend and returns its clamped result. On any failure the
// returned result is the fail-open fallback and the error wraps
// model.ErrScoringUnavailable; callers log it and proceed with the fallback.
// The error is never a reason to fail the surrounding request.
func (a *Adapter) Score(ctx context.Context, features model.FeatureView) (model.ScoreResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.backend.Score(ctx, features)
	if err != nil {
		return fallback, fmt.Errorf("%w: %v", model.ErrScoringUnavailable, err)
	}
	if math.IsNaN(result.AnomalyScore) || math.IsNaN(result.Confidence) {
		return fallback, fmt.Errorf("%w: backend returned NaN", model.ErrScoringUnavailable)
	}

	result.AnomalyScore = clamp01(result.AnomalyScore)
	result.Confidence = clamp01(result.Confidence)
	return result, nil
}

// ScoreBatch scores every item independently, applying the per-item fallback.
// The returned slice is always the same length as the input; failed is the
// number of items that fell back.
func (a *Adapter) ScoreBatch(ctx context.Context, features []model.FeatureView) (results []model.ScoreResult, failed int) {
	results = make([]model.ScoreResult, len(features))
	for i, f := range features {
		result, err := a.Score(ctx, f)
		if err != nil {
			failed++
		}
		results[i] = result
	}
	return results, failed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
