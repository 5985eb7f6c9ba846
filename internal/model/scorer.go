package model

import "context"

// Scorer is the pluggable scoring collaborator. Implementations may call out
// to a remote model service or compute locally; the engine only depends on
// this contract and treats any failure as untrusted.
type Scorer interface {
	// Score returns an anomaly score and a confidence, both in [0,1].
	Score(ctx context.Context, features FeatureView) (ScoreResult, error)
}
