package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"NetSentry/internal/model"
)

// RemoteScorer calls an external model service over HTTP. The service accepts
// a JSON feature record and answers {"anomaly_score": x, "confidence": y}.
type RemoteScorer struct {
	endpoint string
	client   *http.Client
}

// NewRemoteScorer creates a scorer for the given prediction endpoint. Request
// deadlines come from the caller's context; the adapter bounds them.
func NewRemoteScorer(endpoint string) (*RemoteScorer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("scoring endpoint is not configured")
	}
	return &RemoteScorer{endpoint: endpoint, client: &http.Client{}}, nil
}

// Score posts the features to the model service and decodes its result.
func (r *RemoteScorer) Score(ctx context.Context, features model.FeatureView) (model.ScoreResult, error) {
	body, err := json.Marshal(features)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("build scoring request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("call model service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ScoreResult{}, fmt.Errorf("model service returned status %d", resp.StatusCode)
	}

	var result model.ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.ScoreResult{}, fmt.Errorf("decode model service response: %w", err)
	}
	return result, nil
}
