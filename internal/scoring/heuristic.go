package scoring

import (
	"context"
	"strings"

	"NetSentry/internal/model"
)

// Ports commonly probed or abused; contacting them raises the score.
var suspiciousPorts = map[int]float64{
	23:    0.30, // telnet
	445:   0.30, // smb
	1433:  0.25, // mssql
	3389:  0.30, // rdp
	4444:  0.40, // common reverse-shell port
	5900:  0.25, // vnc
	6667:  0.25, // irc
	31337: 0.45,
}

// HeuristicScorer is a local rule-based scoring backend for deployments that
// run without a model service. It is deterministic: equal features always
// produce the same result.
type HeuristicScorer struct{}

// NewHeuristicScorer creates the rule-based backend.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score derives an anomaly score from port, protocol and size signals.
func (h *HeuristicScorer) Score(_ context.Context, features model.FeatureView) (model.ScoreResult, error) {
	score := 0.05

	if w, ok := suspiciousPorts[features.DestinationPort]; ok {
		score += w
	}
	if w, ok := suspiciousPorts[features.SourcePort]; ok {
		score += w / 2
	}

	// Port 0 never appears in legitimate TCP/UDP traffic.
	if features.SourcePort == 0 || features.DestinationPort == 0 {
		score += 0.35
	}

	switch strings.ToUpper(features.Protocol) {
	case "TCP", "UDP":
		// Baseline protocols, no adjustment.
	case "ICMP":
		score += 0.10
	default:
		score += 0.20
	}

	// Oversized datagrams and empty packets both stand out.
	if features.PacketSize > 9000 {
		score += 0.25
	} else if features.PacketSize == 0 {
		score += 0.10
	}

	if score > 1 {
		score = 1
	}

	// Rule hits far from the baseline are the ones the rules are sure about.
	confidence := 0.5 + score/2
	return model.ScoreResult{AnomalyScore: score, Confidence: confidence}, nil
}
