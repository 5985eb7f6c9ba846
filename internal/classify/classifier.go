package classify

import "NetSentry/internal/model"

// Breakpoints for the score-to-level mapping. Lower bounds are exclusive and
// evaluated highest-first. The mapping is independent of the mutable detection
// threshold: scores in (0.7, 0.75] classify as medium but do not open an alert
// under the default threshold, which is intentional.
const (
	criticalAbove = 0.9
	highAbove     = 0.8
	mediumAbove   = 0.7
)

// Level maps an anomaly score to a threat level. Scores outside [0,1] are
// effectively clamped: anything above 0.9 is critical, anything at or below
// 0.7 is low. The mapping is pure and deterministic.
func Level(score float64) model.ThreatLevel {
	switch {
	case score > criticalAbove:
		return model.ThreatLevelCritical
	case score > highAbove:
		return model.ThreatLevelHigh
	case score > mediumAbove:
		return model.ThreatLevelMedium
	default:
		return model.ThreatLevelLow
	}
}
