package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ThreatLevel is the ordered severity classification derived from an anomaly score.
type ThreatLevel int

const (
	ThreatLevelLow ThreatLevel = iota
	ThreatLevelMedium
	ThreatLevelHigh
	ThreatLevelCritical
)

// String returns the lowercase wire form of the threat level.
func (l ThreatLevel) String() string {
	switch l {
	case ThreatLevelCritical:
		return "critical"
	case ThreatLevelHigh:
		return "high"
	case ThreatLevelMedium:
		return "medium"
	default:
		return "low"
	}
}

// ParseThreatLevel converts a string (either case) into a ThreatLevel.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ThreatLevelLow, nil
	case "medium":
		return ThreatLevelMedium, nil
	case "high":
		return ThreatLevelHigh, nil
	case "critical":
		return ThreatLevelCritical, nil
	default:
		return ThreatLevelLow, fmt.Errorf("unknown threat level: %q", s)
	}
}

// MarshalJSON encodes the level as its lowercase name.
func (l ThreatLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a lowercase or uppercase level name.
func (l *ThreatLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseThreatLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusOpen          AlertStatus = "open"
	StatusInvestigating AlertStatus = "investigating"
	StatusResolved      AlertStatus = "resolved"
	StatusFalsePositive AlertStatus = "false_positive"
)

// Valid reports whether the status is one of the closed set.
func (s AlertStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInvestigating, StatusResolved, StatusFalsePositive:
		return true
	}
	return false
}

// Terminal reports whether the status records a resolution timestamp.
func (s AlertStatus) Terminal() bool {
	return s == StatusResolved || s == StatusFalsePositive
}

// TrafficObservation is a single observed network event. It is immutable once
// persisted; the anomaly score is set exactly once, before insertion.
type TrafficObservation struct {
	ID              int64           `json:"id"`
	SourceIP        string          `json:"source_ip"`
	DestinationIP   string          `json:"destination_ip"`
	Protocol        string          `json:"protocol"`
	SourcePort      int             `json:"source_port"`
	DestinationPort int             `json:"destination_port"`
	PacketSize      int             `json:"packet_size"`
	Timestamp       time.Time       `json:"timestamp"`
	RawData         json.RawMessage `json:"raw_data,omitempty"`
	AnomalyScore    float64         `json:"anomaly_score"`
}

// Features returns the normalized view of the observation handed to scoring backends.
func (o *TrafficObservation) Features() FeatureView {
	return FeatureView{
		SourceIP:        o.SourceIP,
		DestinationIP:   o.DestinationIP,
		Protocol:        o.Protocol,
		SourcePort:      o.SourcePort,
		DestinationPort: o.DestinationPort,
		PacketSize:      o.PacketSize,
	}
}

// Alert is an open investigation tied to exactly one observation. Alerts are
// never deleted; only status and resolution fields change after creation.
type Alert struct {
	ID              int64       `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	ThreatLevel     ThreatLevel `json:"threat_level"`
	Status          AlertStatus `json:"status"`
	TrafficID       int64       `json:"network_traffic_id"`
	AssignedTo      string      `json:"assigned_to"`
	ResolutionNotes string      `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// FeatureView is the input contract of the scoring collaborator.
type FeatureView struct {
	SourceIP        string `json:"source_ip"`
	DestinationIP   string `json:"destination_ip"`
	Protocol        string `json:"protocol"`
	SourcePort      int    `json:"source_port"`
	DestinationPort int    `json:"destination_port"`
	PacketSize      int    `json:"packet_size"`
}

// ScoreResult is the output contract of the scoring collaborator.
type ScoreResult struct {
	AnomalyScore float64 `json:"anomaly_score"`
	Confidence   float64 `json:"confidence"`
}

// Classification is the derived per-observation verdict. It is computed fresh
// for every observation and never cached, since the detection threshold may
// change between calls.
type Classification struct {
	IsAnomaly    bool        `json:"is_anomaly"`
	ThreatLevel  ThreatLevel `json:"threat_level"`
	AnomalyScore float64     `json:"anomaly_score"`
	Confidence   float64     `json:"confidence"`
}

// ProcessingResult is returned by the engine for every analyzed observation.
type ProcessingResult struct {
	TrafficID      int64          `json:"traffic_id"`
	AlertCreated   bool           `json:"alert_created"`
	Classification Classification `json:"analysis"`
}

// WindowStats holds the windowed traffic counters for reporting.
type WindowStats struct {
	TotalObservations   int64 `json:"total_observations"`
	AnomalyObservations int64 `json:"anomaly_observations"`
	Alerts              int64 `json:"alerts"`
}

// AlertFilter narrows alert listings. Zero values match everything.
type AlertFilter struct {
	Status AlertStatus
	Level  *ThreatLevel
}
