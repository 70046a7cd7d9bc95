// Package security implements deterministic risk scoring of security events
// and the threat rule evaluator.
package security

import "github.com/ArashiWander/Argus-sub001/internal/models"

// baseScores assigns a base risk per event type. Unknown types get a
// conservative middle score.
var baseScores = map[string]float64{
	"authentication":       20,
	"authorization":        25,
	"data_access":          40,
	"configuration_change": 50,
	"privilege_escalation": 70,
	"intrusion_attempt":    80,
	"malware_detection":    90,
}

const defaultBaseScore = 30

// RiskScorer computes the deterministic risk score for a security event:
// base score by event type, scaled by severity and outcome, clamped to
// [0, 100].
type RiskScorer struct{}

// NewRiskScorer constructs a RiskScorer.
func NewRiskScorer() *RiskScorer {
	return &RiskScorer{}
}

// Score computes the event's risk score.
func (RiskScorer) Score(event models.SecurityEvent) float64 {
	score, ok := baseScores[event.EventType]
	if !ok {
		score = defaultBaseScore
	}

	switch event.Severity {
	case models.SeverityLow:
		score *= 1.5
	case models.SeverityMedium:
		score *= 2
	case models.SeverityHigh:
		score *= 2.5
	case models.SeverityCritical:
		score *= 3
	}

	switch event.Outcome {
	case "failure":
		score *= 1.5
	case "blocked":
		score *= 0.8
	}

	return clampScore(score)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// severityScore maps a rule severity to a base alert risk score.
func severityScore(severity models.Severity) float64 {
	switch severity {
	case models.SeverityCritical:
		return 90
	case models.SeverityHigh:
		return 75
	case models.SeverityMedium:
		return 50
	case models.SeverityLow:
		return 25
	default:
		return 10
	}
}
