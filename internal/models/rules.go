package models

import "time"

// Condition enumerates alert rule comparison operators.
type Condition string

const (
	ConditionGT  Condition = "gt"
	ConditionLT  Condition = "lt"
	ConditionEQ  Condition = "eq"
	ConditionNEQ Condition = "neq"
)

// AlertRule is an operator-defined metric threshold rule. The evaluator reads
// rules each cycle; writes come from the operator surface.
type AlertRule struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	MetricName           string    `json:"metric_name"`
	Service              string    `json:"service,omitempty"`
	Condition            Condition `json:"condition"`
	Threshold            float64   `json:"threshold"`
	DurationMinutes      int       `json:"duration_minutes"`
	Severity             Severity  `json:"severity"`
	Enabled              bool      `json:"enabled"`
	NotificationChannels []string  `json:"notification_channels,omitempty"`
}

// AlertStatus is the alert lifecycle state.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert records one firing of an AlertRule. At most one active Alert exists
// per rule id at any time.
type Alert struct {
	ID             string      `json:"id"`
	RuleID         string      `json:"rule_id"`
	CurrentValue   float64     `json:"current_value"`
	Threshold      float64     `json:"threshold"`
	Condition      Condition   `json:"condition"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	Message        string      `json:"message"`
}

// Algorithm selects the statistical method used by anomaly detection.
type Algorithm string

const (
	AlgorithmZScore        Algorithm = "zscore"
	AlgorithmIQR           Algorithm = "iqr"
	AlgorithmMovingAverage Algorithm = "moving_average"
	AlgorithmSeasonal      Algorithm = "seasonal"
)

// AnomalyDetectionConfig configures one detector instance. Keyed by
// (metric_name, service|"all"); at most one config per key.
type AnomalyDetectionConfig struct {
	MetricName    string    `json:"metric_name"`
	Service       string    `json:"service,omitempty"`
	Algorithm     Algorithm `json:"algorithm"`
	Sensitivity   int       `json:"sensitivity"`
	WindowMinutes int       `json:"window_minutes"`
	Enabled       bool      `json:"enabled"`
}

// Key returns the config's identity key, folding an empty service to "all".
func (c AnomalyDetectionConfig) Key() string {
	service := c.Service
	if service == "" {
		service = "all"
	}
	return c.MetricName + "|" + service
}

// Anomaly is an append-only record of a flagged metric point. Each sweep that
// still finds deviation emits a new record; there is no dedup.
type Anomaly struct {
	ID            string    `json:"id"`
	MetricName    string    `json:"metric_name"`
	Service       string    `json:"service"`
	Timestamp     time.Time `json:"timestamp"`
	ActualValue   float64   `json:"actual_value"`
	ExpectedValue float64   `json:"expected_value"`
	Deviation     float64   `json:"deviation"`
	Severity      Severity  `json:"severity"`
	Algorithm     Algorithm `json:"algorithm"`
	Description   string    `json:"description"`
}

// ThreatRuleType enumerates threat detection rule families.
type ThreatRuleType string

const (
	ThreatRuleThreshold   ThreatRuleType = "threshold"
	ThreatRulePattern     ThreatRuleType = "pattern"
	ThreatRuleCorrelation ThreatRuleType = "correlation"
)

// ThreatDetectionRule is a security rule whose criteria map is interpreted
// per rule type.
type ThreatDetectionRule struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	RuleType ThreatRuleType    `json:"rule_type"`
	Criteria map[string]string `json:"criteria"`
	Severity Severity          `json:"severity"`
	Enabled  bool              `json:"enabled"`
}

// SecurityAlert records a threat rule firing over one or more events.
type SecurityAlert struct {
	ID             string      `json:"id"`
	RuleID         string      `json:"rule_id"`
	RuleName       string      `json:"rule_name"`
	Severity       Severity    `json:"severity"`
	Status         AlertStatus `json:"status"`
	RiskScore      float64     `json:"risk_score"`
	SourceIP       string      `json:"source_ip,omitempty"`
	EventIDs       []string    `json:"event_ids"`
	TriggeredAt    time.Time   `json:"triggered_at"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	Message        string      `json:"message"`
}
