package models

import "time"

// Metric is a single canonical time-series sample. Immutable once ingested;
// duplicate submissions are accepted as distinct samples.
type Metric struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// MetricPoint is one sample inside a queried window, ordered by timestamp.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// LogEntry is a canonical discrete log record.
type LogEntry struct {
	ID        string            `json:"id"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// TraceSpan captures a single span of a distributed trace.
type TraceSpan struct {
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	Operation  string            `json:"operation"`
	Service    string            `json:"service"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	DurationMS float64           `json:"duration_ms"`
	Status     string            `json:"status,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// SecurityEvent is a canonical discrete security occurrence with a computed
// risk score in [0,100].
type SecurityEvent struct {
	ID        string            `json:"id"`
	EventType string            `json:"event_type"`
	Severity  Severity          `json:"severity"`
	Source    string            `json:"source,omitempty"`
	User      string            `json:"user,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Action    string            `json:"action"`
	Outcome   string            `json:"outcome"`
	RiskScore float64           `json:"risk_score"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// Severity captures impact levels shared by anomalies, alerts and events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity normalises a wire severity string, defaulting to info.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	default:
		return SeverityInfo
	}
}
