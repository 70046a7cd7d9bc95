package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/models"
)

// ErrNotFound signals a lookup that matched nothing.
var ErrNotFound = errors.New("not found")

// Querier is the metric query port used by the evaluators. Points come back
// ordered by timestamp ascending.
type Querier interface {
	QueryWindow(ctx context.Context, metricName, service string, start, end time.Time) ([]models.MetricPoint, error)
}

// Storage is the full persistence surface behind the ingestion contract and
// the evaluators. The active backend is selected at startup via config; the
// canonical contract never assumes a single writer.
type Storage interface {
	Querier

	InsertMetric(ctx context.Context, m models.Metric) error
	InsertLog(ctx context.Context, l models.LogEntry) error
	QueryLogs(ctx context.Context, service, level string, start, end time.Time) ([]models.LogEntry, error)
	InsertSpan(ctx context.Context, s models.TraceSpan) error
	InsertSecurityEvent(ctx context.Context, e models.SecurityEvent) error

	// ListMetricServices reports every service seen for a metric name, so
	// "all"-scoped detection configs can fan out.
	ListMetricServices(ctx context.Context, metricName string) ([]string, error)

	ListAlertRules(ctx context.Context) ([]models.AlertRule, error)
	SaveAlertRule(ctx context.Context, rule models.AlertRule) error
	DeleteAlertRule(ctx context.Context, id string) error

	ActiveAlertForRule(ctx context.Context, ruleID string) (*models.Alert, error)
	InsertAlert(ctx context.Context, alert models.Alert) error
	ResolveAlert(ctx context.Context, alertID string, at time.Time) error
	AcknowledgeAlert(ctx context.Context, alertID string, at time.Time) error

	ListDetectionConfigs(ctx context.Context) ([]models.AnomalyDetectionConfig, error)
	UpsertDetectionConfig(ctx context.Context, cfg models.AnomalyDetectionConfig) error
	InsertAnomaly(ctx context.Context, a models.Anomaly) error

	ListThreatRules(ctx context.Context) ([]models.ThreatDetectionRule, error)
	SaveThreatRule(ctx context.Context, rule models.ThreatDetectionRule) error
	QuerySecurityEvents(ctx context.Context, eventType, outcome string, since time.Time) ([]models.SecurityEvent, error)
	InsertSecurityAlert(ctx context.Context, alert models.SecurityAlert) error
}
