package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/models"
)

// maxSamplesPerSeries bounds memory per (name, service) series; oldest
// samples are dropped first.
const maxSamplesPerSeries = 10000

// MemoryStorage is the in-process fallback backend. It is safe for
// concurrent callers.
type MemoryStorage struct {
	mu sync.RWMutex

	series map[string][]models.MetricPoint // keyed name|service
	logs   []models.LogEntry
	spans  []models.TraceSpan
	events []models.SecurityEvent

	alertRules map[string]models.AlertRule
	alerts     map[string]models.Alert

	detectConfigs map[string]models.AnomalyDetectionConfig
	anomalies     []models.Anomaly

	threatRules    map[string]models.ThreatDetectionRule
	securityAlerts map[string]models.SecurityAlert
}

// NewMemoryStorage constructs an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		series:         make(map[string][]models.MetricPoint),
		alertRules:     make(map[string]models.AlertRule),
		alerts:         make(map[string]models.Alert),
		detectConfigs:  make(map[string]models.AnomalyDetectionConfig),
		threatRules:    make(map[string]models.ThreatDetectionRule),
		securityAlerts: make(map[string]models.SecurityAlert),
	}
}

func seriesKey(name, service string) string {
	return name + "|" + service
}

// InsertMetric appends a sample to its series. Duplicates are accepted as
// distinct samples.
func (s *MemoryStorage) InsertMetric(_ context.Context, m models.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(m.Name, m.Service)
	points := append(s.series[key], models.MetricPoint{Timestamp: m.Timestamp, Value: m.Value})
	if len(points) > maxSamplesPerSeries {
		points = points[len(points)-maxSamplesPerSeries:]
	}
	s.series[key] = points
	return nil
}

// QueryWindow returns samples for (metricName, service) inside [start, end],
// ordered by timestamp ascending.
func (s *MemoryStorage) QueryWindow(_ context.Context, metricName, service string, start, end time.Time) ([]models.MetricPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[seriesKey(metricName, service)]
	out := make([]models.MetricPoint, 0, len(points))
	for _, p := range points {
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ListMetricServices reports every service that has samples for metricName.
func (s *MemoryStorage) ListMetricServices(_ context.Context, metricName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := metricName + "|"
	var services []string
	for key := range s.series {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			services = append(services, key[len(prefix):])
		}
	}
	sort.Strings(services)
	return services, nil
}

// InsertLog stores a log entry.
func (s *MemoryStorage) InsertLog(_ context.Context, l models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return nil
}

// QueryLogs returns log entries matching the optional service and level
// filters inside [start, end], ordered by timestamp ascending.
func (s *MemoryStorage) QueryLogs(_ context.Context, service, level string, start, end time.Time) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LogEntry
	for _, l := range s.logs {
		if service != "" && l.Service != service {
			continue
		}
		if level != "" && l.Level != level {
			continue
		}
		if l.Timestamp.Before(start) || l.Timestamp.After(end) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// InsertSpan stores a trace span.
func (s *MemoryStorage) InsertSpan(_ context.Context, span models.TraceSpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = append(s.spans, span)
	return nil
}

// InsertSecurityEvent stores a security event.
func (s *MemoryStorage) InsertSecurityEvent(_ context.Context, e models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// QuerySecurityEvents returns events matching (eventType, outcome) at or
// after since, ordered by timestamp ascending.
func (s *MemoryStorage) QuerySecurityEvents(_ context.Context, eventType, outcome string, since time.Time) ([]models.SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.SecurityEvent
	for _, e := range s.events {
		if e.EventType != eventType || e.Outcome != outcome {
			continue
		}
		if e.Timestamp.Before(since) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// ListAlertRules returns all alert rules.
func (s *MemoryStorage) ListAlertRules(_ context.Context) ([]models.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]models.AlertRule, 0, len(s.alertRules))
	for _, r := range s.alertRules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// SaveAlertRule creates or replaces a rule by id.
func (s *MemoryStorage) SaveAlertRule(_ context.Context, rule models.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertRules[rule.ID] = rule
	return nil
}

// DeleteAlertRule removes a rule by id.
func (s *MemoryStorage) DeleteAlertRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alertRules[id]; !ok {
		return ErrNotFound
	}
	delete(s.alertRules, id)
	return nil
}

// ActiveAlertForRule returns the single active alert for a rule, or nil.
func (s *MemoryStorage) ActiveAlertForRule(_ context.Context, ruleID string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if a.RuleID == ruleID && a.Status == models.AlertStatusActive {
			alert := a
			return &alert, nil
		}
	}
	return nil, nil
}

// InsertAlert stores a new alert.
func (s *MemoryStorage) InsertAlert(_ context.Context, alert models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = alert
	return nil
}

// ResolveAlert transitions an alert to resolved.
func (s *MemoryStorage) ResolveAlert(_ context.Context, alertID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return ErrNotFound
	}
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &at
	s.alerts[alertID] = alert
	return nil
}

// AcknowledgeAlert transitions an active alert to acknowledged. Operator
// action only; the evaluator never calls this. Only active alerts can be
// acknowledged.
func (s *MemoryStorage) AcknowledgeAlert(_ context.Context, alertID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[alertID]
	if !ok {
		return ErrNotFound
	}
	if alert.Status != models.AlertStatusActive {
		return fmt.Errorf("alert %s is %s, only active alerts can be acknowledged", alertID, alert.Status)
	}
	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedAt = &at
	s.alerts[alertID] = alert
	return nil
}

// Alerts returns a copy of all alerts, ordered by trigger time.
func (s *MemoryStorage) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].TriggeredAt.Before(alerts[j].TriggeredAt) })
	return alerts
}

// ListDetectionConfigs returns all anomaly detection configs.
func (s *MemoryStorage) ListDetectionConfigs(_ context.Context) ([]models.AnomalyDetectionConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	configs := make([]models.AnomalyDetectionConfig, 0, len(s.detectConfigs))
	for _, c := range s.detectConfigs {
		configs = append(configs, c)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Key() < configs[j].Key() })
	return configs, nil
}

// UpsertDetectionConfig replaces the config for its (metric, service) key.
func (s *MemoryStorage) UpsertDetectionConfig(_ context.Context, cfg models.AnomalyDetectionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectConfigs[cfg.Key()] = cfg
	return nil
}

// InsertAnomaly appends an anomaly record. Append-only, no dedup.
func (s *MemoryStorage) InsertAnomaly(_ context.Context, a models.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anomalies = append(s.anomalies, a)
	return nil
}

// Anomalies returns a copy of all recorded anomalies.
func (s *MemoryStorage) Anomalies() []models.Anomaly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Anomaly(nil), s.anomalies...)
}

// ListThreatRules returns all threat detection rules.
func (s *MemoryStorage) ListThreatRules(_ context.Context) ([]models.ThreatDetectionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]models.ThreatDetectionRule, 0, len(s.threatRules))
	for _, r := range s.threatRules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// SaveThreatRule creates or replaces a threat rule by id.
func (s *MemoryStorage) SaveThreatRule(_ context.Context, rule models.ThreatDetectionRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threatRules[rule.ID] = rule
	return nil
}

// InsertSecurityAlert stores a new security alert.
func (s *MemoryStorage) InsertSecurityAlert(_ context.Context, alert models.SecurityAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.securityAlerts[alert.ID] = alert
	return nil
}

// SecurityAlerts returns a copy of all security alerts.
func (s *MemoryStorage) SecurityAlerts() []models.SecurityAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := make([]models.SecurityAlert, 0, len(s.securityAlerts))
	for _, a := range s.securityAlerts {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].TriggeredAt.Before(alerts[j].TriggeredAt) })
	return alerts
}
