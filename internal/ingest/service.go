// Package ingest implements the canonical ingestion contract. Every protocol
// adapter funnels through this service; it owns required-field validation and
// is the only writer into storage.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// PatternChecker is invoked synchronously for each stored security event so
// pattern threat rules can fire immediately.
type PatternChecker interface {
	CheckEvent(ctx context.Context, event models.SecurityEvent)
}

// RiskScorer computes the deterministic risk score for a security event.
type RiskScorer interface {
	Score(event models.SecurityEvent) float64
}

// MetricInput is the wire-independent shape adapters normalize metrics into.
// A zero Timestamp defaults to ingestion time.
type MetricInput struct {
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// LogInput is the canonical log submission shape.
type LogInput struct {
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// SpanInput is the canonical trace span submission shape. Missing ids are
// generated; DurationMS is derived from the time bounds when absent.
type SpanInput struct {
	TraceID    string            `json:"trace_id,omitempty"`
	SpanID     string            `json:"span_id,omitempty"`
	ParentID   string            `json:"parent_id,omitempty"`
	Operation  string            `json:"operation"`
	Service    string            `json:"service"`
	StartTime  time.Time         `json:"start_time,omitempty"`
	EndTime    time.Time         `json:"end_time,omitempty"`
	DurationMS float64           `json:"duration_ms,omitempty"`
	Status     string            `json:"status,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// SecurityEventInput is the canonical security event submission shape.
type SecurityEventInput struct {
	EventType string            `json:"event_type"`
	Severity  string            `json:"severity,omitempty"`
	Source    string            `json:"source,omitempty"`
	User      string            `json:"user,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	Action    string            `json:"action"`
	Outcome   string            `json:"outcome"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Service is the canonical ingestion contract implementation.
type Service struct {
	store   storage.Storage
	scorer  RiskScorer
	checker PatternChecker
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the ingestion service. scorer and checker may be nil
// when the security surface is not wired (events are then stored unscored).
func NewService(store storage.Storage, scorer RiskScorer, checker PatternChecker, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		scorer:  scorer,
		checker: checker,
		logger:  utils.ComponentLogger(logger, "ingest"),
		now:     time.Now,
	}
}

// IngestMetric validates and stores one metric sample.
func (s *Service) IngestMetric(ctx context.Context, in MetricInput) (models.Metric, error) {
	if in.Name == "" {
		return models.Metric{}, utils.ValidationError("name", "metric name is required")
	}
	if in.Service == "" {
		return models.Metric{}, utils.ValidationError("service", "service is required")
	}
	if math.IsNaN(in.Value) || math.IsInf(in.Value, 0) {
		return models.Metric{}, utils.ValidationError("value", "value must be finite")
	}

	metric := models.Metric{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Value:     in.Value,
		Service:   in.Service,
		Timestamp: in.Timestamp,
		Tags:      in.Tags,
	}
	if metric.Timestamp.IsZero() {
		metric.Timestamp = s.now()
	}
	if metric.Tags == nil {
		metric.Tags = map[string]string{}
	}

	if err := s.store.InsertMetric(ctx, metric); err != nil {
		return models.Metric{}, fmt.Errorf("%w: insert metric: %v", utils.ErrBackendUnavailable, err)
	}
	return metric, nil
}

// IngestLog validates and stores one log entry.
func (s *Service) IngestLog(ctx context.Context, in LogInput) (models.LogEntry, error) {
	if in.Level == "" {
		return models.LogEntry{}, utils.ValidationError("level", "log level is required")
	}
	if in.Message == "" {
		return models.LogEntry{}, utils.ValidationError("message", "log message is required")
	}
	if in.Service == "" {
		return models.LogEntry{}, utils.ValidationError("service", "service is required")
	}

	entry := models.LogEntry{
		ID:        uuid.NewString(),
		Level:     in.Level,
		Message:   in.Message,
		Service:   in.Service,
		Timestamp: in.Timestamp,
		Tags:      in.Tags,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if entry.Tags == nil {
		entry.Tags = map[string]string{}
	}

	if err := s.store.InsertLog(ctx, entry); err != nil {
		return models.LogEntry{}, fmt.Errorf("%w: insert log: %v", utils.ErrBackendUnavailable, err)
	}
	return entry, nil
}

// IngestSpan stores a trace span, generating missing ids and deriving the
// duration from start/end when both are present.
func (s *Service) IngestSpan(ctx context.Context, in SpanInput) (models.TraceSpan, error) {
	if in.Operation == "" {
		return models.TraceSpan{}, utils.ValidationError("operation", "span operation is required")
	}
	if in.Service == "" {
		return models.TraceSpan{}, utils.ValidationError("service", "service is required")
	}

	span := models.TraceSpan{
		TraceID:    in.TraceID,
		SpanID:     in.SpanID,
		ParentID:   in.ParentID,
		Operation:  in.Operation,
		Service:    in.Service,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		DurationMS: in.DurationMS,
		Status:     in.Status,
		Tags:       in.Tags,
	}
	if span.TraceID == "" {
		span.TraceID = uuid.NewString()
	}
	if span.SpanID == "" {
		span.SpanID = uuid.NewString()
	}
	if span.StartTime.IsZero() {
		span.StartTime = s.now()
	}
	if span.DurationMS == 0 && !span.EndTime.IsZero() && span.EndTime.After(span.StartTime) {
		span.DurationMS = float64(span.EndTime.Sub(span.StartTime)) / float64(time.Millisecond)
	}

	if err := s.store.InsertSpan(ctx, span); err != nil {
		return models.TraceSpan{}, fmt.Errorf("%w: insert span: %v", utils.ErrBackendUnavailable, err)
	}
	return span, nil
}

// IngestSecurityEvent scores, stores, and pattern-checks one security event.
// The pattern check runs synchronously so pattern rules react to the event
// that carried them.
func (s *Service) IngestSecurityEvent(ctx context.Context, in SecurityEventInput) (models.SecurityEvent, error) {
	if in.EventType == "" {
		return models.SecurityEvent{}, utils.ValidationError("event_type", "event type is required")
	}
	if in.Action == "" {
		return models.SecurityEvent{}, utils.ValidationError("action", "action is required")
	}
	if in.Outcome == "" {
		return models.SecurityEvent{}, utils.ValidationError("outcome", "outcome is required")
	}

	event := models.SecurityEvent{
		ID:        uuid.NewString(),
		EventType: in.EventType,
		Severity:  models.ParseSeverity(in.Severity),
		Source:    in.Source,
		User:      in.User,
		IPAddress: in.IPAddress,
		Action:    in.Action,
		Outcome:   in.Outcome,
		Timestamp: in.Timestamp,
		Details:   in.Details,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if s.scorer != nil {
		event.RiskScore = s.scorer.Score(event)
	}

	if err := s.store.InsertSecurityEvent(ctx, event); err != nil {
		return models.SecurityEvent{}, fmt.Errorf("%w: insert security event: %v", utils.ErrBackendUnavailable, err)
	}

	if s.checker != nil {
		s.checker.CheckEvent(ctx, event)
	}
	return event, nil
}

// CountIngest records a successful ingestion for the given protocol in the
// engine metrics. Adapters call this after a successful contract call.
func CountIngest(protocol, recordType string) {
	metrics.ObserveIngest(protocol, recordType)
}

// CountRejection records a validation rejection for the record type.
func CountRejection(recordType string) {
	metrics.ObserveValidationFailure(recordType)
}
