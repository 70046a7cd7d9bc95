package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// eqTolerance absorbs floating point noise for eq/neq conditions.
const eqTolerance = 0.001

// Store is the slice of storage the alert evaluator needs.
type Store interface {
	ListAlertRules(ctx context.Context) ([]models.AlertRule, error)
	ListMetricServices(ctx context.Context, metricName string) ([]string, error)
	ActiveAlertForRule(ctx context.Context, ruleID string) (*models.Alert, error)
	InsertAlert(ctx context.Context, alert models.Alert) error
	ResolveAlert(ctx context.Context, alertID string, at time.Time) error
}

// Evaluator drives the alert state machine: a rule with a newly satisfied
// condition creates exactly one active alert; a no-longer-satisfied condition
// auto-resolves it. Acknowledged alerts are only moved by operator action.
type Evaluator struct {
	store     Store
	querier   storage.Querier
	notifier  Notifier
	logger    *slog.Logger
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewEvaluator constructs the alert rule evaluator.
func NewEvaluator(store Store, querier storage.Querier, notifier Notifier, logger *slog.Logger) *Evaluator {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Evaluator{
		store:     store,
		querier:   querier,
		notifier:  notifier,
		logger:    utils.ComponentLogger(logger, "alert-evaluator"),
		latencies: utils.NewLatencyTracker(256),
		now:       time.Now,
	}
}

// Sweep evaluates every enabled rule once. A single rule's failure is
// contained; only a rule listing failure abandons the sweep.
func (e *Evaluator) Sweep(ctx context.Context) error {
	start := e.now()

	rules, err := e.store.ListAlertRules(ctx)
	if err != nil {
		return fmt.Errorf("list alert rules: %w", err)
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if err := e.evaluateRule(ctx, rule); err != nil {
			e.logger.Warn("rule evaluation failed",
				slog.String("rule_id", rule.ID),
				slog.String("rule", rule.Name),
				slog.Any("error", err))
		}
	}

	e.latencies.Observe(time.Since(start))
	if count := e.latencies.Count(); count >= 20 && count%20 == 0 {
		e.logger.Info("sweep latency",
			slog.Duration("p95", e.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
	return nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule models.AlertRule) error {
	latest, ok, err := e.latestValue(ctx, rule)
	if err != nil {
		return err
	}
	if !ok {
		// No data points: neither trigger nor resolve.
		return nil
	}

	satisfied := conditionHolds(rule.Condition, latest, rule.Threshold)

	active, err := e.store.ActiveAlertForRule(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("active alert lookup: %w", err)
	}

	switch {
	case satisfied && active == nil:
		return e.trigger(ctx, rule, latest)
	case !satisfied && active != nil:
		if err := e.store.ResolveAlert(ctx, active.ID, e.now()); err != nil {
			return fmt.Errorf("resolve alert: %w", err)
		}
		metrics.ObserveAlertTransition("alert", "resolved")
		e.logger.Info("alert auto-resolved",
			slog.String("rule_id", rule.ID),
			slog.String("alert_id", active.ID),
			slog.Float64("value", latest))
	}
	return nil
}

// latestValue returns the most recent sample inside the rule's window. Rules
// without a service evaluate the metric across every service seen for it.
func (e *Evaluator) latestValue(ctx context.Context, rule models.AlertRule) (float64, bool, error) {
	end := e.now()
	start := end.Add(-time.Duration(rule.DurationMinutes) * time.Minute)

	services := []string{rule.Service}
	if rule.Service == "" {
		all, err := e.store.ListMetricServices(ctx, rule.MetricName)
		if err != nil {
			return 0, false, fmt.Errorf("list services: %w", err)
		}
		services = all
	}

	var points []models.MetricPoint
	for _, service := range services {
		window, err := e.querier.QueryWindow(ctx, rule.MetricName, service, start, end)
		if err != nil {
			return 0, false, fmt.Errorf("query window: %w", err)
		}
		points = append(points, window...)
	}
	if len(points) == 0 {
		return 0, false, nil
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points[len(points)-1].Value, true, nil
}

func (e *Evaluator) trigger(ctx context.Context, rule models.AlertRule, value float64) error {
	alert := models.Alert{
		ID:           uuid.NewString(),
		RuleID:       rule.ID,
		CurrentValue: value,
		Threshold:    rule.Threshold,
		Condition:    rule.Condition,
		Severity:     rule.Severity,
		Status:       models.AlertStatusActive,
		TriggeredAt:  e.now(),
		Message:      alertMessage(rule, value),
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	metrics.ObserveAlertTransition("alert", "triggered")
	e.logger.Info("alert triggered",
		slog.String("rule_id", rule.ID),
		slog.String("alert_id", alert.ID),
		slog.String("message", alert.Message))

	for _, channel := range rule.NotificationChannels {
		if err := e.notifier.Dispatch(ctx, alert, channel); err != nil {
			metrics.ObserveDispatchFailure()
			e.logger.Warn("notification dispatch failed",
				slog.String("channel", channel),
				slog.String("alert_id", alert.ID),
				slog.Any("error", err))
		}
	}
	return nil
}

// conditionHolds evaluates the rule condition: strict inequality for gt/lt,
// tolerance-based equality for eq/neq.
func conditionHolds(cond models.Condition, value, threshold float64) bool {
	switch cond {
	case models.ConditionGT:
		return value > threshold
	case models.ConditionLT:
		return value < threshold
	case models.ConditionEQ:
		return math.Abs(value-threshold) <= eqTolerance
	case models.ConditionNEQ:
		return math.Abs(value-threshold) > eqTolerance
	default:
		return false
	}
}

func alertMessage(rule models.AlertRule, value float64) string {
	scope := ""
	if rule.Service != "" {
		scope = fmt.Sprintf(" for service %s", rule.Service)
	}
	return fmt.Sprintf("%s%s is %.2f, which is %s %.2f",
		rule.MetricName, scope, value, conditionPhrase(rule.Condition), rule.Threshold)
}

func conditionPhrase(cond models.Condition) string {
	switch cond {
	case models.ConditionGT:
		return "above"
	case models.ConditionLT:
		return "below"
	case models.ConditionEQ:
		return "equal to"
	case models.ConditionNEQ:
		return "not equal to"
	default:
		return string(cond)
	}
}
