package security

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// dedupeCap bounds the (rule, source_ip) burst tracking cache.
const dedupeCap = 1024

// Store is the slice of storage the threat evaluator needs.
type Store interface {
	ListThreatRules(ctx context.Context) ([]models.ThreatDetectionRule, error)
	QuerySecurityEvents(ctx context.Context, eventType, outcome string, since time.Time) ([]models.SecurityEvent, error)
	InsertSecurityAlert(ctx context.Context, alert models.SecurityAlert) error
}

// Evaluator runs threshold threat rules on a periodic sweep and pattern rules
// reactively as events arrive. The correlation rule type is a recognised but
// unimplemented extension point.
type Evaluator struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// seen tracks the newest event timestamp a (rule, source_ip) burst carried
	// when it last alerted. An unchanged burst does not re-alert on the next
	// sweep; any newer matching event does, including a fresh burst after the
	// previous one aged out of the window.
	seen *lru.Cache[string, time.Time]
}

// NewEvaluator constructs the threat rule evaluator.
func NewEvaluator(store Store, logger *slog.Logger) *Evaluator {
	seen, _ := lru.New[string, time.Time](dedupeCap)
	return &Evaluator{
		store:  store,
		logger: utils.ComponentLogger(logger, "threat-evaluator"),
		now:    time.Now,
		seen:   seen,
	}
}

// Sweep evaluates every enabled threshold rule once. Pattern rules only fire
// reactively via CheckEvent; correlation rules are recognised and skipped.
func (e *Evaluator) Sweep(ctx context.Context) error {
	rules, err := e.store.ListThreatRules(ctx)
	if err != nil {
		return fmt.Errorf("list threat rules: %w", err)
	}

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		switch rule.RuleType {
		case models.ThreatRuleThreshold:
			if err := e.evaluateThreshold(ctx, rule); err != nil {
				e.logger.Warn("threshold rule evaluation failed",
					slog.String("rule_id", rule.ID),
					slog.Any("error", err))
			}
		case models.ThreatRulePattern:
			// Evaluated reactively against each new event, not per sweep.
		case models.ThreatRuleCorrelation:
			e.logger.Debug("correlation rules are an unimplemented extension point",
				slog.String("rule_id", rule.ID))
		default:
			e.logger.Warn("unknown threat rule type",
				slog.String("rule_id", rule.ID),
				slog.String("rule_type", string(rule.RuleType)))
		}
	}
	return nil
}

// evaluateThreshold counts events matching (event_type, outcome) inside the
// rule's time window, grouped by source IP, and alerts for every group at or
// above the threshold.
func (e *Evaluator) evaluateThreshold(ctx context.Context, rule models.ThreatDetectionRule) error {
	eventType := rule.Criteria["event_type"]
	outcome := rule.Criteria["outcome"]
	if eventType == "" || outcome == "" {
		return fmt.Errorf("criteria missing event_type or outcome")
	}
	threshold, err := strconv.Atoi(rule.Criteria["threshold"])
	if err != nil || threshold <= 0 {
		return fmt.Errorf("invalid threshold criteria %q", rule.Criteria["threshold"])
	}
	windowSecs, err := strconv.Atoi(rule.Criteria["time_window"])
	if err != nil || windowSecs <= 0 {
		return fmt.Errorf("invalid time_window criteria %q", rule.Criteria["time_window"])
	}

	since := e.now().Add(-time.Duration(windowSecs) * time.Second)
	events, err := e.store.QuerySecurityEvents(ctx, eventType, outcome, since)
	if err != nil {
		return fmt.Errorf("query security events: %w", err)
	}

	groups := make(map[string][]models.SecurityEvent)
	for _, event := range events {
		groups[event.IPAddress] = append(groups[event.IPAddress], event)
	}

	for sourceIP, group := range groups {
		if len(group) < threshold {
			continue
		}

		newest := group[0].Timestamp
		for _, event := range group[1:] {
			if event.Timestamp.After(newest) {
				newest = event.Timestamp
			}
		}

		key := rule.ID + "|" + sourceIP
		if prev, ok := e.seen.Get(key); ok && !newest.After(prev) {
			// Same burst, no new events since the last alert.
			continue
		}

		ids := make([]string, 0, len(group))
		for _, event := range group {
			ids = append(ids, event.ID)
		}

		alert := models.SecurityAlert{
			ID:          uuid.NewString(),
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			Severity:    rule.Severity,
			Status:      models.AlertStatusActive,
			RiskScore:   clampScore(severityScore(rule.Severity) * float64(len(group)) / float64(threshold)),
			SourceIP:    sourceIP,
			EventIDs:    ids,
			TriggeredAt: e.now(),
			Message: fmt.Sprintf("%d %s/%s events from %s within %ds (threshold %d)",
				len(group), eventType, outcome, sourceIP, windowSecs, threshold),
		}
		if err := e.store.InsertSecurityAlert(ctx, alert); err != nil {
			return fmt.Errorf("insert security alert: %w", err)
		}
		e.seen.Add(key, newest)
		metrics.ObserveAlertTransition("threat", "triggered")
		e.logger.Info("security alert triggered",
			slog.String("rule_id", rule.ID),
			slog.String("source_ip", sourceIP),
			slog.Int("events", len(group)))
	}
	return nil
}

// CheckEvent runs every enabled pattern rule against a single newly logged
// event. Called synchronously from the ingestion contract.
func (e *Evaluator) CheckEvent(ctx context.Context, event models.SecurityEvent) {
	rules, err := e.store.ListThreatRules(ctx)
	if err != nil {
		e.logger.Warn("pattern check skipped, rule listing failed", slog.Any("error", err))
		return
	}

	for _, rule := range rules {
		if !rule.Enabled || rule.RuleType != models.ThreatRulePattern {
			continue
		}
		if rule.Criteria["event_type"] != event.EventType ||
			rule.Criteria["action"] != event.Action ||
			rule.Criteria["outcome"] != event.Outcome {
			continue
		}

		alert := models.SecurityAlert{
			ID:          uuid.NewString(),
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			Severity:    rule.Severity,
			Status:      models.AlertStatusActive,
			RiskScore:   event.RiskScore,
			SourceIP:    event.IPAddress,
			EventIDs:    []string{event.ID},
			TriggeredAt: e.now(),
			Message: fmt.Sprintf("pattern %s matched event %s (%s/%s/%s)",
				rule.Name, event.ID, event.EventType, event.Action, event.Outcome),
		}
		if err := e.store.InsertSecurityAlert(ctx, alert); err != nil {
			e.logger.Warn("security alert insert failed",
				slog.String("rule_id", rule.ID),
				slog.Any("error", err))
			continue
		}
		metrics.ObserveAlertTransition("threat", "triggered")
		e.logger.Info("pattern rule matched",
			slog.String("rule_id", rule.ID),
			slog.String("event_id", event.ID))
	}
}
