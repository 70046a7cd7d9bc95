package alerting

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
)

type recordingNotifier struct {
	dispatched []string
	fail       bool
}

func (n *recordingNotifier) Dispatch(_ context.Context, _ models.Alert, channelID string) error {
	if n.fail {
		return errors.New("channel down")
	}
	n.dispatched = append(n.dispatched, channelID)
	return nil
}

func testRule() models.AlertRule {
	return models.AlertRule{
		ID:                   "rule-1",
		Name:                 "high cpu",
		MetricName:           "cpu.usage",
		Service:              "api",
		Condition:            models.ConditionGT,
		Threshold:            80,
		DurationMinutes:      5,
		Severity:             models.SeverityHigh,
		Enabled:              true,
		NotificationChannels: []string{"ops"},
	}
}

func insertSample(t *testing.T, store *storage.MemoryStorage, name, service string, value float64) {
	t.Helper()
	err := store.InsertMetric(context.Background(), models.Metric{
		Name:      name,
		Service:   service,
		Value:     value,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("insert metric: %v", err)
	}
}

func TestSweepAlertLifecycle(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, notifier, logger)

	if err := store.SaveAlertRule(ctx, testRule()); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	// Breach: one active alert appears and the channel is notified.
	insertSample(t, store, "cpu.usage", "api", 85)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	alerts := store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Status != models.AlertStatusActive {
		t.Fatalf("expected active alert, got %s", alerts[0].Status)
	}
	if len(notifier.dispatched) != 1 || notifier.dispatched[0] != "ops" {
		t.Fatalf("expected one dispatch to ops, got %v", notifier.dispatched)
	}

	// Still breached: no second alert for the same rule.
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if got := len(store.Alerts()); got != 1 {
		t.Fatalf("expected still 1 alert, got %d", got)
	}

	// Recovered: the active alert auto-resolves.
	insertSample(t, store, "cpu.usage", "api", 50)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	alerts = store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert after recovery, got %d", len(alerts))
	}
	if alerts[0].Status != models.AlertStatusResolved {
		t.Fatalf("expected resolved, got %s", alerts[0].Status)
	}
	if alerts[0].ResolvedAt == nil {
		t.Fatalf("resolved alert must carry a resolution time")
	}
}

func TestAcknowledgedAlertNotAutoResolved(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, &recordingNotifier{}, logger)

	if err := store.SaveAlertRule(ctx, testRule()); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	insertSample(t, store, "cpu.usage", "api", 85)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	alerts := store.Alerts()
	if err := store.AcknowledgeAlert(ctx, alerts[0].ID, time.Now()); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// Condition clears, but an acknowledged alert is no longer active and
	// must stay put.
	insertSample(t, store, "cpu.usage", "api", 50)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep after ack: %v", err)
	}
	alerts = store.Alerts()
	if alerts[0].Status != models.AlertStatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", alerts[0].Status)
	}
}

func TestEmptyWindowDoesNothing(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, &recordingNotifier{}, logger)

	if err := store.SaveAlertRule(ctx, testRule()); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := len(store.Alerts()); got != 0 {
		t.Fatalf("expected no alerts without data, got %d", got)
	}
}

func TestRuleWithoutServiceMergesAllServices(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, &recordingNotifier{}, logger)

	rule := testRule()
	rule.Service = ""
	if err := store.SaveAlertRule(ctx, rule); err != nil {
		t.Fatalf("save rule: %v", err)
	}

	insertSample(t, store, "cpu.usage", "api", 50)
	insertSample(t, store, "cpu.usage", "worker", 90)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	alerts := store.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert across services, got %d", len(alerts))
	}
	if alerts[0].CurrentValue != 90 {
		t.Fatalf("expected the newest sample 90, got %f", alerts[0].CurrentValue)
	}
}

func TestDisabledRuleSkipped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, &recordingNotifier{}, logger)

	rule := testRule()
	rule.Enabled = false
	if err := store.SaveAlertRule(ctx, rule); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	insertSample(t, store, "cpu.usage", "api", 95)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if got := len(store.Alerts()); got != 0 {
		t.Fatalf("disabled rule must not trigger, got %d alerts", got)
	}
}

func TestDispatchFailureDoesNotFailSweep(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	eval := NewEvaluator(store, store, &recordingNotifier{fail: true}, logger)

	if err := store.SaveAlertRule(ctx, testRule()); err != nil {
		t.Fatalf("save rule: %v", err)
	}
	insertSample(t, store, "cpu.usage", "api", 85)
	if err := eval.Sweep(ctx); err != nil {
		t.Fatalf("sweep must survive a failed dispatch: %v", err)
	}
	if got := len(store.Alerts()); got != 1 {
		t.Fatalf("alert must persist despite dispatch failure, got %d", got)
	}
}

func TestConditionHolds(t *testing.T) {
	cases := []struct {
		cond      models.Condition
		value     float64
		threshold float64
		want      bool
	}{
		{models.ConditionGT, 81, 80, true},
		{models.ConditionGT, 80, 80, false},
		{models.ConditionLT, 79, 80, true},
		{models.ConditionLT, 80, 80, false},
		{models.ConditionEQ, 80.0005, 80, true},
		{models.ConditionEQ, 80.01, 80, false},
		{models.ConditionNEQ, 80.01, 80, true},
		{models.ConditionNEQ, 80.0005, 80, false},
	}
	for _, tc := range cases {
		if got := conditionHolds(tc.cond, tc.value, tc.threshold); got != tc.want {
			t.Fatalf("%s(%.4f, %.4f): expected %v, got %v",
				tc.cond, tc.value, tc.threshold, tc.want, got)
		}
	}
}

func TestAlertMessageFormat(t *testing.T) {
	rule := testRule()
	got := alertMessage(rule, 85)
	want := "cpu.usage for service api is 85.00, which is above 80.00"
	if got != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", got, want)
	}

	rule.Service = ""
	rule.Condition = models.ConditionLT
	got = alertMessage(rule, 12.5)
	want = "cpu.usage is 12.50, which is below 80.00"
	if got != want {
		t.Fatalf("message mismatch:\n got %q\nwant %q", got, want)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
