// Package alerting implements the periodic alert rule evaluator and its
// lifecycle state machine.
package alerting

import (
	"context"
	"log/slog"

	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// Notifier is the dispatch contract for newly created alerts. Delivery
// mechanics live outside the engine; a failed channel is logged and never
// blocks other channels or the sweep.
type Notifier interface {
	Dispatch(ctx context.Context, alert models.Alert, channelID string) error
}

// LogNotifier records dispatches to the log. It is the default when no
// delivery integration is wired.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: utils.ComponentLogger(logger, "notifier")}
}

// Dispatch logs the alert for the channel and reports success.
func (n *LogNotifier) Dispatch(_ context.Context, alert models.Alert, channelID string) error {
	n.logger.Info("alert notification",
		slog.String("channel", channelID),
		slog.String("alert_id", alert.ID),
		slog.String("severity", string(alert.Severity)),
		slog.String("message", alert.Message))
	return nil
}
