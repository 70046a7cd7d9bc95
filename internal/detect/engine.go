package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// Store is the slice of storage the anomaly engine needs.
type Store interface {
	ListDetectionConfigs(ctx context.Context) ([]models.AnomalyDetectionConfig, error)
	ListMetricServices(ctx context.Context, metricName string) ([]string, error)
	InsertAnomaly(ctx context.Context, a models.Anomaly) error
}

// Engine sweeps all enabled detection configs, evaluating the latest point of
// each configured window. Zero or one Anomaly is recorded per config and
// service per sweep.
type Engine struct {
	store   Store
	querier storage.Querier
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine constructs the anomaly engine. querier is typically the cached
// window querier.
func NewEngine(store Store, querier storage.Querier, logger *slog.Logger) *Engine {
	return &Engine{
		store:   store,
		querier: querier,
		logger:  utils.ComponentLogger(logger, "anomaly-engine"),
		now:     time.Now,
	}
}

// Sweep runs one full pass over all detection configs. Failures for a single
// config are contained; only a config listing failure abandons the sweep.
func (e *Engine) Sweep(ctx context.Context) error {
	configs, err := e.store.ListDetectionConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list detection configs: %w", err)
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if err := e.evaluateConfig(ctx, cfg); err != nil {
			e.logger.Warn("detection config evaluation failed",
				slog.String("metric", cfg.MetricName),
				slog.String("service", cfg.Service),
				slog.Any("error", err))
		}
	}
	return nil
}

func (e *Engine) evaluateConfig(ctx context.Context, cfg models.AnomalyDetectionConfig) error {
	services := []string{cfg.Service}
	if cfg.Service == "" || cfg.Service == "all" {
		all, err := e.store.ListMetricServices(ctx, cfg.MetricName)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		services = all
	}

	end := e.now()
	start := end.Add(-time.Duration(cfg.WindowMinutes) * time.Minute)

	for _, service := range services {
		points, err := e.querier.QueryWindow(ctx, cfg.MetricName, service, start, end)
		if err != nil {
			e.logger.Warn("window query failed",
				slog.String("metric", cfg.MetricName),
				slog.String("service", service),
				slog.Any("error", err))
			continue
		}

		res, flagged := Evaluate(cfg, points)
		if !flagged {
			continue
		}

		latest := points[len(points)-1]
		anomaly := models.Anomaly{
			ID:            uuid.NewString(),
			MetricName:    cfg.MetricName,
			Service:       service,
			Timestamp:     latest.Timestamp,
			ActualValue:   latest.Value,
			ExpectedValue: res.Expected,
			Deviation:     res.Deviation,
			Severity:      res.Severity,
			Algorithm:     cfg.Algorithm,
			Description:   Describe(cfg, service, res, latest.Value),
		}
		if err := e.store.InsertAnomaly(ctx, anomaly); err != nil {
			e.logger.Warn("anomaly insert failed", slog.Any("error", err))
			continue
		}
		metrics.ObserveAnomaly(string(cfg.Algorithm))
		e.logger.Info("anomaly recorded",
			slog.String("metric", cfg.MetricName),
			slog.String("service", service),
			slog.String("severity", string(res.Severity)),
			slog.Float64("actual", latest.Value),
			slog.Float64("expected", res.Expected))
	}
	return nil
}
