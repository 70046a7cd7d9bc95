package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArashiWander/Argus-sub001/internal/adapters"
	"github.com/ArashiWander/Argus-sub001/internal/adapters/grpcserver"
	"github.com/ArashiWander/Argus-sub001/internal/alerting"
	"github.com/ArashiWander/Argus-sub001/internal/cache"
	"github.com/ArashiWander/Argus-sub001/internal/config"
	"github.com/ArashiWander/Argus-sub001/internal/detect"
	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/metrics"
	"github.com/ArashiWander/Argus-sub001/internal/sched"
	"github.com/ArashiWander/Argus-sub001/internal/security"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting argus-engine")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// The memory backend is the only in-tree store; config validation
	// already rejected anything else.
	store := storage.NewMemoryStorage()

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}
	windowQuerier := storage.NewCachedQuerier(store, cacheProvider, cfg.Cache.WindowTTL, logger)

	threatEvaluator := security.NewEvaluator(store, logger)
	ingestService := ingest.NewService(store, security.NewRiskScorer(), threatEvaluator, logger)

	var notifier alerting.Notifier = alerting.NewLogNotifier(logger)

	var adapterSet []adapters.Adapter
	if cfg.Protocols.HTTP.Enabled {
		adapterSet = append(adapterSet, adapters.NewHTTPAdapter(cfg.Protocols.HTTP.Address, ingestService, logger))
	}
	if cfg.Protocols.GRPC.Enabled {
		telemetryService := grpcserver.NewTelemetryService(ingestService, store, logger)
		adapterSet = append(adapterSet, grpcserver.NewServer(cfg.Protocols.GRPC.Address, telemetryService))
	}
	if cfg.Protocols.MQTT.Enabled {
		adapterSet = append(adapterSet, adapters.NewMQTTAdapter(cfg.Protocols.MQTT, ingestService, logger))
	}
	if cfg.Protocols.Kafka.Enabled {
		kafkaAdapter := adapters.NewKafkaAdapter(cfg.Protocols.Kafka, ingestService, logger)
		adapterSet = append(adapterSet, kafkaAdapter)
		// Triggered alerts map back out onto the argus-alerts topic.
		notifier = kafkaAdapter
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var running []adapters.Adapter
	for _, adapter := range adapterSet {
		if err := adapter.Start(ctx); err != nil {
			logger.Error("adapter failed to start",
				slog.String("adapter", adapter.Name()), slog.Any("error", err))
			continue
		}
		logger.Info("adapter started", slog.String("adapter", adapter.Name()))
		running = append(running, adapter)
	}
	if len(running) == 0 {
		logger.Error("no protocol adapter could start")
		os.Exit(1)
	}

	alertEvaluator := alerting.NewEvaluator(store, windowQuerier, notifier, logger)
	anomalyEngine := detect.NewEngine(store, windowQuerier, logger)

	loops := []*sched.Loop{
		sched.NewLoop("alert-evaluator", cfg.Evaluators.AlertInterval, alertEvaluator.Sweep, logger),
		sched.NewLoop("anomaly-engine", cfg.Evaluators.AnomalyInterval, anomalyEngine.Sweep, logger),
		sched.NewLoop("threat-evaluator", cfg.Evaluators.ThreatInterval, threatEvaluator.Sweep, logger),
	}
	var loopWG sync.WaitGroup
	for _, loop := range loops {
		loopWG.Add(1)
		go func(loop *sched.Loop) {
			defer loopWG.Done()
			loop.Run(ctx)
		}(loop)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	for _, adapter := range running {
		if err := adapter.Stop(shutdownCtx); err != nil {
			logger.Warn("adapter shutdown",
				slog.String("adapter", adapter.Name()), slog.Any("error", err))
		}
	}
	loopWG.Wait()

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("argus-engine stopped")
}
