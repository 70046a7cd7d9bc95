package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/ArashiWander/Argus-sub001/internal/config"
	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/models"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

const (
	kafkaMetricsTopic = "argus-metrics"
	kafkaLogsTopic    = "argus-logs"
	kafkaTracesTopic  = "argus-traces"
	kafkaAlertsTopic  = "argus-alerts"
)

// KafkaAdapter consumes JSON telemetry from the argus-* topics and publishes
// triggered alerts back out on argus-alerts. Each consumer processes one
// message to completion before reading the next; the three consumers run in
// parallel.
type KafkaAdapter struct {
	cfg     config.KafkaConfig
	service *ingest.Service
	logger  *slog.Logger

	readers []*kafka.Reader
	writer  *kafka.Writer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaAdapter constructs the Kafka adapter.
func NewKafkaAdapter(cfg config.KafkaConfig, service *ingest.Service, logger *slog.Logger) *KafkaAdapter {
	return &KafkaAdapter{
		cfg:     cfg,
		service: service,
		logger:  utils.ComponentLogger(logger, "kafka-adapter"),
	}
}

// Name identifies the adapter.
func (a *KafkaAdapter) Name() string { return "kafka" }

// Start spawns one consumer goroutine per telemetry topic and prepares the
// alert publisher.
func (a *KafkaAdapter) Start(_ context.Context) error {
	if len(a.cfg.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.writer = &kafka.Writer{
		Addr:     kafka.TCP(a.cfg.Brokers...),
		Topic:    kafkaAlertsTopic,
		Balancer: &kafka.Hash{},
	}

	topics := map[string]func(context.Context, kafka.Message){
		kafkaMetricsTopic: a.consumeMetric,
		kafkaLogsTopic:    a.consumeLog,
		kafkaTracesTopic:  a.consumeSpan,
	}
	for topic, handle := range topics {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: a.cfg.Brokers,
			GroupID: a.cfg.GroupID,
			Topic:   topic,
		})
		a.readers = append(a.readers, reader)

		a.wg.Add(1)
		go func(reader *kafka.Reader, topic string, handle func(context.Context, kafka.Message)) {
			defer a.wg.Done()
			for {
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
						return
					}
					a.logger.Warn("kafka read failed",
						slog.String("topic", topic), slog.Any("error", err))
					continue
				}
				handle(ctx, msg)
			}
		}(reader, topic, handle)
	}

	a.logger.Info("kafka adapter consuming", slog.Any("brokers", a.cfg.Brokers))
	return nil
}

// Stop cancels the consumers and closes readers and writer after in-flight
// messages finish.
func (a *KafkaAdapter) Stop(_ context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	var errs []error
	for _, reader := range a.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch maps a triggered alert back out onto argus-alerts, keyed by alert
// id. This lets the Kafka adapter double as a notification channel.
func (a *KafkaAdapter) Dispatch(ctx context.Context, alert models.Alert, _ string) error {
	if a.writer == nil {
		return fmt.Errorf("kafka writer not started")
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return a.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.ID),
		Value: payload,
	})
}

func (a *KafkaAdapter) consumeMetric(ctx context.Context, msg kafka.Message) {
	var in ingest.MetricInput
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		ingest.CountRejection("metric")
		a.logger.Warn("malformed metric message", slog.Any("error", err))
		return
	}
	if in.Service == "" {
		in.Service = string(msg.Key)
	}
	if _, err := a.service.IngestMetric(ctx, in); err != nil {
		a.rejectMessage("metric", err)
		return
	}
	ingest.CountIngest("kafka", "metric")
}

func (a *KafkaAdapter) consumeLog(ctx context.Context, msg kafka.Message) {
	var in ingest.LogInput
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		ingest.CountRejection("log")
		a.logger.Warn("malformed log message", slog.Any("error", err))
		return
	}
	if in.Service == "" {
		in.Service = string(msg.Key)
	}
	if _, err := a.service.IngestLog(ctx, in); err != nil {
		a.rejectMessage("log", err)
		return
	}
	ingest.CountIngest("kafka", "log")
}

func (a *KafkaAdapter) consumeSpan(ctx context.Context, msg kafka.Message) {
	var in ingest.SpanInput
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		ingest.CountRejection("span")
		a.logger.Warn("malformed span message", slog.Any("error", err))
		return
	}
	if _, err := a.service.IngestSpan(ctx, in); err != nil {
		a.rejectMessage("span", err)
		return
	}
	ingest.CountIngest("kafka", "span")
}

func (a *KafkaAdapter) rejectMessage(recordType string, err error) {
	if utils.IsValidation(err) {
		ingest.CountRejection(recordType)
	}
	a.logger.Warn("kafka message rejected",
		slog.String("type", recordType), slog.Any("error", err))
}
