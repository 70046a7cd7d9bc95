package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// watchInterval is the health stream reporting period.
const watchInterval = 30 * time.Second

// TelemetryService implements TelemetryServer on top of the canonical
// ingestion contract and the metric/log query ports.
type TelemetryService struct {
	service *ingest.Service
	store   storage.Storage
	logger  *slog.Logger
}

// NewTelemetryService constructs the gRPC service facade.
func NewTelemetryService(service *ingest.Service, store storage.Storage, logger *slog.Logger) *TelemetryService {
	return &TelemetryService{
		service: service,
		store:   store,
		logger:  utils.ComponentLogger(logger, "grpc-adapter"),
	}
}

// SubmitMetric ingests one metric sample.
func (s *TelemetryService) SubmitMetric(ctx context.Context, req *MetricRequest) (*SubmitResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}

	metric, err := s.service.IngestMetric(ctx, metricInput(req))
	if err != nil {
		return nil, s.reject("metric", err)
	}
	ingest.CountIngest("grpc", "metric")
	return &SubmitResponse{ID: metric.ID}, nil
}

// SubmitLog ingests one log entry.
func (s *TelemetryService) SubmitLog(ctx context.Context, req *LogRequest) (*SubmitResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}

	entry, err := s.service.IngestLog(ctx, logInput(req))
	if err != nil {
		return nil, s.reject("log", err)
	}
	ingest.CountIngest("grpc", "log")
	return &SubmitResponse{ID: entry.ID}, nil
}

// SubmitMetricsStream ingests a client stream of metrics. Each element is
// processed independently; a malformed element is counted and skipped.
func (s *TelemetryService) SubmitMetricsStream(stream Telemetry_SubmitMetricsStreamServer) error {
	summary := &BulkResponse{}
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return stream.SendAndClose(summary)
		}
		if err != nil {
			return err
		}

		if _, err := s.service.IngestMetric(stream.Context(), metricInput(req)); err != nil {
			ingest.CountRejection("metric")
			summary.Rejected++
			summary.Errors = append(summary.Errors, err.Error())
			s.logger.Warn("streamed metric skipped", slog.Any("error", err))
			continue
		}
		ingest.CountIngest("grpc", "metric")
		summary.Accepted++
	}
}

// SubmitLogsStream ingests a client stream of log entries.
func (s *TelemetryService) SubmitLogsStream(stream Telemetry_SubmitLogsStreamServer) error {
	summary := &BulkResponse{}
	for {
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return stream.SendAndClose(summary)
		}
		if err != nil {
			return err
		}

		if _, err := s.service.IngestLog(stream.Context(), logInput(req)); err != nil {
			ingest.CountRejection("log")
			summary.Rejected++
			summary.Errors = append(summary.Errors, err.Error())
			s.logger.Warn("streamed log skipped", slog.Any("error", err))
			continue
		}
		ingest.CountIngest("grpc", "log")
		summary.Accepted++
	}
}

// QueryMetrics streams the requested window back to the client in timestamp
// order.
func (s *TelemetryService) QueryMetrics(req *MetricQueryRequest, stream Telemetry_QueryMetricsServer) error {
	if req.MetricName == "" || req.Service == "" {
		return status.Error(codes.InvalidArgument, "metric_name and service are required")
	}

	points, err := s.store.QueryWindow(stream.Context(), req.MetricName, req.Service,
		time.UnixMilli(req.StartMS), time.UnixMilli(req.EndMS))
	if err != nil {
		return status.Error(codes.Unavailable, fmt.Sprintf("query window: %v", err))
	}

	for _, p := range points {
		if err := stream.Send(&MetricPointResponse{
			TimestampMS: p.Timestamp.UnixMilli(),
			Value:       p.Value,
		}); err != nil {
			return err
		}
	}
	return nil
}

// QueryLogs streams matching log entries back to the client.
func (s *TelemetryService) QueryLogs(req *LogQueryRequest, stream Telemetry_QueryLogsServer) error {
	entries, err := s.store.QueryLogs(stream.Context(), req.Service, req.Level,
		time.UnixMilli(req.StartMS), time.UnixMilli(req.EndMS))
	if err != nil {
		return status.Error(codes.Unavailable, fmt.Sprintf("query logs: %v", err))
	}

	for _, entry := range entries {
		if err := stream.Send(&LogEntryResponse{
			ID:          entry.ID,
			Level:       entry.Level,
			Message:     entry.Message,
			Service:     entry.Service,
			TimestampMS: entry.Timestamp.UnixMilli(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Watch emits a serving status every 30 seconds until the client goes away.
func (s *TelemetryService) Watch(_ *WatchRequest, stream Telemetry_WatchServer) error {
	send := func() error {
		return stream.Send(&WatchResponse{
			Status:      "SERVING",
			TimestampMS: time.Now().UnixMilli(),
		})
	}
	if err := send(); err != nil {
		return err
	}

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}

func (s *TelemetryService) reject(recordType string, err error) error {
	if utils.IsValidation(err) {
		ingest.CountRejection(recordType)
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Warn("ingestion failed", slog.String("type", recordType), slog.Any("error", err))
	return status.Error(codes.Unavailable, err.Error())
}

func metricInput(req *MetricRequest) ingest.MetricInput {
	in := ingest.MetricInput{
		Name:    req.Name,
		Value:   req.Value,
		Service: req.Service,
		Tags:    req.Tags,
	}
	if req.TimestampMS > 0 {
		in.Timestamp = time.UnixMilli(req.TimestampMS)
	}
	return in
}

func logInput(req *LogRequest) ingest.LogInput {
	in := ingest.LogInput{
		Level:   req.Level,
		Message: req.Message,
		Service: req.Service,
		Tags:    req.Tags,
	}
	if req.TimestampMS > 0 {
		in.Timestamp = time.UnixMilli(req.TimestampMS)
	}
	return in
}
