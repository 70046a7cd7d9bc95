// Package grpcserver exposes the telemetry ingestion service over gRPC. The
// wire contract is registered by hand as a grpc.ServiceDesc with a JSON
// codec, keeping the message shapes explicit in-tree without a protoc step.
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "argus.v1.TelemetryService"

// MetricRequest submits one metric sample.
type MetricRequest struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Service     string            `json:"service"`
	TimestampMS int64             `json:"timestamp_ms,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// LogRequest submits one log entry.
type LogRequest struct {
	Level       string            `json:"level"`
	Message     string            `json:"message"`
	Service     string            `json:"service"`
	TimestampMS int64             `json:"timestamp_ms,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// SubmitResponse acknowledges a single accepted record.
type SubmitResponse struct {
	ID string `json:"id"`
}

// BulkResponse summarises a client-streamed submission.
type BulkResponse struct {
	Accepted int32    `json:"accepted"`
	Rejected int32    `json:"rejected"`
	Errors   []string `json:"errors,omitempty"`
}

// MetricQueryRequest selects a metric window to stream back.
type MetricQueryRequest struct {
	MetricName string `json:"metric_name"`
	Service    string `json:"service"`
	StartMS    int64  `json:"start_ms"`
	EndMS      int64  `json:"end_ms"`
}

// LogQueryRequest selects log entries to stream back.
type LogQueryRequest struct {
	Service string `json:"service,omitempty"`
	Level   string `json:"level,omitempty"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

// MetricPointResponse is one streamed window sample.
type MetricPointResponse struct {
	TimestampMS int64   `json:"timestamp_ms"`
	Value       float64 `json:"value"`
}

// LogEntryResponse is one streamed log entry.
type LogEntryResponse struct {
	ID          string `json:"id"`
	Level       string `json:"level"`
	Message     string `json:"message"`
	Service     string `json:"service"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// WatchRequest opens a health status stream.
type WatchRequest struct{}

// WatchResponse is one periodic health status report.
type WatchResponse struct {
	Status      string `json:"status"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// TelemetryServer is the server contract for the telemetry service.
type TelemetryServer interface {
	SubmitMetric(ctx context.Context, req *MetricRequest) (*SubmitResponse, error)
	SubmitLog(ctx context.Context, req *LogRequest) (*SubmitResponse, error)
	SubmitMetricsStream(stream Telemetry_SubmitMetricsStreamServer) error
	SubmitLogsStream(stream Telemetry_SubmitLogsStreamServer) error
	QueryMetrics(req *MetricQueryRequest, stream Telemetry_QueryMetricsServer) error
	QueryLogs(req *LogQueryRequest, stream Telemetry_QueryLogsServer) error
	Watch(req *WatchRequest, stream Telemetry_WatchServer) error
}

// Telemetry_SubmitMetricsStreamServer is the client-streaming metric surface.
type Telemetry_SubmitMetricsStreamServer interface {
	SendAndClose(*BulkResponse) error
	Recv() (*MetricRequest, error)
	grpc.ServerStream
}

type submitMetricsStreamServer struct{ grpc.ServerStream }

func (x *submitMetricsStreamServer) SendAndClose(m *BulkResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *submitMetricsStreamServer) Recv() (*MetricRequest, error) {
	m := new(MetricRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Telemetry_SubmitLogsStreamServer is the client-streaming log surface.
type Telemetry_SubmitLogsStreamServer interface {
	SendAndClose(*BulkResponse) error
	Recv() (*LogRequest, error)
	grpc.ServerStream
}

type submitLogsStreamServer struct{ grpc.ServerStream }

func (x *submitLogsStreamServer) SendAndClose(m *BulkResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *submitLogsStreamServer) Recv() (*LogRequest, error) {
	m := new(LogRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Telemetry_QueryMetricsServer streams window samples to the client.
type Telemetry_QueryMetricsServer interface {
	Send(*MetricPointResponse) error
	grpc.ServerStream
}

type queryMetricsServer struct{ grpc.ServerStream }

func (x *queryMetricsServer) Send(m *MetricPointResponse) error {
	return x.ServerStream.SendMsg(m)
}

// Telemetry_QueryLogsServer streams log entries to the client.
type Telemetry_QueryLogsServer interface {
	Send(*LogEntryResponse) error
	grpc.ServerStream
}

type queryLogsServer struct{ grpc.ServerStream }

func (x *queryLogsServer) Send(m *LogEntryResponse) error {
	return x.ServerStream.SendMsg(m)
}

// Telemetry_WatchServer streams health reports to the client.
type Telemetry_WatchServer interface {
	Send(*WatchResponse) error
	grpc.ServerStream
}

type watchServer struct{ grpc.ServerStream }

func (x *watchServer) Send(m *WatchResponse) error {
	return x.ServerStream.SendMsg(m)
}

func submitMetricHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MetricRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).SubmitMetric(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SubmitMetric"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TelemetryServer).SubmitMetric(ctx, req.(*MetricRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitLogHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LogRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TelemetryServer).SubmitLog(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SubmitLog"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TelemetryServer).SubmitLog(ctx, req.(*LogRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitMetricsStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TelemetryServer).SubmitMetricsStream(&submitMetricsStreamServer{stream})
}

func submitLogsStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(TelemetryServer).SubmitLogsStream(&submitLogsStreamServer{stream})
}

func queryMetricsHandler(srv any, stream grpc.ServerStream) error {
	in := new(MetricQueryRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).QueryMetrics(in, &queryMetricsServer{stream})
}

func queryLogsHandler(srv any, stream grpc.ServerStream) error {
	in := new(LogQueryRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).QueryLogs(in, &queryLogsServer{stream})
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TelemetryServer).Watch(in, &watchServer{stream})
}

var telemetryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitMetric", Handler: submitMetricHandler},
		{MethodName: "SubmitLog", Handler: submitLogHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SubmitMetricsStream", Handler: submitMetricsStreamHandler, ClientStreams: true},
		{StreamName: "SubmitLogsStream", Handler: submitLogsStreamHandler, ClientStreams: true},
		{StreamName: "QueryMetrics", Handler: queryMetricsHandler, ServerStreams: true},
		{StreamName: "QueryLogs", Handler: queryLogsHandler, ServerStreams: true},
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
}
