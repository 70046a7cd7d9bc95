package grpcserver

import (
	"context"
	"fmt"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps the gRPC listener and lifecycle. It satisfies the adapter
// contract: bind errors surface from Start, Stop drains gracefully.
type Server struct {
	address    string
	service    TelemetryServer
	grpcServer *grpc.Server
	listener   net.Listener
	healthSrv  *health.Server
}

// NewServer constructs a gRPC adapter for the configured address.
func NewServer(address string, service TelemetryServer) *Server {
	return &Server{address: address, service: service}
}

// Name identifies the adapter.
func (s *Server) Name() string { return "grpc" }

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	)

	s.grpcServer.RegisterService(&telemetryServiceDesc, s.service)
	grpc_prometheus.Register(s.grpcServer)

	// Health service so probes can check readiness through the stock proto.
	s.healthSrv = health.NewServer()
	s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.grpcServer, s.healthSrv)

	s.listener = lis
	go func() {
		_ = s.grpcServer.Serve(lis)
	}()
	return nil
}

// Stop attempts a graceful shutdown, falling back to a hard stop when the
// context expires first.
func (s *Server) Stop(ctx context.Context) error {
	if s.grpcServer == nil {
		return nil
	}
	if s.healthSrv != nil {
		s.healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.Stop()
	case <-stopped:
	}
	return nil
}

// Address exposes the bound listener address (useful for tests).
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
