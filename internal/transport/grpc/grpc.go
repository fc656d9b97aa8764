// Package grpc implements the gRPC transport for roadman.
//
// The transport serves the standard grpc.health.v1.Health service so that
// orchestrators and gRPC load balancers can probe the daemon natively.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the roadman daemon.
const ServiceName = "roadman.Flow"

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	health *health.Server

	mu     sync.Mutex
	server *grpc.Server
}

// New creates a new gRPC transport on the given port. Both the overall and
// the roadman service status start as NOT_SERVING.
func New(port int) *Transport {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Transport{port: port, health: hs}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// SetServing flips the reported health status.
func (t *Transport) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	t.health.SetServingStatus("", st)
	t.health.SetServingStatus(ServiceName, st)
}

// Listen starts the gRPC server on the configured port.
func (t *Transport) Listen(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return t.Serve(ctx, lis)
}

// Serve runs the gRPC server on lis until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, t.health)

	t.mu.Lock()
	t.server = srv
	t.mu.Unlock()

	slog.Info("grpc transport listening", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		srv.GracefulStop()
	}()

	return srv.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.mu.Lock()
	srv := t.server
	t.mu.Unlock()

	t.health.Shutdown()
	if srv != nil {
		srv.GracefulStop()
	}
	return nil
}
