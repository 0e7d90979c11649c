package api

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the name under which the regeneration core reports its
// health.
const HealthService = "reservo.Availability"

// GRPCServer serves the standard gRPC health protocol.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	port   int
	logger *zerolog.Logger
}

func NewGRPCServer(port int, logger *zerolog.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &GRPCServer{server: srv, health: hs, port: port, logger: logger}
}

// SetServing flips the overall and service status.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(HealthService, status)
}

// Start listens on the configured port until ctx is done.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()

	s.SetServing(true)
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server started")
	return s.server.Serve(lis)
}
