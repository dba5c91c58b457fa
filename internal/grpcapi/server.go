// Package grpcapi serves the standard gRPC health protocol next to the HTTP
// API so orchestrators can probe readiness without parsing JSON.
package grpcapi

import (
	"errors"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name reported for the readings API.
const ServiceName = "readings.v1.Readings"

type Dependencies struct {
	Logger zerolog.Logger
	Addr   string
}

type Server struct {
	addr       string
	logger     zerolog.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

func NewServer(d Dependencies) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()

	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		addr:       d.Addr,
		logger:     d.Logger,
		grpcServer: gs,
		health:     hs,
	}
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Shutdown marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// SetServing flips the readings service status, e.g. while draining.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}
