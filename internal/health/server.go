package health

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the scoring service reports under.
const ServiceName = "engagement.v1.EngagementScore"

// Server exposes grpc.health.v1.Health for load balancers and orchestrators.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.Logger
}

// NewServer builds a health server reporting SERVING for the overall server
// and for ServiceName.
func NewServer(logger *zap.Logger) *Server {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger.Named("grpc_health"),
	}
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("gRPC health server listening", zap.String("addr", listener.Addr().String()))
	if err := s.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and then drains in-flight checks.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
