package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/solar-synergy/dockrelay/internal/pkg/middleware/grpc"
	"github.com/solar-synergy/dockrelay/pkg/log"
	"github.com/solar-synergy/dockrelay/pkg/options"
)

// ServiceName is the health service name reported alongside the overall "".
const ServiceName = "dockrelay.Relay"

const probeInterval = 5 * time.Second

// Checker reports whether the relay can serve.
type Checker interface {
	Ready(ctx context.Context) error
}

// Server exposes grpc.health.v1 backed by the command store.
type Server struct {
	opts    *options.GrpcOptions
	server  *grpc.Server
	health  *health.Server
	checker Checker
}

func NewServer(opts *options.GrpcOptions, checker Checker) *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcmw.UnaryServerTimeoutInterceptor(opts.Timeout)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{opts: opts, server: srv, health: hs, checker: checker}
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return err
	}
	log.Info("Starting gRPC server", "addr", ln.Addr().String())

	s.probe(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Shutting down gRPC server")
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe maps store reachability onto the health status.
func (s *Server) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Ready(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
