// Package grpc serves the standard gRPC health service. Its status follows
// the application's readiness probe.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/educhain/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall "" entry.
const ServiceName = "educhain.Portal"

type GRPCServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	ready    func(ctx context.Context) error
	interval time.Duration
}

// NewGRPCServer builds the health server. ready may be nil, in which case
// the server always reports SERVING while running.
func NewGRPCServer(a string, l logging.Logger, ready func(ctx context.Context) error, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		health:   health.NewServer(),
		ready:    ready,
		interval: interval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)
	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.probe(ctx)
		}
	}
}

// probe runs the readiness check once and publishes the result.
func (s *GRPCServer) probe(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ready != nil {
		pctx, cancel := context.WithTimeout(ctx, s.interval)
		err := s.ready(pctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn(ctx, "readiness check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
