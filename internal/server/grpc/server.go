// Package grpc serves the internal gRPC surface: the standard health service
// and SessionService for token introspection.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/parceltrack/internal/logging"
	"github.com/dmitrijs2005/parceltrack/internal/server/auth"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AccountFinder loads the account behind a session.
type AccountFinder interface {
	Me(ctx context.Context, identifier string) (*models.User, error)
}

// TokenParser validates session tokens.
type TokenParser interface {
	Parse(tokenString string) (*auth.Claims, error)
}

type GRPCServer struct {
	address  string
	accounts AccountFinder
	tokens   TokenParser
	health   *health.Server
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, accounts AccountFinder, tokens TokenParser) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		accounts: accounts,
		tokens:   tokens,
		health:   health.NewServer(),
	}
}

// register attaches every service to srv.
func (s *GRPCServer) register(srv *grpc.Server) {
	srv.RegisterService(&SessionServiceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(SessionServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	s.register(srv)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
