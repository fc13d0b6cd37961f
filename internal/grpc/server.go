package grpcserver

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"lmdPortal/internal/auth"
	"lmdPortal/internal/config"
	"lmdPortal/internal/service"
)

// NewServer builds a grpc.Server with the JWT interceptor and RiderService
// registered. Health is exempt from authentication.
func NewServer(secret string, svc *service.Services) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.NewUnaryAuthInterceptor(secret, MethodHealth)))
	RegisterRiderServiceServer(srv, &RiderServer{Services: svc})
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, svc *service.Services, log *zap.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of the service.
	srv := NewServer(cfg.Auth.JWTSecret, svc)

	go func() {
		if err := srv.Serve(lis); err != nil {
			log.Error("grpc server stopped", zap.Error(err))
		}
	}()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}
