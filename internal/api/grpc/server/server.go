package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.Server = (*GRPCServer)(nil)

// GRPCServer runs a gRPC server on a fixed address.
type GRPCServer struct {
	server *grpc.Server
	addr   string
}

func NewGRPCServer(server *grpc.Server, addr string) *GRPCServer {
	return &GRPCServer{server: server, addr: addr}
}

// Start serves until Stop; it returns nil after a graceful stop.
func (s *GRPCServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.server.Serve(listener)
}

// Stop drains in-flight calls. Watch streams never finish on their own, so
// when ctx expires first the remaining calls are cut off.
func (s *GRPCServer) Stop(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		<-stopped
		return ctx.Err()
	}
}

func (s *GRPCServer) Address() string {
	return s.addr
}
