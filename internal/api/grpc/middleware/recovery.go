package middleware

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/easygrocer/internal/logger"
)

// NewRecoveryHandler returns a panic handler for the recovery interceptor.
// The panic value is logged; the client only sees Internal.
func NewRecoveryHandler(logger *logger.Logger) func(p any) error {
	return func(p any) error {
		logger.Error("recovered from panic in gRPC handler", "panic", p)
		return status.Error(codes.Internal, "internal server error")
	}
}
