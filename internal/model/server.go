package model

import (
	"context"
	"net"
)

// SecurityLayer decides how the daemon accepts connections.
type SecurityLayer interface {
	Listen(network, addr string) (net.Listener, error)
}

// Server serves on Address until stopped. Stop honours ctx as a deadline for
// draining open calls.
type Server interface {
	Address() string
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
}
