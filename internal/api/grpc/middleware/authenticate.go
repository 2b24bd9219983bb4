package middleware

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
)

var (
	errMissingToken = errors.New("missing authorization token")
	errInvalidToken = errors.New("invalid authorization token")
)

// ActorResolver resolves the actor id from a bearer token.
type ActorResolver interface {
	GetActorID(token string) (string, error)
}

// Authenticate validates bearer tokens and injects the actor id into context.
type Authenticate struct {
	resolver       ActorResolver
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(resolver ActorResolver, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{resolver: resolver, contextManager: contextManager, logger: logger}
}

// AuthFunc parses the authorization header, validates the token and returns
// a context carrying the actor id.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	var tokenString string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if authHeaders := md.Get("authorization"); len(authHeaders) > 0 {
			tokenString = strings.TrimPrefix(authHeaders[0], "Bearer ")
		}
	}

	actorID, err := m.authenticateActor(tokenString)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return m.contextManager.SetActorIDToContext(ctx, actorID), nil
}

func (m *Authenticate) authenticateActor(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errMissingToken
	}

	actorID, err := m.resolver.GetActorID(tokenString)
	if err != nil {
		m.logger.Debug("rejected token", "error", err)
		return "", errInvalidToken
	}
	if actorID == "" {
		return "", errInvalidToken
	}

	return actorID, nil
}
