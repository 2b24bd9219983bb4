package context

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// actorIDKey is the metadata key holding the authenticated actor id.
const actorIDKey string = "actor_id"

// Manager stores the authenticated actor id in incoming gRPC metadata.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetActorIDToContext sets the actor id in the incoming metadata of ctx,
// replacing any value the client may have sent under the same key.
//
// Parameters:
//   - ctx: The gRPC context
//   - actorID: The authenticated actor id
//
// Returns a new context carrying the actor id.
func (m *Manager) SetActorIDToContext(ctx context.Context, actorID string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(map[string]string{actorIDKey: actorID})
	} else {
		md = md.Copy()
		md.Set(actorIDKey, actorID)
	}

	return metadata.NewIncomingContext(ctx, md)
}

// GetActorIDFromContext retrieves the actor id set by SetActorIDToContext.
//
// Returns the actor id and a boolean indicating if one was found.
func (m *Manager) GetActorIDFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	actorIDs := md.Get(actorIDKey)
	if len(actorIDs) == 0 || actorIDs[0] == "" {
		return "", false
	}

	return actorIDs[0], true
}
