package model

import "context"

// ContextManager carries the authenticated actor id through request contexts.
type ContextManager interface {
	SetActorIDToContext(ctx context.Context, actorID string) context.Context
	GetActorIDFromContext(ctx context.Context) (string, bool)
}
