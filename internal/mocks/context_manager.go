package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.ContextManager = (*ContextManager)(nil)

// ContextManager is a testify mock of model.ContextManager.
type ContextManager struct {
	mock.Mock
}

func (m *ContextManager) SetActorIDToContext(ctx context.Context, actorID string) context.Context {
	args := m.Called(ctx, actorID)
	return args.Get(0).(context.Context)
}

func (m *ContextManager) GetActorIDFromContext(ctx context.Context) (string, bool) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1)
}
