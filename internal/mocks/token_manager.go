package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.TokenManager = (*TokenManager)(nil)

// TokenManager is a testify mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

func (m *TokenManager) GenerateAccessToken(actorID string) (string, error) {
	args := m.Called(actorID)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseAccessToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}
