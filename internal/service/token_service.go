package service

import (
	"fmt"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
)

// TokenService issues and resolves actor access tokens.
type TokenService struct {
	manager model.TokenManager
	logger  *logger.Logger
}

func NewTokenService(manager model.TokenManager, logger *logger.Logger) *TokenService {
	return &TokenService{manager: manager, logger: logger}
}

func (s *TokenService) Issue(actorID string) (string, error) {
	if actorID == "" {
		return "", fmt.Errorf("issue access: empty actor id")
	}

	access, err := s.manager.GenerateAccessToken(actorID)
	if err != nil {
		return "", fmt.Errorf("issue access: %w", err)
	}

	return access, nil
}

func (s *TokenService) GetActorID(token string) (string, error) {
	return s.manager.ParseAccessToken(token)
}
