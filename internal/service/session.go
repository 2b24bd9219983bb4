package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/observer"
)

// Session tracks the signed-in actor. Components never read it implicitly;
// callers pass the actor id they get from CurrentActorID.
type Session struct {
	tokens *TokenService
	logger *logger.Logger

	mu      sync.Mutex
	actorID string

	changes observer.Registry[string]
}

func NewSession(tokens *TokenService, logger *logger.Logger) *Session {
	return &Session{tokens: tokens, logger: logger}
}

// CurrentActorID returns the signed-in actor, if any.
func (s *Session) CurrentActorID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actorID, s.actorID != ""
}

// OnAuthChange registers fn for sign-in and sign-out. fn receives the new
// actor id, or "" after sign-out.
func (s *Session) OnAuthChange(fn func(actorID string)) (cancel func()) {
	return s.changes.Attach(fn)
}

// SignIn resolves token to an actor and makes it current.
func (s *Session) SignIn(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	actorID, err := s.tokens.GetActorID(token)
	if err != nil {
		s.logger.Warn("sign in rejected", "error", err)
		return fmt.Errorf("failed to resolve token: %w", err)
	}

	s.mu.Lock()
	changed := s.actorID != actorID
	s.actorID = actorID
	s.mu.Unlock()

	if changed {
		s.logger.Info("signed in", "actor", actorID)
		s.changes.Notify(actorID)
	}
	return nil
}

// SignOut clears the current actor.
func (s *Session) SignOut() {
	s.mu.Lock()
	was := s.actorID
	s.actorID = ""
	s.mu.Unlock()

	if was != "" {
		s.logger.Info("signed out", "actor", was)
		s.changes.Notify("")
	}
}
