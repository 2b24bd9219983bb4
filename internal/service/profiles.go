package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
)

// MsgRequiredProfileFields is reported when registration lacks a required field.
const MsgRequiredProfileFields = "Please fill in all required fields."

// Profiles manages actor profiles stored under the actor id.
type Profiles struct {
	store  model.DocumentStore
	logger *logger.Logger
}

func NewProfiles(store model.DocumentStore, logger *logger.Logger) *Profiles {
	return &Profiles{store: store, logger: logger}
}

// Register writes the profile of a newly signed-up actor. Display name,
// phone number and address are required.
func (s *Profiles) Register(ctx context.Context, actorID string, profile model.Profile) error {
	if actorID == "" {
		return &model.ValidationError{Field: model.FieldKey, Reason: "is required"}
	}

	profile.DisplayName = strings.TrimSpace(profile.DisplayName)
	profile.LastName = strings.TrimSpace(profile.LastName)
	profile.Email = strings.TrimSpace(profile.Email)
	profile.PhoneNumber = strings.TrimSpace(profile.PhoneNumber)
	profile.Address = strings.TrimSpace(profile.Address)

	if profile.DisplayName == "" || profile.PhoneNumber == "" || profile.Address == "" {
		return &model.ValidationError{Reason: MsgRequiredProfileFields}
	}

	fields := profile.Fields()
	fields[model.FieldCreatedAt] = model.ServerTimestamp
	fields[model.FieldUpdatedAt] = model.ServerTimestamp

	if err := s.store.MergeOne(ctx, model.CollectionUsers, actorID, fields); err != nil {
		s.logger.Error("failed to register profile",
			"actor", actorID,
			"error", err)
		return model.NewStoreWriteError(opCreate, model.CollectionUsers, actorID, err)
	}

	s.logger.Info("profile registered", "actor", actorID)
	return nil
}

// Get reads the profile of actorID.
func (s *Profiles) Get(ctx context.Context, actorID string) (model.Profile, error) {
	doc, err := s.store.GetOne(ctx, model.CollectionUsers, actorID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	profile, err := model.DecodeProfile(doc)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}

	return profile, nil
}
