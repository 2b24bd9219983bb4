package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Mutation writes documents on behalf of forms and list actions. It never
// touches a mirrored snapshot; the result of a write becomes visible through
// the next push of any subscription on the same collection.
type Mutation struct {
	store  model.DocumentStore
	logger *logger.Logger
}

func NewMutation(store model.DocumentStore, logger *logger.Logger) *Mutation {
	return &Mutation{
		store:  store,
		logger: logger,
	}
}

// Create adds a document with a store-assigned key. The payload must not
// carry a key of its own.
func (s *Mutation) Create(ctx context.Context, collection string, payload model.Fields) (string, error) {
	if _, ok := payload[model.FieldKey]; ok {
		return "", &model.ValidationError{Field: model.FieldKey, Reason: "is assigned by the store"}
	}

	fields := payload.Clone()
	fields[model.FieldCreatedAt] = model.ServerTimestamp
	fields[model.FieldUpdatedAt] = model.ServerTimestamp

	key, err := s.store.CreateOne(ctx, collection, fields)
	if err != nil {
		s.logger.Error("failed to create document",
			"collection", collection,
			"error", err)
		return "", model.NewStoreWriteError(opCreate, collection, "", err)
	}

	s.logger.Debug("document created", "collection", collection, "key", key)
	return key, nil
}

// Update merges payload into the document at key, creating it when absent.
// Fields not in payload are left as they are. Caller-supplied key and
// createdAt are dropped.
func (s *Mutation) Update(ctx context.Context, collection, key string, payload model.Fields) error {
	if key == "" {
		return &model.ValidationError{Field: model.FieldKey, Reason: "is required"}
	}

	fields := payload.Clone()
	delete(fields, model.FieldKey)
	delete(fields, model.FieldCreatedAt)
	fields[model.FieldUpdatedAt] = model.ServerTimestamp

	if err := s.store.MergeOne(ctx, collection, key, fields); err != nil {
		s.logger.Error("failed to update document",
			"collection", collection,
			"key", key,
			"error", err)
		return model.NewStoreWriteError(opUpdate, collection, key, err)
	}

	s.logger.Debug("document updated", "collection", collection, "key", key)
	return nil
}

// Delete removes the document at key. Deleting an absent key succeeds.
func (s *Mutation) Delete(ctx context.Context, collection, key string) error {
	if key == "" {
		return &model.ValidationError{Field: model.FieldKey, Reason: "is required"}
	}

	if err := s.store.DeleteOne(ctx, collection, key); err != nil {
		s.logger.Error("failed to delete document",
			"collection", collection,
			"key", key,
			"error", err)
		return model.NewStoreWriteError(opDelete, collection, key, err)
	}

	s.logger.Debug("document deleted", "collection", collection, "key", key)
	return nil
}

// Get reads one document. A missing document yields model.ErrNotFound.
func (s *Mutation) Get(ctx context.Context, collection, key string) (model.Document, error) {
	doc, err := s.store.GetOne(ctx, collection, key)
	if errors.Is(err, model.ErrNotFound) {
		return model.Document{}, model.ErrNotFound
	}
	if err != nil {
		s.logger.Error("failed to get document",
			"collection", collection,
			"key", key,
			"error", err)
		return model.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}
