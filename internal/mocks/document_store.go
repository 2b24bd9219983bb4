package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a testify mock of model.DocumentStore.
type DocumentStore struct {
	mock.Mock
}

func (m *DocumentStore) Subscribe(ctx context.Context, collection string, onNext func(model.Snapshot), onError func(error)) (model.Unsubscribe, error) {
	args := m.Called(ctx, collection, onNext, onError)
	unsubscribe, _ := args.Get(0).(model.Unsubscribe)
	return unsubscribe, args.Error(1)
}

func (m *DocumentStore) GetOne(ctx context.Context, collection, key string) (model.Document, error) {
	args := m.Called(ctx, collection, key)
	return args.Get(0).(model.Document), args.Error(1)
}

func (m *DocumentStore) CreateOne(ctx context.Context, collection string, fields model.Fields) (string, error) {
	args := m.Called(ctx, collection, fields)
	return args.String(0), args.Error(1)
}

func (m *DocumentStore) MergeOne(ctx context.Context, collection, key string, fields model.Fields) error {
	args := m.Called(ctx, collection, key, fields)
	return args.Error(0)
}

func (m *DocumentStore) DeleteOne(ctx context.Context, collection, key string) error {
	args := m.Called(ctx, collection, key)
	return args.Error(0)
}
