package model

import (
	"context"
	"maps"
	"time"
)

// Reserved field names.
const (
	FieldKey       = "key"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// DocumentStore is the remote, multi-writer collection store.
//
// Subscribe delivers the full collection once right after subscribing and
// again after every change, until the returned Unsubscribe is called or
// onError fires. onError is terminal for that subscription.
type DocumentStore interface {
	Subscribe(ctx context.Context, collection string, onNext func(Snapshot), onError func(error)) (Unsubscribe, error)
	GetOne(ctx context.Context, collection, key string) (Document, error)
	CreateOne(ctx context.Context, collection string, fields Fields) (string, error)
	MergeOne(ctx context.Context, collection, key string, fields Fields) error
	DeleteOne(ctx context.Context, collection, key string) error
}

// Unsubscribe releases a store subscription.
type Unsubscribe func()

// Fields maps field names to values.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// String returns the field as a string, or "" when absent or not a string.
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Document is a single record of a collection.
type Document struct {
	Key    string
	Fields Fields
}

// Snapshot is one complete view of a collection as delivered by a push.
type Snapshot struct {
	Collection string
	Documents  []Document
}

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's own clock at write time.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// SplitStamps separates sentinel fields from concrete values. It returns the
// concrete fields and the names of the fields to stamp with the server time.
func SplitStamps(fields Fields) (Fields, []string) {
	values := make(Fields, len(fields))
	var stamps []string
	for name, v := range fields {
		if IsServerTimestamp(v) {
			stamps = append(stamps, name)
			continue
		}
		values[name] = v
	}
	return values, stamps
}

// TimeField reads a timestamp written by any store implementation.
func TimeField(f Fields, name string) time.Time {
	switch v := f[name].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}
		}
		return t
	default:
		return time.Time{}
	}
}
