package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a point read finds nothing.
var ErrNotFound = errors.New("document not found")

// StoreWriteError reports a failed create, update or delete.
type StoreWriteError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

// NewStoreWriteError wraps err as a failed write.
func NewStoreWriteError(op, collection, key string, err error) *StoreWriteError {
	return &StoreWriteError{Op: op, Collection: collection, Key: key, Err: err}
}

func (e *StoreWriteError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("failed to %s in %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("failed to %s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// SubscriptionError reports a failed collection subscription. It is fatal to
// the subscription that raised it.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s failed: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// ValidationError is a local check failure; it never reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}
