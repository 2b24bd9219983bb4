// Package mirror keeps a live, typed copy of a remote collection.
//
// Every push from the store replaces the previous view wholesale; the mirror
// never patches or reconciles against what it held before. Writes made through
// the mutation controller become visible only through the next push.
package mirror

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/observer"
)

var (
	// ErrAlreadyOpen is returned when Open is called on an open subscription.
	ErrAlreadyOpen = errors.New("subscription already open")
	// ErrClosed is returned when Open is called after Close or a failure.
	ErrClosed = errors.New("subscription closed")
)

// State is the lifecycle state of a Subscription.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLive
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Decoder converts a stored document into a typed record.
type Decoder[T any] func(model.Document) (T, error)

// Documents is the identity decoder.
func Documents(doc model.Document) (model.Document, error) {
	return doc, nil
}

// Subscription mirrors one collection. Create it with New, attach observers,
// then Open. Close must not be called from inside an observer.
type Subscription[T any] struct {
	store      model.DocumentStore
	collection string
	decode     Decoder[T]
	logger     *logger.Logger

	mu          sync.Mutex
	state       State
	records     []T
	err         error
	unsubscribe model.Unsubscribe

	snapshots observer.Registry[[]T]
	failures  observer.Registry[error]
}

// New creates an idle subscription for collection.
func New[T any](store model.DocumentStore, collection string, decode Decoder[T], logger *logger.Logger) *Subscription[T] {
	return &Subscription[T]{
		store:      store,
		collection: collection,
		decode:     decode,
		logger:     logger.With("collection", collection),
	}
}

// Collection returns the mirrored collection name.
func (s *Subscription[T]) Collection() string {
	return s.collection
}

// OnSnapshot registers fn for every pushed snapshot. The slice passed to fn
// is shared between observers and must not be modified.
func (s *Subscription[T]) OnSnapshot(fn func([]T)) (cancel func()) {
	return s.snapshots.Attach(fn)
}

// OnError registers fn for the subscription failure. It fires at most once.
func (s *Subscription[T]) OnError(fn func(error)) (cancel func()) {
	return s.failures.Attach(fn)
}

// Open starts the store subscription.
func (s *Subscription[T]) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateLoading, StateLive:
		s.mu.Unlock()
		return ErrAlreadyOpen
	case StateFailed, StateClosed:
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateLoading
	s.mu.Unlock()

	unsubscribe, err := s.store.Subscribe(ctx, s.collection, s.handleSnapshot, s.handleError)
	if err != nil {
		subErr := &model.SubscriptionError{Collection: s.collection, Err: err}
		if s.markFailed(subErr) {
			s.logger.Error("failed to open subscription", "error", err)
			s.failures.Notify(subErr)
		}
		return subErr
	}

	s.mu.Lock()
	state, failure := s.state, s.err
	if state == StateLoading || state == StateLive {
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
		s.logger.Debug("subscription opened")
		return nil
	}
	s.mu.Unlock()

	// Closed or failed while the store was subscribing.
	unsubscribe()
	if state == StateClosed {
		return ErrClosed
	}
	return failure
}

// Close releases the store subscription. No observer is invoked after Close
// returns, including for pushes the store had already in flight.
func (s *Subscription[T]) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.snapshots.Close()
	s.failures.Close()

	s.logger.Debug("subscription closed")
	return nil
}

// Current returns a copy of the latest snapshot with the state and the
// failure, if any.
func (s *Subscription[T]) Current() ([]T, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records), s.state, s.err
}

// State returns the lifecycle state.
func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription[T]) handleSnapshot(snap model.Snapshot) {
	records := make([]T, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		rec, err := s.decode(doc)
		if err != nil {
			s.logger.Warn("skipping undecodable document", "key", doc.Key, "error", err)
			continue
		}
		records = append(records, rec)
	}

	s.mu.Lock()
	if s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateLive
	s.records = records
	s.mu.Unlock()

	s.logger.Debug("snapshot received", "documents", len(records))
	s.snapshots.Notify(records)
}

func (s *Subscription[T]) handleError(err error) {
	subErr := &model.SubscriptionError{Collection: s.collection, Err: err}
	if !s.markFailed(subErr) {
		return
	}

	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	s.logger.Error("subscription failed", "error", err)
	s.failures.Notify(subErr)
}

func (s *Subscription[T]) markFailed(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.state == StateFailed {
		return false
	}
	s.state = StateFailed
	s.err = err
	return true
}
