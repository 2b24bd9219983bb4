// Package gate holds a destructive action until it is confirmed.
package gate

import (
	"context"
	"errors"
	"sync"

	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/observer"
)

// ErrNothingPending is returned by Confirm when no deletion is pending.
var ErrNothingPending = errors.New("no deletion pending")

// Deleter removes one document.
type Deleter interface {
	Delete(ctx context.Context, collection, key string) error
}

// View is what observers render.
type View struct {
	Pending bool
	Key     string
}

// Gate keeps at most one pending deletion for a collection.
type Gate struct {
	collection string
	deleter    Deleter
	logger     *logger.Logger

	mu      sync.Mutex
	key     string
	pending bool
	// gen changes on every request and cancel so an in-flight Confirm can
	// tell whether the key it deleted is still the pending one.
	gen uint64

	observers observer.Registry[View]
}

func New(collection string, deleter Deleter, logger *logger.Logger) *Gate {
	return &Gate{
		collection: collection,
		deleter:    deleter,
		logger:     logger.With("collection", collection),
	}
}

// RequestDelete makes key the pending deletion, replacing any earlier one.
func (g *Gate) RequestDelete(key string) {
	g.mu.Lock()
	g.key = key
	g.pending = true
	g.gen++
	v := g.viewLocked()
	g.mu.Unlock()

	g.observers.Notify(v)
}

// Cancel discards the pending deletion.
func (g *Gate) Cancel() {
	g.mu.Lock()
	if !g.pending {
		g.mu.Unlock()
		return
	}
	g.key = ""
	g.pending = false
	g.gen++
	v := g.viewLocked()
	g.mu.Unlock()

	g.observers.Notify(v)
}

// Confirm deletes the pending key and returns to idle whatever the outcome.
// The delete error is returned as is; the gate does not retry.
func (g *Gate) Confirm(ctx context.Context) error {
	g.mu.Lock()
	if !g.pending {
		g.mu.Unlock()
		return ErrNothingPending
	}
	key, gen := g.key, g.gen
	g.mu.Unlock()

	err := g.deleter.Delete(ctx, g.collection, key)
	if err != nil {
		g.logger.Error("failed to delete", "key", key, "error", err)
	} else {
		g.logger.Info("deleted", "key", key)
	}

	g.mu.Lock()
	if g.gen != gen {
		// A newer request or a cancel arrived while deleting.
		g.mu.Unlock()
		return err
	}
	g.key = ""
	g.pending = false
	g.gen++
	v := g.viewLocked()
	g.mu.Unlock()

	g.observers.Notify(v)
	return err
}

// Pending returns the key awaiting confirmation.
func (g *Gate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.key, g.pending
}

// Observe registers fn for every change.
func (g *Gate) Observe(fn func(View)) (cancel func()) {
	return g.observers.Attach(fn)
}

func (g *Gate) viewLocked() View {
	return View{Pending: g.pending, Key: g.key}
}
