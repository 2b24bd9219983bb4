// Package observer implements explicit observer registration for state that
// other components render from.
package observer

import "sync"

type entry[T any] struct {
	fn       func(T)
	detached bool
}

// Registry fans values out to attached observers. Deliveries are serialized:
// observers never run concurrently with each other.
//
// Close waits for an in-flight delivery, so it must not be called from
// inside an observer.
type Registry[T any] struct {
	deliverMu sync.Mutex
	mu        sync.Mutex
	entries   []*entry[T]
	closed    bool
}

// Attach registers fn and returns a function that detaches it.
func (r *Registry[T]) Attach(fn func(T)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return func() {}
	}

	e := &entry[T]{fn: fn}
	r.entries = append(r.entries, e)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		e.detached = true
		for i, cur := range r.entries {
			if cur == e {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
	}
}

// Notify delivers v to every attached observer in attach order. It is a
// no-op once the registry is closed.
func (r *Registry[T]) Notify(v T) {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	entries := make([]*entry[T], len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	for _, e := range entries {
		if !r.active(e) {
			continue
		}
		e.fn(v)
	}
}

func (r *Registry[T]) active(e *entry[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && !e.detached
}

// Len returns the number of attached observers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// DetachAll detaches everyone without waiting for an in-flight delivery,
// which stops after the observer currently running. It is safe to call from
// inside an observer.
func (r *Registry[T]) DetachAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.entries = nil
}

// Close detaches everyone. After Close returns no observer is invoked again.
func (r *Registry[T]) Close() {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.entries = nil
}
