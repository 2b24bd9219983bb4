// Package async provides a minimal future type for store calls that complete
// on another goroutine.
package async

import "context"

// Result is the outcome of an asynchronous operation.
type Result[T any] struct {
	Value T
	Err   error
}

// Future resolves exactly once with a Result.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]
}

// Go runs fn on a new goroutine and returns a future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		v, err := fn()
		f.resolve(Result[T]{Value: v, Err: err})
	}()
	return f
}

// Resolved returns a future already holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.resolve(Result[T]{Value: v})
	return f
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	f.resolve(Result[T]{Err: err})
	return f
}

func (f *Future[T]) resolve(r Result[T]) {
	f.result = r
	close(f.done)
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome and whether the future has resolved.
func (f *Future[T]) Result() (Result[T], bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result[T]{}, false
	}
}

// Await blocks until the future resolves or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result.Value, f.result.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
