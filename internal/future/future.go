// Package future provides a minimal single-assignment deferred value. It is
// the building block for stage gates, sequenced task results, and renderer
// stream outcomes, where one goroutine settles a value exactly once and any
// number of goroutines await it.
package future

import (
	"context"
	"sync"
)

// Future holds a value or error that will be settled exactly once.
// The zero value is not usable; construct with New, Resolved, or Rejected.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// New returns an unsettled future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with val.
func Resolved[T any](val T) *Future[T] {
	f := New[T]()
	f.Resolve(val)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with val. Settling more than once is a no-op;
// the first settlement wins.
func (f *Future[T]) Resolve(val T) {
	f.once.Do(func() {
		f.val = val
		close(f.done)
	})
}

// Reject settles the future with err.
func (f *Future[T]) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the future settles or ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, context.Cause(ctx)
	}
}

// Peek returns the settled value without blocking. ok is false while the
// future is still pending.
func (f *Future[T]) Peek() (val T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
