// Package async provides the suspension primitives of the non-blocking device
// mode: a single-assignment Future, a cooperative Loop running continuations
// on one goroutine, and adapters exposing blocking buses as suspending ones.
package async

import (
	"context"
	"sync"
)

// Future holds the outcome of an operation that completes later. It is
// resolved exactly once; later resolutions are ignored.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(value, err)
	return f
}

// Failed returns a future completed with err.
func Failed[T any](err error) *Future[T] {
	var zero T
	return Resolved(zero, err)
}

// Resolve completes the future. It reports false if it was already complete.
func (f *Future[T]) Resolve(value T, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome. It must only be called once Ready reports true.
func (f *Future[T]) Result() (T, error) {
	return f.value, f.err
}

// Await blocks until the future resolves or ctx is done. Returning on ctx
// abandons the result: the operation still completes, but nobody observes it.
//
// Await must not be called on the goroutine running the Loop that resolves
// the future; use Block there.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
