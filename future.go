package tracekit

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Future is the result of an operation started with one of the *Async methods.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func async[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done. Giving up on
// waiting does not cancel the operation; cancel the context passed to the
// *Async method for that.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, goerr.Wrap(ctx.Err(), "stopped waiting for result")
	}
}
