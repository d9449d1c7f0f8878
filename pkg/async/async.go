package async

import (
	"context"
	"sync/atomic"
)

// Future represents the result of an asynchronous computation.
// Any number of goroutines may wait on the same Future; all of them observe
// the same result.
type Future[U any] struct {
	result  U
	err     error
	done    chan struct{}
	waiters atomic.Int64
}

// Await waits for the asynchronous function to complete and returns its result and error.
func (f *Future[U]) Await() (U, error) {
	f.waiters.Add(1)
	<-f.done
	return f.result, f.err
}

// AwaitContext waits for completion or for ctx to be done, whichever comes first.
// Giving up on the wait does not cancel the computation.
func (f *Future[U]) AwaitContext(ctx context.Context) (U, error) {
	f.waiters.Add(1)
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero U
		return zero, ctx.Err()
	}
}

// Waiters reports how many Await/AwaitContext calls have been made.
func (f *Future[U]) Waiters() int64 {
	return f.waiters.Load()
}

// Done returns a channel closed once the computation has settled.
func (f *Future[U]) Done() <-chan struct{} {
	return f.done
}

// IsComplete checks if the asynchronous function is complete without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Async executes fn in its own goroutine and returns a Future for its result.
// A context already cancelled when the goroutine starts completes the Future
// with the context error without calling fn.
func Async[T any, U any](ctx context.Context, param T, fn func(context.Context, T) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		if err := ctx.Err(); err != nil {
			f.err = err
			return
		}

		f.result, f.err = fn(ctx, param)
	}()

	return f
}
