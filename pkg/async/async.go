package async

import (
	"context"
	"time"
)

// Future represents the result of an asynchronous computation.
type Future[U any] struct {
	result U
	err    error
	done   chan struct{}
}

// Await blocks until the computation completes and returns its result.
func (f *Future[U]) Await() (U, error) {
	<-f.done
	return f.result, f.err
}

// AwaitWithTimeout waits for completion up to the given timeout. On timeout
// it returns ErrTimeout; the underlying goroutine keeps running until its
// context expires.
func (f *Future[U]) AwaitWithTimeout(timeout time.Duration) (U, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-time.After(timeout):
		var zero U
		return zero, ErrTimeout
	}
}

// IsComplete reports whether the computation finished, without blocking.
func (f *Future[U]) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Go runs fn asynchronously and returns a Future for its result.
func Go[U any](ctx context.Context, fn func(context.Context) (U, error)) *Future[U] {
	f := &Future[U]{done: make(chan struct{})}

	go func() {
		defer close(f.done)

		select {
		case <-ctx.Done():
			f.err = ctx.Err()
			return
		default:
		}

		f.result, f.err = fn(ctx)
	}()

	return f
}

// Settled holds the outcome of one future from SettleAll.
type Settled[U any] struct {
	Value U
	Err   error
}

// SettleAll waits for every future to complete and returns all outcomes in
// order. Unlike a fail-fast join, an error in one future never short-circuits
// the wait for the others; the delivery fan-out relies on that.
func SettleAll[U any](futures ...*Future[U]) []Settled[U] {
	results := make([]Settled[U], len(futures))
	for i, f := range futures {
		v, err := f.Await()
		results[i] = Settled[U]{Value: v, Err: err}
	}
	return results
}
