package transport

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// Pool bounds how many transfer goroutines run at once.  Submission never
// blocks the caller; admission happens inside the spawned goroutine.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting size concurrent tasks.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Future holds the eventual result of a pooled task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go schedules fn on the pool and returns immediately.  The task observes
// ctx for both admission and execution, so an expired deadline fails it
// without running fn.
func Go[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = errors.Timeout("task not admitted before deadline").WithCause(err)
			return
		}
		defer p.sem.Release(1)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Wait blocks until the task finishes or ctx expires.  On expiry the task
// is abandoned: it keeps running until its own context fires, but its
// result is discarded.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Timeout("timed out waiting for task").WithCause(ctx.Err())
	}
}

// WaitAll collects every future in order, returning the first error after
// all have settled or the shared context has expired.
func WaitAll[T any](ctx context.Context, futures []*Future[T]) ([]T, error) {
	out := make([]T, len(futures))
	var firstErr error
	for i, f := range futures {
		v, err := f.Wait(ctx)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out[i] = v
	}
	return out, firstErr
}
