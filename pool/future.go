package pool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Future is the pending outcome of a submitted task. It is completed exactly
// once, with either a value or an error, and can be read any number of times.
type Future[R any] struct {
	done  chan struct{}
	once  sync.Once
	value R
	err   error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// complete records the outcome. Only the first call has an effect.
func (f *Future[R]) complete(value R, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed once the outcome is available.
func (f *Future[R]) Done() <-chan struct{} { return f.done }

// IsReady reports whether the outcome is available without blocking.
func (f *Future[R]) IsReady() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Get blocks until the outcome is available and returns it unwrapped.
// Use Await to receive task failures as *ExecutionError.
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.value, f.err
}

// GetWithContext is Get bounded by ctx.
func (f *Future[R]) GetWithContext(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// GetWithTimeout is Get bounded by timeout.
func (f *Future[R]) GetWithTimeout(timeout time.Duration) (R, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return f.GetWithContext(ctx)
}

// Submit runs fn on ex and returns its pending outcome.
//
// The returned future is never nil. When the pool refuses the task the
// future is completed with the same error Submit returns. Under the
// CallerBlocks policy Submit may also return an *ExecutionError: the task was
// re-admitted, the submitter waited for it, and it failed.
func Submit[R any](ex Executor, fn func(ctx context.Context) (R, error)) (*Future[R], error) {
	f := newFuture[R]()
	var zero R

	task := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = newPanicError(r)
				f.complete(zero, err)
			}
		}()

		v, err := fn(ctx)
		f.complete(v, err)
		return err
	}

	j := job{
		run:     task,
		discard: func(cause error) { f.complete(zero, cause) },
	}

	err := dispatch(ex, j)
	if err != nil && !isExecutionError(err) {
		f.complete(zero, err)
	}
	return f, err
}

// Go admits task without tracking its outcome.
func Go(ex Executor, task Task) error {
	return ex.Execute(task)
}

func dispatch(ex Executor, j job) error {
	if je, ok := ex.(jobExecutor); ok {
		return je.executeJob(j)
	}
	return ex.Execute(j.run)
}

func isExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
