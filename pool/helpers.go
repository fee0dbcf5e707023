package pool

import (
	"context"
	"runtime"
	"time"
)

// waitUntil blocks until either the done channel is closed or the timeout is reached.
// It is used during graceful shutdown to wait for workers to drain their work.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-d:
		return nil
	case <-t.C:
		return ErrShutdownTimeout
	}
}

// runSafely executes a task, converting a panic into a *PanicError so a
// single task cannot take its worker down.
func runSafely(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return t(ctx)
}

// sleepContext pauses for d. Non-positive durations only yield.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
