package pool

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrPoolShutdown is returned when work is offered to a pool that has
	// been shut down.
	ErrPoolShutdown = errors.New("pool is shut down")

	// ErrRejected is returned by AbortPolicy when the bounded pool is saturated.
	ErrRejected = errors.New("task rejected: pool saturated")

	// ErrDiscarded completes the future of a task that a rejection policy
	// dropped without running it.
	ErrDiscarded = errors.New("task discarded")

	// ErrAdmissionExhausted is returned by CallerBlocks when an attempt limit
	// is configured and the task still could not be admitted.
	ErrAdmissionExhausted = errors.New("task admission attempts exhausted")

	// ErrInvalidConfig reports pool bounds that cannot be satisfied.
	ErrInvalidConfig = errors.New("invalid pool configuration")

	// ErrHostSchedulerSet is returned when the host scheduler is set twice.
	ErrHostSchedulerSet = errors.New("host scheduler already set")

	// ErrCancelled completes the future of a scheduled job stopped by Cancel.
	ErrCancelled = errors.New("scheduled job cancelled")

	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")
)

// ExecutionError reports that a task ran and failed. Cause is the error the
// task returned, or a *PanicError when it panicked.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return "execution failed: " + e.Cause.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// asExecutionError wraps err unless it already is an execution failure.
func asExecutionError(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecutionError{Cause: err}
}

// PanicError wraps a recovered panic value together with the stack of the
// goroutine that panicked.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v", e.Value)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}
