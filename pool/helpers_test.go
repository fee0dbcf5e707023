package pool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitUntil(t *testing.T) {
	done := make(chan struct{})
	if err := waitUntil(done, 5*time.Millisecond); !errors.Is(err, ErrShutdownTimeout) {
		t.Fatalf("expected ErrShutdownTimeout, got %v", err)
	}

	close(done)
	if err := waitUntil(done, time.Second); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := waitUntil(done, 0); err != nil {
		t.Fatalf("expected nil for unbounded wait, got %v", err)
	}
}

func TestRunSafely(t *testing.T) {
	err := runSafely(context.Background(), func(context.Context) error { panic("oops") })

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if pe.Value != "oops" {
		t.Errorf("expected panic value oops, got %v", pe.Value)
	}

	want := errors.New("plain")
	if err := runSafely(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("expected task error to pass through, got %v", err)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Fatalf("zero pause: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := asExecutionError(cause)

	if err.Error() != "execution failed: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected ExecutionError to unwrap to its cause")
	}
	if asExecutionError(err) != err {
		t.Error("expected an ExecutionError not to be wrapped twice")
	}
	if asExecutionError(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}
