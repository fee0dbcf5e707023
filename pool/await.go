package pool

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// Resolver waits for pending outcomes without giving up on interruption.
//
// Interrupt wakes every waiter once. A woken waiter that finds its outcome
// not yet available counts the wake-up and goes back to waiting, so an
// interrupt never loses the result. Abandoning a wait is done with a context
// through AwaitContext.
type Resolver struct {
	logger *zap.Logger
	wake   atomic.Pointer[chan struct{}]
	wakes  atomic.Uint64
}

// ResolverOption configures NewResolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used to report spurious wake-ups.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver creates a resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	ch := make(chan struct{})
	r.wake.Store(&ch)
	return r
}

var defaultResolver = NewResolver()

// Await blocks until f completes and returns its value. A task failure is
// reported as an *ExecutionError; pool-level outcomes such as ErrDiscarded,
// ErrCancelled and ErrPoolShutdown are returned as they are.
func Await[R any](f *Future[R]) (R, error) {
	return AwaitWith(defaultResolver, f)
}

// AwaitWith is Await using r.
func AwaitWith[R any](r *Resolver, f *Future[R]) (R, error) {
	return AwaitContext(context.Background(), r, f)
}

// AwaitContext is AwaitWith that gives up when ctx is done, returning
// ctx.Err(). Interrupts alone never end the wait.
func AwaitContext[R any](ctx context.Context, r *Resolver, f *Future[R]) (R, error) {
	if err := r.wait(ctx, f.Done()); err != nil {
		var zero R
		return zero, err
	}
	return resolve(f)
}

// Interrupt wakes all current waiters once.
func (r *Resolver) Interrupt() {
	next := make(chan struct{})
	prev := r.wake.Swap(&next)
	close(*prev)
}

// SpuriousWakeups reports how many wake-ups found their outcome not ready.
func (r *Resolver) SpuriousWakeups() uint64 { return r.wakes.Load() }

// wait blocks until done is closed or ctx ends, absorbing interrupts.
func (r *Resolver) wait(ctx context.Context, done <-chan struct{}) error {
	for {
		wake := *r.wake.Load()

		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			select {
			case <-done:
				return nil
			default:
			}
			n := r.wakes.Add(1)
			r.logger.Debug("spurious wake-up while awaiting outcome", zap.Uint64("wakeups", n))
		}
	}
}

func resolve[R any](f *Future[R]) (R, error) {
	v, err := f.Get()
	if err == nil {
		return v, nil
	}

	var zero R
	if isPoolOutcome(err) {
		return zero, err
	}
	return zero, asExecutionError(err)
}

// isPoolOutcome reports errors that mean the task never ran to completion
// rather than that it failed.
func isPoolOutcome(err error) bool {
	return errors.Is(err, ErrDiscarded) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrPoolShutdown) ||
		errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrAdmissionExhausted)
}
