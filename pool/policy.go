package pool

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/utkarsh5026/txpools/internal/algorithms"
)

// RejectionPolicy decides what happens to a task the bounded pool could not
// admit, either because queue and workers are saturated or because the pool
// is shut down. It runs synchronously on the submitting goroutine.
//
// Returning nil reports the task as handled. Returning an error wrapping
// ErrDiscarded drops the task silently; its future completes with
// ErrDiscarded. Any other error is returned to the submitter.
type RejectionPolicy func(p *BoundedPool, task Task) error

// BackoffKind selects the pause strategy used between re-admission attempts.
type BackoffKind = algorithms.Kind

const (
	BackoffConstant     = algorithms.KindConstant
	BackoffExponential  = algorithms.KindExponential
	BackoffJittered     = algorithms.KindJittered
	BackoffDecorrelated = algorithms.KindDecorrelated
)

// Sleeper pauses the calling goroutine for d. It is injectable so tests do
// not depend on wall-clock sleeps.
type Sleeper func(ctx context.Context, d time.Duration) error

// CallerBlocksOption configures CallerBlocks.
type CallerBlocksOption func(*callerBlocksConfig)

type callerBlocksConfig struct {
	backoff     algorithms.Config
	newBackoff  func() algorithms.Backoff
	sleep       Sleeper
	maxAttempts int
}

// WithBackoff selects the pause between re-admission attempts.
// Zero durations keep the defaults (100ns pause, 10ms cap).
func WithBackoff(kind BackoffKind, initial, maxDelay time.Duration) CallerBlocksOption {
	return func(cfg *callerBlocksConfig) {
		cfg.backoff = algorithms.Config{Kind: kind, Initial: initial, Max: maxDelay}
	}
}

// WithSleeper replaces the pause implementation.
func WithSleeper(s Sleeper) CallerBlocksOption {
	return func(cfg *callerBlocksConfig) {
		if s != nil {
			cfg.sleep = s
		}
	}
}

// WithMaxAttempts bounds the number of re-admission attempts. 0, the
// default, retries until the task is admitted or the pool shuts down.
func WithMaxAttempts(n int) CallerBlocksOption {
	return func(cfg *callerBlocksConfig) {
		if n >= 0 {
			cfg.maxAttempts = n
		}
	}
}

// CallerBlocks makes submission self-throttling instead of failing.
//
// When the pool is saturated the submitting goroutine pauses briefly, offers
// the same task again and, once it is admitted, waits for that run to finish
// before returning. Submitters are thereby held to the pool's real
// throughput and no task is dropped. A failure of the re-admitted run is
// returned to the blocked submitter as an *ExecutionError.
//
// If the pool is shut down the task is discarded.
func CallerBlocks(opts ...CallerBlocksOption) RejectionPolicy {
	cfg := &callerBlocksConfig{sleep: sleepContext}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.newBackoff == nil {
		cfg.newBackoff = func() algorithms.Backoff { return algorithms.New(cfg.backoff) }
	}

	return func(p *BoundedPool, task Task) error {
		p.blocked.Add(1)
		defer p.blocked.Add(-1)

		// Each blocked submission walks its own backoff sequence.
		backoff := cfg.newBackoff()

		for attempt := 0; ; attempt++ {
			if p.IsShutdown() {
				return ErrDiscarded
			}
			if cfg.maxAttempts > 0 && attempt >= cfg.maxAttempts {
				return errors.Wrapf(ErrAdmissionExhausted, "after %d attempts", attempt)
			}

			if err := cfg.sleep(p.ctx, backoff.Next(attempt)); err != nil {
				return errors.Wrap(err, "pausing before re-admission")
			}

			done := make(chan error, 1)
			admitted, err := p.admit(job{run: task, done: done})
			if errors.Is(err, ErrPoolShutdown) {
				return ErrDiscarded
			}
			if !admitted {
				continue
			}

			if attempt > 0 {
				p.logger.Debug("task admitted after backpressure", zap.Int("attempt", attempt+1))
			}
			return asExecutionError(<-done)
		}
	}
}

// AbortPolicy refuses the task with ErrRejected, or ErrPoolShutdown after
// shutdown.
func AbortPolicy(p *BoundedPool, _ Task) error {
	if p.IsShutdown() {
		return ErrPoolShutdown
	}
	return ErrRejected
}

// DiscardPolicy drops the task silently.
func DiscardPolicy(_ *BoundedPool, _ Task) error {
	return ErrDiscarded
}

// CallerRunsPolicy runs the task on the submitting goroutine, unless the pool
// is shut down, in which case the task is discarded.
func CallerRunsPolicy(p *BoundedPool, task Task) error {
	if p.IsShutdown() {
		return ErrDiscarded
	}
	p.run(job{run: task})
	return nil
}
