package pool

import (
	"context"
	"time"
)

// Task is a unit of work run by a pool worker. The context is the pool's
// lifetime context; the core never cancels it while work drains.
type Task func(ctx context.Context) error

// Executor is implemented by every pool kind.
type Executor interface {
	// Execute admits task for asynchronous execution. Failures of the task
	// itself are not reported here; use Submit to observe them.
	Execute(task Task) error

	// Shutdown stops admission and waits up to timeout (0 = forever) for
	// already admitted work to drain.
	Shutdown(timeout time.Duration) error

	// IsShutdown reports whether Shutdown has been called.
	IsShutdown() bool
}

// ItemFunc applies a caller-supplied action to one element of a batch.
type ItemFunc[T any] func(ctx context.Context, item T) error

// Scope is a transactional unit-of-work boundary owned by the host.
//
// MarkSuccess flags the scope for commit; Close releases it, committing when
// it was marked and rolling back otherwise. Close is called exactly once per
// opened scope.
type Scope interface {
	MarkSuccess()
	Close() error
}

// ScopeFactory opens a new Scope.
type ScopeFactory func(ctx context.Context) (Scope, error)

// HostScheduler is the job scheduler of the embedding host runtime. It is
// optional: pools never require it.
type HostScheduler interface {
	Schedule(name string, task Task) error
}

// job is the admission envelope that travels through pool queues.
type job struct {
	run Task

	// discard completes the submitter's future when the job is dropped
	// without running. Nil for plain Execute calls.
	discard func(error)

	// done receives the run error; used by CallerBlocks to wait for a
	// resubmission it made.
	done chan<- error
}

func (j job) drop(cause error) {
	if j.discard != nil {
		j.discard(cause)
	}
}

// jobExecutor is implemented by all pools in this package so that Submit can
// attach a discard hook to the task.
type jobExecutor interface {
	executeJob(j job) error
}
