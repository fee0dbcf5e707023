// Package pool provides the execution pools shared by a process that runs
// many short-lived, transactional units of work.
//
// There are three pool kinds, all implementing Executor:
//
//   - SerialPool: one worker, unbounded FIFO queue, strict submission order.
//   - BoundedPool: between a core and a maximum number of workers fed by a
//     fixed-capacity queue, with a RejectionPolicy for overload.
//   - ScheduledPool: a fixed number of workers running delayed, fixed-rate,
//     fixed-delay and cron jobs.
//
// A Registry owns one pool of each kind and is created once by the host.
//
// # Basic Usage
//
//	reg, err := pool.NewRegistry(cfg, pool.WithRegistryLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer reg.Shutdown(30 * time.Second)
//
//	f, err := pool.Submit(reg.General(), func(ctx context.Context) (int, error) {
//	    return compute(ctx)
//	})
//	n, err := pool.Await(f)
//
// # Backpressure
//
// The general pool uses CallerBlocks. When its queue is full and all
// workers are busy, the submitter pauses, offers the task again and, once
// it is admitted, waits for that run to finish. Tasks are never dropped
// while the pool is running:
//
//	p, _ := pool.NewBoundedPool(
//	    pool.WithWorkerRange(2, 4),
//	    pool.WithQueueCapacity(10),
//	    pool.WithRejectionPolicy(pool.CallerBlocks(
//	        pool.WithBackoff(pool.BackoffExponential, time.Microsecond, time.Millisecond),
//	    )),
//	)
//
// # Batches
//
// RunBatch and SubmitBatch run a slice of items inside one transactional
// Scope. The scope is marked successful only if every item succeeded, and
// it is closed exactly once:
//
//	f, _ := pool.SubmitBatch(reg, users, indexUser, txscope.NewMongoFactory(client))
//	_, err := pool.Await(f)
//
// # Waiting
//
// Await never gives up because of an interrupt. A Resolver's Interrupt wakes
// waiters, which count the wake-up and keep waiting; use AwaitContext to
// abandon a wait.
//
// # Error Handling
//
// Task failures are reported by Await as *ExecutionError, and panics inside
// tasks are recovered into *PanicError so a worker never dies. Outcomes that
// mean a task never ran (ErrDiscarded, ErrCancelled, ErrPoolShutdown) are
// returned unwrapped.
package pool
