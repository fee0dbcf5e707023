package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/txpools/internal/queue"
)

type scheduleKind int

const (
	kindOnce scheduleKind = iota
	kindFixedRate
	kindFixedDelay
	kindCron
)

func (k scheduleKind) String() string {
	switch k {
	case kindOnce:
		return "once"
	case kindFixedRate:
		return "fixed-rate"
	case kindFixedDelay:
		return "fixed-delay"
	case kindCron:
		return "cron"
	default:
		return "unknown"
	}
}

// ScheduledFuture is the handle of a delayed or recurring job.
//
// One-shot jobs complete with the task's outcome. Recurring jobs complete
// only when a run fails (with that error), when they are cancelled
// (ErrCancelled) or when the pool shuts down (ErrPoolShutdown).
type ScheduledFuture struct {
	outcome   *Future[struct{}]
	cancelled atomic.Bool
	runs      atomic.Int64
}

// Done is closed once the job has completed.
func (f *ScheduledFuture) Done() <-chan struct{} { return f.outcome.Done() }

// Get blocks until the job completes and returns its error.
func (f *ScheduledFuture) Get() error {
	_, err := f.outcome.Get()
	return err
}

// Future exposes the underlying outcome, e.g. for Await.
func (f *ScheduledFuture) Future() *Future[struct{}] { return f.outcome }

// Runs reports how many times the job has run so far.
func (f *ScheduledFuture) Runs() int64 { return f.runs.Load() }

// Cancel stops further runs. A run already in progress finishes. It reports
// whether this call cancelled the job.
func (f *ScheduledFuture) Cancel() bool {
	if !f.cancelled.CompareAndSwap(false, true) {
		return false
	}
	return f.outcome.complete(struct{}{}, ErrCancelled)
}

type scheduledJob struct {
	task     Task
	kind     scheduleKind
	period   time.Duration
	schedule cron.Schedule
	next     time.Time
	handle   *ScheduledFuture
	onDrop   func(error)
}

func (sj *scheduledJob) finish(err error) {
	sj.handle.outcome.complete(struct{}{}, err)
}

func (sj *scheduledJob) drop(cause error) {
	sj.finish(cause)
	if sj.onDrop != nil {
		sj.onDrop(cause)
	}
}

// following computes the run after one that was due at sj.next and
// finished at finished. A zero time means there is none.
func (sj *scheduledJob) following(finished time.Time) time.Time {
	switch sj.kind {
	case kindFixedRate:
		return sj.next.Add(sj.period)
	case kindFixedDelay:
		return finished.Add(sj.period)
	case kindCron:
		return sj.schedule.Next(finished)
	default:
		return time.Time{}
	}
}

// ScheduledPool runs delayed and recurring jobs on a fixed number of workers.
//
// A dispatcher goroutine moves jobs from a timer heap to a ready queue when
// they become due. A recurring job is re-armed only after its run finishes,
// so it never overlaps itself; there is no ordering between different jobs.
type ScheduledPool struct {
	name    string
	logger  *zap.Logger
	metrics Metrics
	workers int

	ctx    context.Context
	mu     sync.Mutex
	timers queue.TimerHeap[*scheduledJob]
	ready  *queue.FIFO[*scheduledJob]
	wake   chan struct{}

	shutdown       atomic.Bool
	closing        chan struct{}
	dispatcherDone chan struct{}
	done           chan struct{}
}

// NewScheduledPool creates a scheduled pool with workers goroutines
// (at least 1) and starts it. Registries size it with
// config.Config.ScheduledWorkers.
func NewScheduledPool(workers int, opts ...Option) *ScheduledPool {
	cfg := newPoolConfig("scheduled", opts...)

	p := &ScheduledPool{
		name:           cfg.name,
		logger:         cfg.logger.With(zap.String("pool", cfg.name)),
		metrics:        cfg.metrics,
		workers:        max(1, workers),
		ctx:            context.Background(),
		ready:          queue.NewFIFO[*scheduledJob](),
		wake:           make(chan struct{}, 1),
		closing:        make(chan struct{}),
		dispatcherDone: make(chan struct{}),
		done:           make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(func() error {
		defer close(p.dispatcherDone)
		p.dispatch()
		return nil
	})
	for range p.workers {
		g.Go(p.worker)
	}
	p.metrics.WorkersChanged(p.name, p.workers)

	go func() {
		if err := g.Wait(); err != nil {
			p.logger.Warn("scheduled worker exited with error", zap.Error(err))
		}
		p.metrics.WorkersChanged(p.name, -p.workers)
		close(p.done)
	}()

	return p
}

// Workers returns the fixed worker count.
func (p *ScheduledPool) Workers() int { return p.workers }

// Execute runs task as soon as a worker is free.
func (p *ScheduledPool) Execute(task Task) error {
	return p.executeJob(job{run: task})
}

func (p *ScheduledPool) executeJob(j job) error {
	_, err := p.add(&scheduledJob{task: j.run, kind: kindOnce, onDrop: j.discard}, 0)
	return err
}

// Schedule runs task once after delay.
func (p *ScheduledPool) Schedule(delay time.Duration, task Task) (*ScheduledFuture, error) {
	return p.add(&scheduledJob{task: task, kind: kindOnce}, delay)
}

// ScheduleAtFixedRate runs task after initialDelay and then every period,
// measured from the scheduled start of each run. A run that overruns the
// period delays the next one instead of overlapping it.
func (p *ScheduledPool) ScheduleAtFixedRate(initialDelay, period time.Duration, task Task) (*ScheduledFuture, error) {
	if period <= 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "non-positive period %s", period)
	}
	return p.add(&scheduledJob{task: task, kind: kindFixedRate, period: period}, initialDelay)
}

// ScheduleWithFixedDelay runs task after initialDelay and then delay after
// each run finishes.
func (p *ScheduledPool) ScheduleWithFixedDelay(initialDelay, delay time.Duration, task Task) (*ScheduledFuture, error) {
	if delay <= 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "non-positive delay %s", delay)
	}
	return p.add(&scheduledJob{task: task, kind: kindFixedDelay, period: delay}, initialDelay)
}

// ScheduleCron runs task on a standard five-field cron schedule or a
// descriptor such as "@hourly" or "@every 1m30s".
func (p *ScheduledPool) ScheduleCron(expr string, task Task) (*ScheduledFuture, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "parsing cron expression %q", expr)
	}

	now := time.Now()
	first := schedule.Next(now)
	if first.IsZero() {
		return nil, pkgerrors.Wrapf(ErrInvalidConfig, "cron expression %q never fires", expr)
	}
	return p.add(&scheduledJob{task: task, kind: kindCron, schedule: schedule}, first.Sub(now))
}

func (p *ScheduledPool) add(sj *scheduledJob, delay time.Duration) (*ScheduledFuture, error) {
	p.metrics.TaskSubmitted(p.name)

	sj.handle = &ScheduledFuture{outcome: newFuture[struct{}]()}
	sj.next = time.Now().Add(max(delay, 0))

	p.mu.Lock()
	if p.shutdown.Load() {
		p.mu.Unlock()
		return nil, ErrPoolShutdown
	}
	p.timers.Push(sj.next, sj)
	p.mu.Unlock()

	p.signal()
	return sj.handle, nil
}

func (p *ScheduledPool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// dispatch moves due jobs to the ready queue until the pool shuts down.
func (p *ScheduledPool) dispatch() {
	for {
		p.mu.Lock()
		next, ok := p.timers.Next()
		p.mu.Unlock()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if ok {
			timer = time.NewTimer(time.Until(next))
			fire = timer.C
		}

		select {
		case <-p.closing:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-p.wake:

		case <-fire:
			p.mu.Lock()
			due := p.timers.PopDue(time.Now())
			p.mu.Unlock()

			for _, sj := range due {
				if sj.handle.cancelled.Load() {
					continue
				}
				if err := p.ready.Push(sj); err != nil {
					sj.drop(ErrPoolShutdown)
				}
			}
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

func (p *ScheduledPool) worker() error {
	for {
		sj, err := p.ready.Pop(p.ctx)
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if sj.handle.cancelled.Load() {
			continue
		}

		start := time.Now()
		runErr := runSafely(p.ctx, sj.task)
		finished := time.Now()

		sj.handle.runs.Add(1)
		p.metrics.TaskFinished(p.name, finished.Sub(start), runErr)
		p.rearm(sj, finished, runErr)
	}
}

// rearm completes one-shot and failed jobs and re-queues recurring ones.
func (p *ScheduledPool) rearm(sj *scheduledJob, finished time.Time, runErr error) {
	if runErr != nil {
		if sj.kind != kindOnce {
			p.logger.Warn("recurring job failed; no further runs",
				zap.Stringer("kind", sj.kind),
				zap.Int64("runs", sj.handle.Runs()),
				zap.Error(runErr),
			)
		}
		sj.finish(runErr)
		return
	}

	next := sj.following(finished)
	if next.IsZero() {
		sj.finish(nil)
		return
	}
	sj.next = next

	p.mu.Lock()
	switch {
	case p.shutdown.Load():
		p.mu.Unlock()
		sj.finish(ErrPoolShutdown)
		return
	case sj.handle.cancelled.Load():
		p.mu.Unlock()
		return
	}
	p.timers.Push(next, sj)
	p.mu.Unlock()

	p.signal()
}

// Shutdown stops admission, drops delayed and recurring jobs that have not
// become due, and waits up to timeout (0 = forever) for ready and running
// jobs to finish.
func (p *ScheduledPool) Shutdown(timeout time.Duration) error {
	if p.shutdown.CompareAndSwap(false, true) {
		close(p.closing)
		<-p.dispatcherDone

		p.mu.Lock()
		pending := p.timers.Drain()
		p.mu.Unlock()

		for _, sj := range pending {
			sj.drop(ErrPoolShutdown)
		}
		p.ready.Close()

		p.logger.Info("scheduled pool shutting down",
			zap.Int("dropped", len(pending)),
			zap.Int("ready", p.ready.Len()),
		)
	}
	return waitUntil(p.done, timeout)
}

// IsShutdown reports whether Shutdown has been called.
func (p *ScheduledPool) IsShutdown() bool { return p.shutdown.Load() }
