package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultIdleTimeout is how long workers above the core count linger.
	DefaultIdleTimeout = 30 * time.Second

	defaultQueuePerWorker = 25
)

// BoundedSizing holds the bounds of a bounded pool.
type BoundedSizing struct {
	MinWorkers    int
	MaxWorkers    int
	QueueCapacity int
	IdleTimeout   time.Duration
}

// DefaultBoundedSizing derives the general pool's bounds from the available
// parallelism: twice as many workers as parallelism units, half of them
// kept alive, and a queue 25 times the worker ceiling. The sizing favours
// fast-draining bursts over sustained worker growth.
func DefaultBoundedSizing(parallelism int) BoundedSizing {
	maxWorkers := 2 * max(parallelism, 1)
	return BoundedSizing{
		MinWorkers:    max(maxWorkers/2, 1),
		MaxWorkers:    maxWorkers,
		QueueCapacity: defaultQueuePerWorker * maxWorkers,
		IdleTimeout:   DefaultIdleTimeout,
	}
}

// Options returns the sizing as constructor options.
func (s BoundedSizing) Options() []Option {
	return []Option{
		WithWorkerRange(s.MinWorkers, s.MaxWorkers),
		WithQueueCapacity(s.QueueCapacity),
		WithIdleTimeout(s.IdleTimeout),
	}
}

// BoundedPool runs tasks on between MinWorkers and MaxWorkers goroutines fed
// by a fixed-capacity admission queue.
//
// A submission starts a new worker while fewer than MinWorkers exist;
// otherwise it is queued. When the queue is full a worker is added up to
// MaxWorkers, and past that the rejection policy decides. Workers above
// MinWorkers exit after IdleTimeout without work.
//
// Bounds are fixed at construction.
type BoundedPool struct {
	name        string
	minWorkers  int
	maxWorkers  int
	idleTimeout time.Duration
	capacity    int
	policy      RejectionPolicy
	cfg         *poolConfig
	logger      *zap.Logger
	metrics     Metrics

	ctx   context.Context
	queue chan job

	// admitMu serialises Shutdown against in-flight admissions so the
	// queue is never sent to after it is closed.
	admitMu  sync.RWMutex
	shutdown atomic.Bool
	wg       sync.WaitGroup

	workers   atomic.Int32
	active    atomic.Int32
	completed atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	discarded atomic.Uint64
	blocked   atomic.Int32
}

// BoundedStats is a point-in-time view of a bounded pool.
type BoundedStats struct {
	Name          string
	MinWorkers    int
	MaxWorkers    int
	QueueCapacity int
	Workers       int
	Active        int
	Queued        int
	Blocked       int
	Completed     uint64
	Failed        uint64
	Rejected      uint64
	Discarded     uint64
}

// NewBoundedPool builds a bounded pool. The worker range must satisfy
// 1 ≤ min ≤ max and the queue capacity must not be negative. Without a
// WithRejectionPolicy option the pool uses CallerBlocks().
//
// Workers are started lazily as tasks arrive.
func NewBoundedPool(opts ...Option) (*BoundedPool, error) {
	cfg := newPoolConfig("general", opts...)

	if cfg.minWorkers < 1 || cfg.maxWorkers < cfg.minWorkers {
		return nil, errors.Wrapf(ErrInvalidConfig, "worker range [%d, %d]", cfg.minWorkers, cfg.maxWorkers)
	}
	if cfg.queueCapacity < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "queue capacity %d", cfg.queueCapacity)
	}
	if cfg.idleTimeout <= 0 {
		cfg.idleTimeout = DefaultIdleTimeout
	}
	if cfg.policy == nil {
		cfg.policy = CallerBlocks()
	}

	p := &BoundedPool{
		name:        cfg.name,
		minWorkers:  cfg.minWorkers,
		maxWorkers:  cfg.maxWorkers,
		idleTimeout: cfg.idleTimeout,
		capacity:    cfg.queueCapacity,
		policy:      cfg.policy,
		cfg:         cfg,
		logger:      cfg.logger.With(zap.String("pool", cfg.name)),
		metrics:     cfg.metrics,
		ctx:         context.Background(),
		queue:       make(chan job, cfg.queueCapacity),
	}

	p.logger.Debug("bounded pool created",
		zap.Int("min_workers", p.minWorkers),
		zap.Int("max_workers", p.maxWorkers),
		zap.Int("queue_capacity", p.capacity),
		zap.Duration("idle_timeout", p.idleTimeout),
	)
	return p, nil
}

// Execute admits task, applying the rejection policy when the pool is
// saturated or shut down.
func (p *BoundedPool) Execute(task Task) error {
	return p.executeJob(job{run: task})
}

func (p *BoundedPool) executeJob(j job) error {
	p.metrics.TaskSubmitted(p.name)

	if p.cfg.limiter != nil && !p.shutdown.Load() {
		if err := p.cfg.limiter.Wait(p.ctx); err != nil {
			return errors.Wrap(err, "waiting for admission rate limit")
		}
	}

	if admitted, _ := p.admit(j); admitted {
		return nil
	}

	p.rejected.Add(1)
	p.metrics.TaskRejected(p.name)

	err := p.policy(p, j.run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDiscarded):
		p.discarded.Add(1)
		j.drop(ErrDiscarded)
		p.logger.Debug("task discarded", zap.Bool("shutdown", p.shutdown.Load()))
		return nil
	case isExecutionError(err):
		return err
	default:
		j.drop(err)
		return err
	}
}

// TryExecute admits task only if that is possible without blocking and
// without invoking the rejection policy.
func (p *BoundedPool) TryExecute(task Task) bool {
	admitted, _ := p.admit(job{run: task})
	return admitted
}

// admit places j with a worker: a new core worker, the queue, or a new
// worker up to the maximum, in that order.
func (p *BoundedPool) admit(j job) (bool, error) {
	p.admitMu.RLock()
	defer p.admitMu.RUnlock()

	if p.shutdown.Load() {
		return false, ErrPoolShutdown
	}

	if p.addWorker(j, p.minWorkers) {
		return true, nil
	}

	select {
	case p.queue <- j:
		return true, nil
	default:
	}

	if p.addWorker(j, p.maxWorkers) {
		return true, nil
	}
	return false, nil
}

// addWorker starts a worker with first as its initial job if fewer than
// limit workers are alive. Callers hold admitMu for reading.
func (p *BoundedPool) addWorker(first job, limit int) bool {
	for {
		n := p.workers.Load()
		if int(n) >= limit {
			return false
		}
		if p.workers.CompareAndSwap(n, n+1) {
			break
		}
	}

	p.metrics.WorkersChanged(p.name, 1)
	p.wg.Add(1)
	go p.worker(first)
	return true
}

// retire lets an idle worker exit if the pool is above its core size.
func (p *BoundedPool) retire() bool {
	for {
		n := p.workers.Load()
		if int(n) <= p.minWorkers {
			return false
		}
		if p.workers.CompareAndSwap(n, n-1) {
			p.metrics.WorkersChanged(p.name, -1)
			return true
		}
	}
}

// Shutdown stops admission and waits up to timeout (0 = forever) for queued
// and running tasks to finish. Repeated calls only wait.
func (p *BoundedPool) Shutdown(timeout time.Duration) error {
	p.admitMu.Lock()
	if p.shutdown.CompareAndSwap(false, true) {
		close(p.queue)
		p.logger.Info("bounded pool shutting down", zap.Int("queued", len(p.queue)))
	}
	p.admitMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	return waitUntil(done, timeout)
}

// IsShutdown reports whether Shutdown has been called.
func (p *BoundedPool) IsShutdown() bool { return p.shutdown.Load() }

// Stats returns a snapshot of the pool's counters.
func (p *BoundedPool) Stats() BoundedStats {
	return BoundedStats{
		Name:          p.name,
		MinWorkers:    p.minWorkers,
		MaxWorkers:    p.maxWorkers,
		QueueCapacity: p.capacity,
		Workers:       int(p.workers.Load()),
		Active:        int(p.active.Load()),
		Queued:        len(p.queue),
		Blocked:       int(p.blocked.Load()),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Rejected:      p.rejected.Load(),
		Discarded:     p.discarded.Load(),
	}
}

// Name returns the pool name.
func (p *BoundedPool) Name() string { return p.name }
