package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/txpools/internal/cpu"
	"github.com/utkarsh5026/txpools/internal/queue"
)

// SerialPool runs tasks one at a time, in submission order, on a single
// worker goroutine. Its queue is unbounded, so Execute never blocks and never
// rejects while the pool is running.
type SerialPool struct {
	name    string
	logger  *zap.Logger
	metrics Metrics
	core    int

	ctx      context.Context
	queue    *queue.FIFO[job]
	shutdown atomic.Bool
	done     chan struct{}

	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewSerialPool creates a serial pool and starts its worker.
func NewSerialPool(opts ...Option) *SerialPool {
	cfg := newPoolConfig("serial", opts...)

	p := &SerialPool{
		name:    cfg.name,
		logger:  cfg.logger.With(zap.String("pool", cfg.name)),
		metrics: cfg.metrics,
		core:    cfg.core,
		ctx:     context.Background(),
		queue:   queue.NewFIFO[job](),
		done:    make(chan struct{}),
	}

	var g errgroup.Group
	g.Go(p.worker)
	go func() {
		if err := g.Wait(); err != nil {
			p.logger.Warn("serial worker exited with error", zap.Error(err))
		}
		close(p.done)
	}()

	return p
}

// Execute appends task to the queue.
func (p *SerialPool) Execute(task Task) error {
	return p.executeJob(job{run: task})
}

func (p *SerialPool) executeJob(j job) error {
	p.metrics.TaskSubmitted(p.name)
	if p.shutdown.Load() {
		return ErrPoolShutdown
	}
	if err := p.queue.Push(j); err != nil {
		return ErrPoolShutdown
	}
	return nil
}

func (p *SerialPool) worker() error {
	if p.core != noCore {
		release, err := cpu.Dedicate(p.core)
		defer release()
		if err != nil {
			p.logger.Warn("could not pin serial worker", zap.Int("core", p.core), zap.Error(err))
		}
	}
	p.metrics.WorkersChanged(p.name, 1)
	defer p.metrics.WorkersChanged(p.name, -1)

	for {
		j, err := p.queue.Pop(p.ctx)
		if errors.Is(err, queue.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		start := time.Now()
		runErr := runSafely(p.ctx, j.run)
		if runErr != nil {
			p.failed.Add(1)
			p.logger.Debug("task failed", zap.Error(runErr))
		} else {
			p.completed.Add(1)
		}
		p.metrics.TaskFinished(p.name, time.Since(start), runErr)

		if j.done != nil {
			j.done <- runErr
		}
	}
}

// Shutdown stops admission and waits up to timeout (0 = forever) for the
// queued tasks to run.
func (p *SerialPool) Shutdown(timeout time.Duration) error {
	if p.shutdown.CompareAndSwap(false, true) {
		p.logger.Info("serial pool shutting down", zap.Int("queued", p.queue.Len()))
		p.queue.Close()
	}
	return waitUntil(p.done, timeout)
}

// IsShutdown reports whether Shutdown has been called.
func (p *SerialPool) IsShutdown() bool { return p.shutdown.Load() }

// Pending returns the number of queued tasks.
func (p *SerialPool) Pending() int { return p.queue.Len() }

// Completed returns the number of tasks that ran successfully.
func (p *SerialPool) Completed() uint64 { return p.completed.Load() }
