package pool

import (
	"time"

	"go.uber.org/zap"
)

// worker runs first, then keeps taking jobs from the admission queue until
// the queue is closed and drained, or until it has been idle for the idle
// timeout while the pool is above its core size.
func (p *BoundedPool) worker(first job) {
	defer p.wg.Done()

	p.run(first)

	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				p.workers.Add(-1)
				p.metrics.WorkersChanged(p.name, -1)
				return
			}
			p.run(j)

		case <-idle.C:
			if p.retire() {
				p.logger.Debug("idle worker retired", zap.Int32("workers", p.workers.Load()))
				return
			}
		}

		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(p.idleTimeout)
	}
}

// run executes one job with panic recovery and reports its outcome.
func (p *BoundedPool) run(j job) {
	p.active.Add(1)
	start := time.Now()

	err := runSafely(p.ctx, j.run)

	elapsed := time.Since(start)
	p.active.Add(-1)
	if err != nil {
		p.failed.Add(1)
		p.logger.Debug("task failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		p.completed.Add(1)
	}
	p.metrics.TaskFinished(p.name, elapsed, err)

	if j.done != nil {
		j.done <- err
	}
}
