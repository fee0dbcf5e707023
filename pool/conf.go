package pool

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option is a functional option shared by every pool constructor.
// Options that do not apply to a pool kind are ignored by it.
type Option func(*poolConfig)

// noCore marks a serial worker that is not dedicated to an OS thread.
const noCore = -2

type poolConfig struct {
	name    string
	logger  *zap.Logger
	metrics Metrics

	// bounded pool
	minWorkers    int
	maxWorkers    int
	idleTimeout   time.Duration
	queueCapacity int
	policy        RejectionPolicy
	limiter       *rate.Limiter

	// serial pool
	core int
}

func newPoolConfig(name string, opts ...Option) *poolConfig {
	cfg := &poolConfig{
		name:    name,
		logger:  zap.NewNop(),
		metrics: NoopMetrics{},
		core:    noCore,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithName sets the pool name used in log fields and metric labels.
func WithName(name string) Option {
	return func(cfg *poolConfig) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *poolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to NoopMetrics.
func WithMetrics(m Metrics) Option {
	return func(cfg *poolConfig) {
		if m != nil {
			cfg.metrics = m
		}
	}
}

// WithWorkerRange sets the bounded pool's core and maximum worker counts.
// Values are validated by NewBoundedPool.
func WithWorkerRange(minWorkers, maxWorkers int) Option {
	return func(cfg *poolConfig) {
		cfg.minWorkers = minWorkers
		cfg.maxWorkers = maxWorkers
	}
}

// WithIdleTimeout sets how long a bounded-pool worker above the core count
// may stay idle before it exits.
func WithIdleTimeout(d time.Duration) Option {
	return func(cfg *poolConfig) {
		if d > 0 {
			cfg.idleTimeout = d
		}
	}
}

// WithQueueCapacity sets the bounded pool's admission queue capacity.
// 0 means no buffering beyond workers ready to receive.
func WithQueueCapacity(n int) Option {
	return func(cfg *poolConfig) {
		cfg.queueCapacity = n
	}
}

// WithRejectionPolicy sets what the bounded pool does when it cannot admit a
// task. Defaults to CallerBlocks().
func WithRejectionPolicy(p RejectionPolicy) Option {
	return func(cfg *poolConfig) {
		if p != nil {
			cfg.policy = p
		}
	}
}

// WithAdmissionRate limits how fast the bounded pool admits tasks.
// Submitters wait for a token before admission is attempted.
//
// Example:
//
//	WithAdmissionRate(500, 50) // 500 tasks/sec with burst of 50
func WithAdmissionRate(tasksPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.limiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithDedicatedThread locks the serial worker to an OS thread and, where
// supported, pins that thread to core. A negative core only locks the thread.
func WithDedicatedThread(core int) Option {
	return func(cfg *poolConfig) {
		cfg.core = max(core, -1)
	}
}
