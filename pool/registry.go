package pool

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/utkarsh5026/txpools/config"
	"github.com/utkarsh5026/txpools/internal/cpu"
)

type registryConfig struct {
	logger      *zap.Logger
	metrics     Metrics
	parallelism int
	policy      RejectionPolicy
	serialCore  int
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryConfig)

// WithRegistryLogger sets the logger shared by the registry and its pools.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(c *registryConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRegistryMetrics sets the metrics sink shared by all pools.
func WithRegistryMetrics(m Metrics) RegistryOption {
	return func(c *registryConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithParallelism overrides the parallelism the pools are sized from.
// Non-positive values keep the detected value.
func WithParallelism(n int) RegistryOption {
	return func(c *registryConfig) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithGeneralPolicy replaces the general pool's CallerBlocks policy.
func WithGeneralPolicy(p RejectionPolicy) RegistryOption {
	return func(c *registryConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithSerialThread pins the serial pool's worker to core; see
// WithDedicatedThread.
func WithSerialThread(core int) RegistryOption {
	return func(c *registryConfig) {
		c.serialCore = max(core, -1)
	}
}

// Registry owns the three process-wide pools and the host scheduler slot.
// The host constructs one at startup and passes it to whatever needs to
// submit work.
type Registry struct {
	serial    *SerialPool
	general   *BoundedPool
	scheduled *ScheduledPool

	logger      *zap.Logger
	parallelism int

	hostMu sync.RWMutex
	host   HostScheduler
}

// NewRegistry builds the serial, general and scheduled pools.
//
// The general pool uses DefaultBoundedSizing with any non-zero
// pools.general values from cfg layered on top, and CallerBlocks for
// overload. The scheduled pool's size comes from jobs.scheduled.num_threads.
func NewRegistry(cfg config.Config, opts ...RegistryOption) (*Registry, error) {
	rc := &registryConfig{
		logger:      zap.NewNop(),
		metrics:     NoopMetrics{},
		parallelism: cpu.Parallelism(),
		serialCore:  noCore,
	}
	for _, opt := range opts {
		opt(rc)
	}

	common := []Option{WithLogger(rc.logger), WithMetrics(rc.metrics)}

	sizing := generalSizing(rc.parallelism, cfg.Pools.General)
	generalOpts := append(sizing.Options(), common...)
	generalOpts = append(generalOpts, WithName("general"))
	if rc.policy != nil {
		generalOpts = append(generalOpts, WithRejectionPolicy(rc.policy))
	}
	general, err := NewBoundedPool(generalOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating general pool")
	}

	serialOpts := append([]Option{WithName("serial")}, common...)
	if rc.serialCore != noCore {
		serialOpts = append(serialOpts, WithDedicatedThread(rc.serialCore))
	}
	serial := NewSerialPool(serialOpts...)

	workers := cfg.ScheduledWorkers(rc.parallelism, rc.logger)
	scheduled := NewScheduledPool(workers, append([]Option{WithName("scheduled")}, common...)...)

	rc.logger.Info("pool registry started",
		zap.Int("parallelism", rc.parallelism),
		zap.Int("general_min_workers", sizing.MinWorkers),
		zap.Int("general_max_workers", sizing.MaxWorkers),
		zap.Int("general_queue_capacity", sizing.QueueCapacity),
		zap.Int("scheduled_workers", scheduled.Workers()),
	)

	return &Registry{
		serial:      serial,
		general:     general,
		scheduled:   scheduled,
		logger:      rc.logger,
		parallelism: rc.parallelism,
	}, nil
}

// generalSizing layers the configured bounds over DefaultBoundedSizing.
// Unset bounds follow the set ones: a lone maximum keeps half of it as the
// core size, a lone minimum raises the maximum to at least itself, and the
// queue is 25 times the resulting maximum unless configured explicitly.
func generalSizing(parallelism int, override config.GeneralPoolConfig) BoundedSizing {
	s := DefaultBoundedSizing(parallelism)

	switch {
	case override.MinWorkers != nil && override.MaxWorkers != nil:
		s.MinWorkers = *override.MinWorkers
		s.MaxWorkers = *override.MaxWorkers
	case override.MaxWorkers != nil:
		s.MaxWorkers = *override.MaxWorkers
		s.MinWorkers = max(s.MaxWorkers/2, 1)
	case override.MinWorkers != nil:
		s.MinWorkers = *override.MinWorkers
		s.MaxWorkers = max(s.MaxWorkers, s.MinWorkers)
	}

	s.QueueCapacity = defaultQueuePerWorker * max(s.MaxWorkers, 0)
	if override.QueueCapacity != nil {
		s.QueueCapacity = *override.QueueCapacity
	}
	if override.IdleTimeout > 0 {
		s.IdleTimeout = override.IdleTimeout
	}
	return s
}

// Serial returns the single-worker FIFO pool.
func (r *Registry) Serial() *SerialPool { return r.serial }

// General returns the bounded general-purpose pool.
func (r *Registry) General() *BoundedPool { return r.general }

// Scheduled returns the delayed and recurring job pool.
func (r *Registry) Scheduled() *ScheduledPool { return r.scheduled }

// SetHostScheduler installs the host's job scheduler. It can be set once;
// later calls return ErrHostSchedulerSet.
func (r *Registry) SetHostScheduler(s HostScheduler) error {
	if s == nil {
		return errors.Wrap(ErrInvalidConfig, "nil host scheduler")
	}

	r.hostMu.Lock()
	defer r.hostMu.Unlock()

	if r.host != nil {
		return ErrHostSchedulerSet
	}
	r.host = s
	return nil
}

// HostScheduler returns the installed host scheduler, or nil.
func (r *Registry) HostScheduler() HostScheduler {
	r.hostMu.RLock()
	defer r.hostMu.RUnlock()
	return r.host
}

// AvailableConcurrencyHint reports the parallelism the pools were sized
// from.
func (r *Registry) AvailableConcurrencyHint() int { return r.parallelism }

// Shutdown stops all three pools, giving each up to timeout to drain, and
// returns every failure combined.
func (r *Registry) Shutdown(timeout time.Duration) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	stop := func(name string, ex Executor) {
		defer wg.Done()
		if err := ex.Shutdown(timeout); err != nil {
			mu.Lock()
			errs = multierr.Append(errs, errors.Wrapf(err, "shutting down %s pool", name))
			mu.Unlock()
		}
	}

	wg.Add(3)
	go stop("scheduled", r.scheduled)
	go stop("general", r.general)
	go stop("serial", r.serial)
	wg.Wait()

	if errs != nil {
		r.logger.Warn("pool registry shutdown incomplete", zap.Error(errs))
	} else {
		r.logger.Info("pool registry stopped")
	}
	return errs
}
