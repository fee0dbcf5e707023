package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives pool activity events.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type Metrics interface {
	// TaskSubmitted is called for every task offered to a pool.
	TaskSubmitted(pool string)

	// TaskRejected is called when a bounded pool could not admit a task
	// and handed it to its rejection policy.
	TaskRejected(pool string)

	// TaskFinished is called after a task ran, successfully or not.
	TaskFinished(pool string, elapsed time.Duration, err error)

	// WorkersChanged reports a change in the number of live workers.
	WorkersChanged(pool string, delta int)
}

// NoopMetrics discards all events.
type NoopMetrics struct{}

func (NoopMetrics) TaskSubmitted(string)                      {}
func (NoopMetrics) TaskRejected(string)                       {}
func (NoopMetrics) TaskFinished(string, time.Duration, error) {}
func (NoopMetrics) WorkersChanged(string, int)                {}

// AtomicMetrics keeps in-process counters backed by atomics. It is used by
// the CLI and by tests that need to observe pool activity.
type AtomicMetrics struct {
	submitted atomic.Uint64
	rejected  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	mu      sync.Mutex
	workers map[string]int
}

// AtomicSnapshot is a copy of the counters of an AtomicMetrics.
type AtomicSnapshot struct {
	Submitted uint64
	Rejected  uint64
	Completed uint64
	Failed    uint64
	Workers   map[string]int
}

func (m *AtomicMetrics) TaskSubmitted(string) { m.submitted.Add(1) }
func (m *AtomicMetrics) TaskRejected(string)  { m.rejected.Add(1) }

func (m *AtomicMetrics) TaskFinished(_ string, _ time.Duration, err error) {
	if err != nil {
		m.failed.Add(1)
		return
	}
	m.completed.Add(1)
}

func (m *AtomicMetrics) WorkersChanged(pool string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.workers == nil {
		m.workers = make(map[string]int)
	}
	m.workers[pool] += delta
}

// Snapshot returns the current counter values.
func (m *AtomicMetrics) Snapshot() AtomicSnapshot {
	m.mu.Lock()
	workers := make(map[string]int, len(m.workers))
	for k, v := range m.workers {
		workers[k] = v
	}
	m.mu.Unlock()

	return AtomicSnapshot{
		Submitted: m.submitted.Load(),
		Rejected:  m.rejected.Load(),
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
		Workers:   workers,
	}
}

// PrometheusMetrics exports pool activity as Prometheus collectors labelled
// by pool name.
type PrometheusMetrics struct {
	submitted *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	workers   *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	labels := []string{"pool"}
	m := &PrometheusMetrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks offered to the pool",
		}, labels),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_rejected_total",
			Help:      "Total number of tasks that overflowed the admission queue",
		}, labels),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks that ran successfully",
		}, labels),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_failed_total",
			Help:      "Total number of tasks that returned an error or panicked",
		}, labels),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers",
			Help:      "Current number of live workers",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_duration_seconds",
			Help:      "Task execution time",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}

	for _, c := range []prometheus.Collector{m.submitted, m.rejected, m.completed, m.failed, m.workers, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering pool metrics")
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) TaskSubmitted(pool string) {
	m.submitted.WithLabelValues(pool).Inc()
}

func (m *PrometheusMetrics) TaskRejected(pool string) {
	m.rejected.WithLabelValues(pool).Inc()
}

func (m *PrometheusMetrics) TaskFinished(pool string, elapsed time.Duration, err error) {
	if err != nil {
		m.failed.WithLabelValues(pool).Inc()
	} else {
		m.completed.WithLabelValues(pool).Inc()
	}
	m.latency.WithLabelValues(pool).Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) WorkersChanged(pool string, delta int) {
	m.workers.WithLabelValues(pool).Add(float64(delta))
}
