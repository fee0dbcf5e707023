package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg, "txpools")
	require.NoError(t, err)

	p, err := NewBoundedPool(WithName("io"), WithWorkerRange(1, 2), WithQueueCapacity(8), WithMetrics(m))
	require.NoError(t, err)

	require.NoError(t, p.Execute(func(context.Context) error { return nil }))
	require.NoError(t, p.Execute(func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, p.Shutdown(time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submitted.WithLabelValues("io")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed.WithLabelValues("io")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failed.WithLabelValues("io")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.workers.WithLabelValues("io")))

	_, err = NewPrometheusMetrics(reg, "txpools")
	require.Error(t, err, "registering the same collectors twice must fail")
}

func TestAtomicMetrics(t *testing.T) {
	m := &AtomicMetrics{}

	p := NewSerialPool(WithName("serial"), WithMetrics(m))
	require.NoError(t, p.Execute(func(context.Context) error { return nil }))
	require.NoError(t, p.Execute(func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, p.Shutdown(time.Second))

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Submitted)
	assert.EqualValues(t, 1, snap.Completed)
	assert.EqualValues(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Workers["serial"])
}
