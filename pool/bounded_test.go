package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saturate fills a pool built with a single worker and no queue: the
// returned release func lets the occupying task finish.
func saturate(t *testing.T, p *BoundedPool) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Execute(func(context.Context) error {
		close(started)
		<-gate
		return nil
	}))
	<-started

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func newSaturablePool(t *testing.T, policy RejectionPolicy) *BoundedPool {
	t.Helper()
	p, err := NewBoundedPool(
		WithWorkerRange(1, 1),
		WithQueueCapacity(0),
		WithRejectionPolicy(policy),
	)
	require.NoError(t, err)
	return p
}

func TestNewBoundedPool_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero min", []Option{WithWorkerRange(0, 2)}},
		{"max below min", []Option{WithWorkerRange(3, 2)}},
		{"negative queue", []Option{WithWorkerRange(1, 2), WithQueueCapacity(-1)}},
		{"no range", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewBoundedPool(tt.opts...)
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, p)
		})
	}
}

func TestDefaultBoundedSizing(t *testing.T) {
	s := DefaultBoundedSizing(4)
	assert.Equal(t, 8, s.MaxWorkers)
	assert.Equal(t, 4, s.MinWorkers)
	assert.Equal(t, 200, s.QueueCapacity)
	assert.Equal(t, DefaultIdleTimeout, s.IdleTimeout)

	s = DefaultBoundedSizing(0)
	assert.Equal(t, 2, s.MaxWorkers)
	assert.Equal(t, 1, s.MinWorkers)

	p, err := NewBoundedPool(DefaultBoundedSizing(1).Options()...)
	require.NoError(t, err)
	defer p.Shutdown(time.Second)
	assert.Equal(t, 2, p.Stats().MaxWorkers)
}

func TestBoundedPool_CallerBlocksLosesNothing(t *testing.T) {
	p, err := NewBoundedPool(WithWorkerRange(2, 4), WithQueueCapacity(10))
	require.NoError(t, err)

	var counter atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				err := p.Execute(func(context.Context) error {
					time.Sleep(100 * time.Microsecond)
					counter.Add(1)
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, p.Shutdown(5*time.Second))
	assert.EqualValues(t, 100, counter.Load())
	assert.EqualValues(t, 100, p.Stats().Completed)
}

func TestBoundedPool_GrowsToMaxThenRetiresIdle(t *testing.T) {
	p, err := NewBoundedPool(
		WithWorkerRange(1, 3),
		WithQueueCapacity(0),
		WithIdleTimeout(20*time.Millisecond),
		WithRejectionPolicy(AbortPolicy),
	)
	require.NoError(t, err)
	defer p.Shutdown(time.Second)

	gate := make(chan struct{})
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Execute(func(context.Context) error {
			<-gate
			return nil
		}))
	}
	assert.Equal(t, 3, p.Stats().Workers)

	err = p.Execute(func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrRejected)

	close(gate)
	require.Eventually(t, func() bool {
		return p.Stats().Workers == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBoundedPool_QueuesAtCoreSize(t *testing.T) {
	p, err := NewBoundedPool(WithWorkerRange(1, 2), WithQueueCapacity(2), WithRejectionPolicy(AbortPolicy))
	require.NoError(t, err)

	release := saturate(t, p)
	require.NoError(t, p.Execute(func(context.Context) error { return nil }))
	require.NoError(t, p.Execute(func(context.Context) error { return nil }))

	stats := p.Stats()
	assert.Equal(t, 1, stats.Workers)
	assert.Equal(t, 2, stats.Queued)

	release()
	require.NoError(t, p.Shutdown(time.Second))
	assert.EqualValues(t, 3, p.Stats().Completed)
}

func TestCallerBlocks_ReturnsExecutionFailure(t *testing.T) {
	p := newSaturablePool(t, CallerBlocks())
	release := saturate(t, p)

	result := make(chan error, 1)
	go func() {
		result <- p.Execute(func(context.Context) error { return errors.New("boom") })
	}()

	require.Eventually(t, func() bool { return p.Stats().Blocked == 1 }, time.Second, time.Millisecond)
	release()

	err := <-result
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.EqualError(t, ee.Cause, "boom")
	require.NoError(t, p.Shutdown(time.Second))
}

func TestCallerBlocks_BlocksUntilResubmissionCompletes(t *testing.T) {
	p := newSaturablePool(t, CallerBlocks())
	release := saturate(t, p)

	var ran atomic.Bool
	returned := make(chan struct{})
	go func() {
		assert.NoError(t, p.Execute(func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			ran.Store(true)
			return nil
		}))
		close(returned)
	}()

	require.Eventually(t, func() bool { return p.Stats().Blocked == 1 }, time.Second, time.Millisecond)
	release()
	<-returned
	assert.True(t, ran.Load(), "submitter returned before its task ran")
	require.NoError(t, p.Shutdown(time.Second))
}

func TestCallerBlocks_DiscardsAfterShutdown(t *testing.T) {
	p := newSaturablePool(t, CallerBlocks())
	release := saturate(t, p)
	defer release()

	type outcome struct {
		f   *Future[int]
		err error
	}
	result := make(chan outcome, 1)
	go func() {
		f, err := Submit(p, func(context.Context) (int, error) { return 1, nil })
		result <- outcome{f, err}
	}()
	require.Eventually(t, func() bool { return p.Stats().Blocked == 1 }, time.Second, time.Millisecond)

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- p.Shutdown(0) }()

	out := <-result
	require.NoError(t, out.err)
	_, err := Await(out.f)
	require.ErrorIs(t, err, ErrDiscarded)

	release()
	require.NoError(t, <-shutdownDone)
	assert.EqualValues(t, 1, p.Stats().Discarded)

	assert.NoError(t, p.Execute(func(context.Context) error { return nil }))
}

func TestCallerBlocks_MaxAttemptsAndSleeper(t *testing.T) {
	var pauses []time.Duration
	sleeper := func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	p := newSaturablePool(t, CallerBlocks(
		WithSleeper(sleeper),
		WithMaxAttempts(3),
		WithBackoff(BackoffExponential, time.Millisecond, 3*time.Millisecond),
	))
	release := saturate(t, p)
	defer func() {
		release()
		_ = p.Shutdown(time.Second)
	}()

	f, err := Submit(p, func(context.Context) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrAdmissionExhausted)

	_, awaitErr := Await(f)
	require.ErrorIs(t, awaitErr, ErrAdmissionExhausted)

	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, pauses)
}

func TestAbortPolicy(t *testing.T) {
	p := newSaturablePool(t, AbortPolicy)
	release := saturate(t, p)

	f, err := Submit(p, func(context.Context) (int, error) { return 0, nil })
	require.ErrorIs(t, err, ErrRejected)
	_, err = Await(f)
	require.ErrorIs(t, err, ErrRejected)

	release()
	require.NoError(t, p.Shutdown(time.Second))
	require.ErrorIs(t, p.Execute(func(context.Context) error { return nil }), ErrPoolShutdown)
}

func TestDiscardPolicy(t *testing.T) {
	p := newSaturablePool(t, DiscardPolicy)
	release := saturate(t, p)

	f, err := Submit(p, func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)
	_, err = Await(f)
	require.ErrorIs(t, err, ErrDiscarded)

	release()
	require.NoError(t, p.Shutdown(time.Second))
	assert.EqualValues(t, 1, p.Stats().Discarded)
	assert.EqualValues(t, 1, p.Stats().Rejected)
}

func TestCallerRunsPolicy(t *testing.T) {
	p := newSaturablePool(t, CallerRunsPolicy)
	release := saturate(t, p)

	var ran atomic.Bool
	require.NoError(t, p.Execute(func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	assert.True(t, ran.Load())

	release()
	require.NoError(t, p.Shutdown(time.Second))
}

func TestBoundedPool_TryExecute(t *testing.T) {
	p := newSaturablePool(t, AbortPolicy)
	release := saturate(t, p)

	assert.False(t, p.TryExecute(func(context.Context) error { return nil }))
	release()
	require.NoError(t, p.Shutdown(time.Second))
	assert.False(t, p.TryExecute(func(context.Context) error { return nil }))
}

func TestBoundedPool_PanicsDoNotKillWorkers(t *testing.T) {
	p, err := NewBoundedPool(WithWorkerRange(1, 1), WithQueueCapacity(4))
	require.NoError(t, err)

	f, err := Submit(p, func(context.Context) (int, error) { panic("kaboom") })
	require.NoError(t, err)

	_, err = Await(f)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	g, err := Submit(p, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	v, err := Await(g)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	require.NoError(t, p.Shutdown(time.Second))
}

func TestBoundedPool_AdmissionRate(t *testing.T) {
	p, err := NewBoundedPool(
		WithWorkerRange(2, 2),
		WithQueueCapacity(16),
		WithAdmissionRate(100, 1),
	)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Execute(func(context.Context) error { return nil }))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	require.NoError(t, p.Shutdown(time.Second))
}

func TestBoundedPool_ShutdownTimeout(t *testing.T) {
	p := newSaturablePool(t, AbortPolicy)
	release := saturate(t, p)

	require.ErrorIs(t, p.Shutdown(10*time.Millisecond), ErrShutdownTimeout)
	assert.True(t, p.IsShutdown())

	release()
	require.NoError(t, p.Shutdown(time.Second))
}
