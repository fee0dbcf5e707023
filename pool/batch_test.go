package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utkarsh5026/txpools/config"
)

type recordingScope struct {
	mu       sync.Mutex
	marked   int
	closed   int
	closeErr error
}

func (s *recordingScope) MarkSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked++
}

func (s *recordingScope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

type scopeRecorder struct {
	mu      sync.Mutex
	scopes  []*recordingScope
	openErr error
	close   error
}

func (r *scopeRecorder) open(context.Context) (Scope, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	s := &recordingScope{closeErr: r.close}
	r.mu.Lock()
	r.scopes = append(r.scopes, s)
	r.mu.Unlock()
	return s, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(config.Default(), WithParallelism(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown(5 * time.Second) })
	return r
}

func TestSubmitBatch_AllItemsInOrder(t *testing.T) {
	r := newTestRegistry(t)
	rec := &scopeRecorder{}

	var seen []int
	f, err := SubmitBatch(r, []int{1, 2, 3, 4, 5}, func(_ context.Context, item int) error {
		seen = append(seen, item)
		return nil
	}, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	require.Len(t, rec.scopes, 1)
	assert.Equal(t, 1, rec.scopes[0].marked)
	assert.Equal(t, 1, rec.scopes[0].closed)
}

func TestSubmitBatch_FailureStopsBatch(t *testing.T) {
	r := newTestRegistry(t)
	rec := &scopeRecorder{}

	var seen []int
	f, err := SubmitBatch(r, []int{0, 1, 2, 3, 4}, func(_ context.Context, item int) error {
		seen = append(seen, item)
		if item == 2 {
			return errors.New("boom")
		}
		return nil
	}, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.EqualError(t, ee.Cause, "boom")

	assert.Equal(t, []int{0, 1, 2}, seen)
	require.Len(t, rec.scopes, 1)
	assert.Zero(t, rec.scopes[0].marked)
	assert.Equal(t, 1, rec.scopes[0].closed)
}

func TestSubmitBatch_EmptyBatchCommits(t *testing.T) {
	r := newTestRegistry(t)
	rec := &scopeRecorder{}

	f, err := SubmitBatch(r, nil, func(context.Context, string) error {
		t.Fatal("action must not run")
		return nil
	}, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	require.NoError(t, err)
	require.Len(t, rec.scopes, 1)
	assert.Equal(t, 1, rec.scopes[0].marked)
	assert.Equal(t, 1, rec.scopes[0].closed)
}

func TestRunBatch_ScopeOpenFailure(t *testing.T) {
	p := NewSerialPool()
	defer p.Shutdown(time.Second)

	rec := &scopeRecorder{openErr: errors.New("no session")}
	ran := false
	f, err := RunBatch(p, []int{1}, func(context.Context, int) error {
		ran = true
		return nil
	}, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "no session")
	assert.False(t, ran)
}

func TestRunBatch_CloseFailureSurfaces(t *testing.T) {
	p := NewSerialPool()
	defer p.Shutdown(time.Second)

	rec := &scopeRecorder{close: errors.New("commit conflict")}
	f, err := RunBatch(p, []int{1, 2}, func(context.Context, int) error { return nil }, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit conflict")
	assert.Equal(t, 1, rec.scopes[0].marked)
	assert.Equal(t, 1, rec.scopes[0].closed)
}

func TestRunBatch_PanickingItem(t *testing.T) {
	p := NewSerialPool()
	defer p.Shutdown(time.Second)

	rec := &scopeRecorder{}
	f, err := RunBatch(p, []int{1, 2}, func(_ context.Context, item int) error {
		if item == 2 {
			panic("bad item")
		}
		return nil
	}, rec.open)
	require.NoError(t, err)

	_, err = Await(f)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, rec.scopes[0].marked)
	assert.Equal(t, 1, rec.scopes[0].closed)
}

func TestSubmitBatches_Partitions(t *testing.T) {
	r := newTestRegistry(t)
	rec := &scopeRecorder{}

	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	var (
		mu   sync.Mutex
		seen = map[int]int{}
	)
	futures, err := SubmitBatches(r, items, 3, func(_ context.Context, item int) error {
		mu.Lock()
		seen[item]++
		mu.Unlock()
		return nil
	}, rec.open)
	require.NoError(t, err)
	require.Len(t, futures, 4)

	for _, f := range futures {
		_, err := Await(f)
		require.NoError(t, err)
	}

	assert.Len(t, seen, 10)
	for item, n := range seen {
		assert.Equal(t, 1, n, "item %d", item)
	}
	assert.Len(t, rec.scopes, 4)

	_, err = SubmitBatches(r, items, 0, func(context.Context, int) error { return nil }, rec.open)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
