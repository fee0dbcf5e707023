package algorithms

import (
	"sync"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	for attempt := range 5 {
		if got := b.Next(attempt); got != DefaultPark {
			t.Errorf("Next(%d) = %v, want %v", attempt, got, DefaultPark)
		}
	}
}

func TestNew_MaxBelowInitial(t *testing.T) {
	b := New(Config{Kind: KindExponential, Initial: time.Second, Max: time.Millisecond})
	if got := b.Next(3); got != time.Second {
		t.Errorf("Next(3) = %v, want max raised to initial (%v)", got, time.Second)
	}
}

func TestExponentialBackoff_Next(t *testing.T) {
	tests := []struct {
		name    string
		initial time.Duration
		max     time.Duration
		attempt int
		want    time.Duration
	}{
		{"first attempt", time.Millisecond, time.Second, 0, time.Millisecond},
		{"second attempt doubles", time.Millisecond, time.Second, 1, 2 * time.Millisecond},
		{"fifth attempt", time.Millisecond, time.Second, 4, 16 * time.Millisecond},
		{"capped at max", time.Millisecond, 10 * time.Millisecond, 6, 10 * time.Millisecond},
		{"negative attempt", time.Millisecond, time.Second, -1, 0},
		{"overflow guard", time.Millisecond, time.Second, 200, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(Config{Kind: KindExponential, Initial: tt.initial, Max: tt.max})
			if got := b.Next(tt.attempt); got != tt.want {
				t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestJitteredBackoff_Bounds(t *testing.T) {
	initial := time.Millisecond
	maxDelay := 50 * time.Millisecond
	b := New(Config{Kind: KindJittered, Initial: initial, Max: maxDelay})

	for attempt := range 10 {
		upper := min(calcExponentialDelay(attempt, initial, maxDelay), maxDelay)
		for range 20 {
			got := b.Next(attempt)
			if got < initial || got > upper {
				t.Fatalf("Next(%d) = %v, want between %v and %v", attempt, got, initial, upper)
			}
		}
	}
}

func TestDecorrelatedJitterBackoff_Next(t *testing.T) {
	tests := []struct {
		name    string
		initial time.Duration
		max     time.Duration
		attempt int
		wantMin time.Duration
		wantMax time.Duration
	}{
		{"first attempt returns initial delay", 100 * time.Millisecond, 10 * time.Second, 0, 100 * time.Millisecond, 100 * time.Millisecond},
		{"second attempt between initial and 3x", 100 * time.Millisecond, 10 * time.Second, 1, 100 * time.Millisecond, 300 * time.Millisecond},
		{"respects max delay", time.Second, 2 * time.Second, 10, time.Second, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newDecorrelatedJitterBackoff(tt.initial, tt.max)
			var delay time.Duration
			for i := 0; i <= tt.attempt; i++ {
				delay = b.Next(i)
			}
			if delay < tt.wantMin || delay > tt.wantMax {
				t.Errorf("Next() = %v, want between %v and %v", delay, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestDecorrelatedJitterBackoff_InstancesAreIndependent(t *testing.T) {
	cfg := Config{Kind: KindDecorrelated, Initial: time.Millisecond, Max: time.Second}
	a := New(cfg).(*decorrelatedJitterBackoff)
	b := New(cfg).(*decorrelatedJitterBackoff)

	for i := range 5 {
		a.Next(i)
	}
	a.mu.Lock()
	before := a.prevDelay
	a.mu.Unlock()

	b.Next(0)

	a.mu.Lock()
	after := a.prevDelay
	a.mu.Unlock()
	if after != before {
		t.Errorf("restarting one sequence changed another: prevDelay %v -> %v", before, after)
	}
}

func TestBackoff_ConcurrentUse(t *testing.T) {
	for _, kind := range []Kind{KindConstant, KindExponential, KindJittered, KindDecorrelated} {
		t.Run(kind.String(), func(t *testing.T) {
			b := New(Config{Kind: kind, Initial: time.Microsecond, Max: time.Millisecond})
			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for attempt := range 100 {
						if d := b.Next(attempt); d < 0 || d > time.Millisecond {
							t.Errorf("Next(%d) = %v out of range", attempt, d)
							return
						}
					}
				}()
			}
			wg.Wait()
		})
	}
}

func BenchmarkJitteredBackoff(b *testing.B) {
	bo := New(Config{Kind: KindJittered, Initial: time.Microsecond, Max: time.Millisecond})
	for i := 0; i < b.N; i++ {
		bo.Next(i % 10)
	}
}
