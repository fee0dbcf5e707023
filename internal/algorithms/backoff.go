package algorithms

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// maxShift prevents overflow in the exponential calculation.
const maxShift = 62

// constantBackoff pauses for the same interval on every attempt. With the
// default of 100ns it is a yield-and-retry hint rather than a real sleep.
type constantBackoff time.Duration

func (c constantBackoff) Next(int) time.Duration { return time.Duration(c) }

// exponentialBackoff doubles the pause on every attempt:
// Initial, 2×Initial, 4×Initial ... capped at Max.
type exponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newExponentialBackoff(initialDelay, maxDelay time.Duration) *exponentialBackoff {
	return &exponentialBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

func (eb *exponentialBackoff) Next(attempt int) time.Duration {
	return calcExponentialDelay(attempt, eb.initialDelay, eb.maxDelay)
}

func calcExponentialDelay(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}
	if attempt >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(attempt)) * initialDelay
	if delay > maxDelay || delay <= 0 {
		return maxDelay
	}
	return delay
}

// jitteredBackoff spreads concurrent submitters that hit a full queue at the
// same moment so they do not retry in lock step.
type jitteredBackoff struct {
	b *backoff.Backoff
}

func newJitteredBackoff(initialDelay, maxDelay time.Duration) *jitteredBackoff {
	return &jitteredBackoff{
		b: &backoff.Backoff{
			Min:    initialDelay,
			Max:    maxDelay,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Next uses ForAttempt, which reads no mutable state and is safe to share.
func (jb *jitteredBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	return jb.b.ForAttempt(float64(attempt))
}

// decorrelatedJitterBackoff implements AWS-style decorrelated jitter:
// sleep = min(max, random(initial, prev*3)).
type decorrelatedJitterBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	prevDelay    time.Duration
	rng          *rand.Rand
	mu           sync.Mutex
}

func newDecorrelatedJitterBackoff(initialDelay, maxDelay time.Duration) *decorrelatedJitterBackoff {
	return &decorrelatedJitterBackoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		prevDelay:    initialDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter only
	}
}

func (djb *decorrelatedJitterBackoff) Next(attempt int) time.Duration {
	djb.mu.Lock()
	defer djb.mu.Unlock()

	if attempt <= 0 {
		djb.prevDelay = djb.initialDelay
		return djb.initialDelay
	}

	upper := min(djb.prevDelay*3, djb.maxDelay)
	span := upper - djb.initialDelay
	if span <= 0 {
		djb.prevDelay = djb.initialDelay
		return djb.initialDelay
	}

	delay := djb.initialDelay + time.Duration(djb.rng.Int63n(int64(span)))
	djb.prevDelay = delay
	return delay
}
