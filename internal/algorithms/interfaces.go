package algorithms

import "time"

// Backoff yields the pause taken before each re-admission attempt of a task
// that a saturated pool could not accept.
//
// A Backoff follows one submitter's sequence of attempts. Stateful
// strategies remember the previous pause, so callers create a fresh one per
// blocked submission instead of sharing it between goroutines.
type Backoff interface {
	// Next returns the pause before re-admission attempt number attempt.
	// attempt is 0-indexed (0 = first re-admission after the initial rejection).
	// Attempt 0 restarts the sequence.
	Next(attempt int) time.Duration
}
