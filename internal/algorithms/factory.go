package algorithms

import "time"

// Kind selects the backoff algorithm.
type Kind int

const (
	// KindConstant pauses for the same short interval every time (default).
	KindConstant Kind = iota
	// KindExponential doubles the pause on every attempt.
	KindExponential
	// KindJittered is exponential growth randomised between Initial and the
	// exponential value.
	KindJittered
	// KindDecorrelated uses AWS-style decorrelated jitter.
	KindDecorrelated
)

const (
	// DefaultPark is the park hint applied between re-admission attempts.
	DefaultPark = 100 * time.Nanosecond
	// DefaultMaxDelay caps growing strategies.
	DefaultMaxDelay = 10 * time.Millisecond
)

// Config describes a backoff strategy. Zero values are replaced with defaults.
type Config struct {
	Kind    Kind
	Initial time.Duration
	Max     time.Duration
}

func (c *Config) fillDefaults() {
	if c.Initial <= 0 {
		c.Initial = DefaultPark
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxDelay
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
}

// New creates the backoff strategy described by cfg.
func New(cfg Config) Backoff {
	cfg.fillDefaults()

	switch cfg.Kind {
	case KindExponential:
		return newExponentialBackoff(cfg.Initial, cfg.Max)

	case KindJittered:
		return newJitteredBackoff(cfg.Initial, cfg.Max)

	case KindDecorrelated:
		return newDecorrelatedJitterBackoff(cfg.Initial, cfg.Max)

	default:
		return constantBackoff(cfg.Initial)
	}
}

func (k Kind) String() string {
	switch k {
	case KindConstant:
		return "constant"
	case KindExponential:
		return "exponential"
	case KindJittered:
		return "jittered"
	case KindDecorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}
