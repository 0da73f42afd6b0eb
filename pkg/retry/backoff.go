package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next attempt. attempt is the
// number of the attempt that just failed, starting at 1.
// Implementations must be safe for concurrent use.
type Strategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt, caps it at
// MaxInterval and then applies a symmetric random jitter of ±JitterFactor,
// so delays at the cap still spread across [Max*(1-J), Max*(1+J)].
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

// NextInterval returns min(Initial * Multiplier^(attempt-1), Max) * (1 ± Jitter).
func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	initial := e.InitialInterval
	if initial <= 0 {
		initial = 200 * time.Millisecond
	}
	maxInterval := e.MaxInterval
	if maxInterval <= 0 {
		maxInterval = 10 * time.Second
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}

	interval := math.Min(float64(initial)*math.Pow(multiplier, float64(attempt-1)), float64(maxInterval))
	if e.JitterFactor > 0 {
		interval *= 1 + (rand.Float64()*2-1)*e.JitterFactor
	}
	return time.Duration(interval)
}

// ConstantBackoff waits the same Interval before every retry.
type ConstantBackoff struct {
	Interval time.Duration
}

func (c ConstantBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return c.Interval
}

// LinearBackoff waits Interval * attempt, capped at MaxInterval when set.
type LinearBackoff struct {
	Interval    time.Duration
	MaxInterval time.Duration
}

func (l LinearBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := l.Interval * time.Duration(attempt)
	if l.MaxInterval > 0 && d > l.MaxInterval {
		d = l.MaxInterval
	}
	return d
}

// DefaultBackoff is used when a Policy leaves Backoff nil: 200ms doubling
// up to 10s with 30% jitter.
func DefaultBackoff() Strategy {
	return ExponentialBackoff{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		JitterFactor:    0.3,
	}
}
