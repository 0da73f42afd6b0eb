package ratelimiter

import "time"

// Result is the outcome of one Allow call.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	now       time.Time
}

// Allowed reports whether the tokens were granted.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait before the bucket refills, or 0 when
// the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	now := r.now
	if now.IsZero() {
		now = time.Now()
	}
	return max(0, r.ResetAt.Sub(now))
}

// Config is the token bucket shape. Capacity 0 disables limiting where the
// caller checks Enabled.
type Config struct {
	Capacity       int           `env:"SUBMIT_RATE_CAPACITY" envDefault:"0"`
	RefillRate     int           `env:"SUBMIT_RATE_REFILL" envDefault:"1"`
	RefillInterval time.Duration `env:"SUBMIT_RATE_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether a limiter should be built from c.
func (c Config) Enabled() bool {
	return c.Capacity > 0
}
