package jobapi

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/httpserver"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithReadinessChecks adds dependencies probed by /health/ready.
func WithReadinessChecks(checks ...httpserver.Check) Option {
	return func(a *API) { a.checks = append(a.checks, checks...) }
}

// WithReadinessTimeout bounds a single /health/ready probe.
func WithReadinessTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.readyTimeout = d
		}
	}
}

// WithRequestTimeout sets the per-request deadline for /jobs routes.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.requestTimeout = d
		}
	}
}

// WithMaxBodyBytes caps the POST /jobs body size.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// WithClock overrides the time source used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// WithSubmitLimiter limits POST /jobs per project. Nil disables limiting.
func WithSubmitLimiter(l Limiter) Option {
	return func(a *API) { a.limiter = l }
}
