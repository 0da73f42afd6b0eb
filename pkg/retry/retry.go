package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

// DefaultMaxAttempts applies when Policy.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Attempt int
	Delay   time.Duration
	Err     error
}

// Policy configures one retried call site.
type Policy struct {
	// Label names the call site in logs and metrics.
	Label string
	// RetryOn classifies errors. Nil means nothing is retried.
	RetryOn func(error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(Attempt)
	// MaxAttempts caps the total number of calls, including the first.
	MaxAttempts int
	Backoff     Strategy
	// AttemptTimeout bounds every single call when positive.
	AttemptTimeout time.Duration
	// Sleep waits between attempts. Tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, RetryOn rejects its error, or the attempt
// budget is exhausted. Failures return the error of the last attempt
// exactly as fn produced it. Cancelling ctx during a backoff sleep also
// returns that error rather than ctx.Err().
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), p Policy) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, err := call(ctx, fn, p.AttemptTimeout)
		if err == nil {
			return v, nil
		}
		if p.RetryOn == nil || !p.RetryOn(err) || attempt >= maxAttempts {
			return zero, err
		}

		delay := backoff.NextInterval(attempt)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Attempt: attempt, Delay: delay, Err: err})
		}
		if sleep(ctx, delay) != nil {
			return zero, err
		}
	}
}

// Exec is Do for calls that return only an error.
func Exec(ctx context.Context, fn func(ctx context.Context) error, p Policy) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, p)
	return err
}

func call[T any](ctx context.Context, fn func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LogRetries returns an OnRetry hook that logs each retry at warn level.
func LogRetries(log *slog.Logger, label string) func(Attempt) {
	if log == nil {
		log = slog.Default()
	}
	return func(a Attempt) {
		log.Warn("retrying call",
			logger.Label(label),
			logger.Attempt(a.Attempt),
			logger.Delay(a.Delay),
			logger.Error(a.Err))
	}
}

// Notify fans one Attempt out to several OnRetry hooks. Nil hooks are skipped.
func Notify(hooks ...func(Attempt)) func(Attempt) {
	return func(a Attempt) {
		for _, h := range hooks {
			if h != nil {
				h(a)
			}
		}
	}
}
