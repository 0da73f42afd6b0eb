package queue

import "log/slog"

// RedriverOption is a functional option for configuring a Redriver
type RedriverOption func(*redriverOptions)

type redriverOptions struct {
	maxRetries int
	logger     *slog.Logger
}

// WithRedriveMaxRetries sets the retries ceiling after which jobs stay parked
func WithRedriveMaxRetries(n int) RedriverOption {
	return func(o *redriverOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRedriverLogger sets the logger for the redriver
func WithRedriverLogger(logger *slog.Logger) RedriverOption {
	return func(o *redriverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
