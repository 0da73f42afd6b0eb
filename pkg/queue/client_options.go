package queue

import "log/slog"

// ClientOption is a functional option for configuring a Client
type ClientOption func(*clientOptions)

type clientOptions struct {
	dial   Dialer
	logger *slog.Logger
}

// WithDialer replaces the AMQP dialer, e.g. with MemoryBroker.Dial in tests
func WithDialer(d Dialer) ClientOption {
	return func(o *clientOptions) {
		if d != nil {
			o.dial = d
		}
	}
}

// WithClientLogger sets the logger for the client
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
