package queue

import "log/slog"

// ConsumerOption is a functional option for configuring a Consumer
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	prefetch int
	tag      string
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// WithPrefetch overrides the configured prefetch; values below 1 are raised to 1
func WithPrefetch(n int) ConsumerOption {
	return func(o *consumerOptions) {
		o.prefetch = max(1, n)
	}
}

// WithConsumerTag sets the broker-visible consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(o *consumerOptions) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithConsumerLogger sets the logger for the consumer
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(o *consumerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConsumerMetrics reports ack, dead-letter and malformed outcomes
func WithConsumerMetrics(m MetricsRecorder) ConsumerOption {
	return func(o *consumerOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}
