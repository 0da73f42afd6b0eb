package queue

import (
	"log/slog"
	"time"
)

// PublisherOption is a functional option for configuring a Publisher
type PublisherOption func(*publisherOptions)

type publisherOptions struct {
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// WithPublisherLogger sets the logger for the publisher
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(o *publisherOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisherMetrics reports durable and fallback publishes
func WithPublisherMetrics(m MetricsRecorder) PublisherOption {
	return func(o *publisherOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source used for ids and timestamps
func WithClock(now func() time.Time) PublisherOption {
	return func(o *publisherOptions) {
		if now != nil {
			o.now = now
		}
	}
}
