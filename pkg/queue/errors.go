package queue

import "errors"

var (
	// ErrClientNil is returned when a nil Client is passed to a constructor
	ErrClientNil = errors.New("queue client cannot be nil")

	// ErrConnection wraps every failure to dial the broker or open a channel
	ErrConnection = errors.New("broker connection failed")

	// ErrNotConfigured is returned when no broker URL is set
	ErrNotConfigured = errors.New("broker URL is not configured")

	// ErrQueueDisabled is returned when the queue is switched off by configuration
	ErrQueueDisabled = errors.New("queue is disabled")

	// ErrClientClosed is returned when the Client was closed explicitly
	ErrClientClosed = errors.New("queue client is closed")

	// ErrDeclareTopology is returned when exchanges or queues cannot be declared
	ErrDeclareTopology = errors.New("failed to declare queue topology")

	// ErrPublish is returned when the broker refuses a publish
	ErrPublish = errors.New("failed to publish message")

	// ErrPublishPanic is recorded when the broker client panics during publish
	ErrPublishPanic = errors.New("panic during publish")

	// ErrNilHandler is returned when Consume is called without a handler
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrDeliveriesClosed is returned when the broker closes the delivery stream
	ErrDeliveriesClosed = errors.New("broker closed the delivery channel")

	// ErrMalformedEnvelope is returned when a delivery body is not a valid envelope
	ErrMalformedEnvelope = errors.New("malformed job envelope")

	// ErrHandlerPanic is returned when a handler panics
	ErrHandlerPanic = errors.New("panic in job handler")

	// ErrUnknownJobType is returned by Mux when no handler is registered for a type
	ErrUnknownJobType = errors.New("no handler registered for job type")

	// ErrConsumerRunning is returned when Consume is called twice on the same Consumer
	ErrConsumerRunning = errors.New("consumer already running")
)
