package jobapi

import "errors"

var (
	ErrNilPublisher    = errors.New("jobapi: publisher is required")
	ErrNilStore        = errors.New("jobapi: status store is required")
	ErrInvalidBody     = errors.New("request body must be a JSON job")
	ErrUnknownJobType  = errors.New("unknown job type")
	ErrPayloadRequired = errors.New("payload is required")
)
