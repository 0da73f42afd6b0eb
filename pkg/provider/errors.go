package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrProviderStatus = errors.New("provider returned an error status")
	ErrCircuitOpen    = errors.New("provider circuit breaker is open")
	ErrDecodeResponse = errors.New("failed to decode provider response")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: status %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Is(target error) bool {
	return target == ErrProviderStatus
}

// Temporary reports whether the status is worth retrying: 408, 425, 429 and 5xx.
func (e *StatusError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

func newStatusError(provider string, code int, body []byte) *StatusError {
	// One line, at most 200 bytes, so provider error pages stay readable in logs.
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return &StatusError{Provider: provider, StatusCode: code, Body: s}
}
