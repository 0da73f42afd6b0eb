package queue

import (
	"context"
	"fmt"
	"sync"
)

// Handler processes one delivered envelope. Returning an error dead-letters
// the message; returning nil acknowledges it. Because delivery is
// at-least-once, handlers must tolerate seeing the same job twice.
type Handler func(ctx context.Context, env JobEnvelope) error

// Mux routes envelopes to a handler registered for their job type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[JobType]Handler
}

// NewMux creates an empty Mux
func NewMux() *Mux {
	return &Mux{handlers: make(map[JobType]Handler)}
}

// Handle registers h for t, replacing any previous handler. Nil handlers are ignored.
func (m *Mux) Handle(t JobType, h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = h
}

// Serve dispatches env by type. Unknown types fail with ErrUnknownJobType so
// the consumer quarantines them instead of silently dropping the job.
func (m *Mux) Serve(ctx context.Context, env JobEnvelope) error {
	m.mu.RLock()
	h, ok := m.handlers[env.Type]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, env.Type)
	}
	return h(ctx, env)
}

// callHandler converts a handler panic into an error.
func callHandler(ctx context.Context, h Handler, env JobEnvelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, env)
}
