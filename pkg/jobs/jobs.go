// Package jobs holds the worker handlers. Each job type is forwarded to the
// provider that does the work; the provider client brings the gate, retry
// and circuit breaker, so a handler error here is already final and the
// consumer dead-letters the delivery.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/seoflow/pkg/provider"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

// HeaderJobID carries the job id so providers can drop redelivered duplicates.
const HeaderJobID = "X-Job-ID"

var ErrInvalidRoute = errors.New("jobs: invalid route")

// Route binds a job type to a provider endpoint.
type Route struct {
	Type     queue.JobType
	Provider *provider.Client
	Method   string
	Path     string
}

type forwardBody struct {
	JobID   string         `json:"jobId"`
	Type    queue.JobType  `json:"type"`
	Retries int            `json:"retries"`
	Payload map[string]any `json:"payload"`
}

// Forward returns a handler that sends the envelope to c. Any non-2xx
// answer that survives the provider's retries fails the job.
func Forward(c *provider.Client, method, path string) queue.Handler {
	if method == "" {
		method = http.MethodPost
	}
	return func(ctx context.Context, env queue.JobEnvelope) error {
		_, err := c.Do(ctx, provider.Request{
			Method: method,
			Path:   path,
			Header: http.Header{HeaderJobID: []string{env.ID}},
			Body: forwardBody{
				JobID:   env.ID,
				Type:    env.Type,
				Retries: env.Retries,
				Payload: env.Payload,
			},
		})
		if err != nil {
			return fmt.Errorf("%s job %s: %w", env.Type, env.ID, err)
		}
		return nil
	}
}

// Register mounts a Forward handler on mux for every route. wrap, when not
// nil, decorates each handler, e.g. with a status tracker.
func Register(mux *queue.Mux, wrap func(queue.Handler) queue.Handler, routes ...Route) error {
	for _, r := range routes {
		if !r.Type.Valid() || r.Provider == nil {
			return fmt.Errorf("%w: %q", ErrInvalidRoute, r.Type)
		}
		h := Forward(r.Provider, r.Method, r.Path)
		if wrap != nil {
			h = wrap(h)
		}
		mux.Handle(r.Type, h)
	}
	return nil
}
