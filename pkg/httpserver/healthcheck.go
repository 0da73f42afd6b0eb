package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/logger"
)

// Check is a named readiness dependency such as the broker or the status store.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Liveness answers 200 while the process is serving requests.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, healthBody{Status: "alive"})
	}
}

// Readiness runs every check with timeout and answers 503 when any fails.
// Checks with a nil Fn are skipped.
func Readiness(log *slog.Logger, timeout time.Duration, checks ...Check) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	checks = slices.DeleteFunc(slices.Clone(checks), func(c Check) bool { return c.Fn == nil })

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		body := healthBody{Status: "ready", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.WarnContext(ctx, "readiness check failed", logger.Component(c.Name), logger.Error(err))
				body.Checks[c.Name] = "fail"
				body.Status = "not_ready"
				code = http.StatusServiceUnavailable
				continue
			}
			body.Checks[c.Name] = "ok"
		}

		writeHealth(w, code, body)
	}
}

func writeHealth(w http.ResponseWriter, code int, body healthBody) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
