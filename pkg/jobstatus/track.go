package jobstatus

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

// Tracker wraps queue handlers so every delivery updates the job's status.
type Tracker struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker writing to store.
func NewTracker(store Store, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: store, logger: log, now: time.Now}
}

// Track marks the job running, calls h and records the outcome. Store
// failures are logged and never change the handler's result, so a status
// backend outage cannot dead-letter healthy jobs.
func (t *Tracker) Track(h queue.Handler) queue.Handler {
	return func(ctx context.Context, env queue.JobEnvelope) error {
		status := t.begin(ctx, env)

		err := h(ctx, env)

		status.UpdatedAt = t.now()
		if err != nil {
			status.State = StateFailed
			status.Error = err.Error()
		} else {
			status.State = StateSucceeded
			status.Error = ""
		}
		t.put(ctx, status)

		return err
	}
}

func (t *Tracker) begin(ctx context.Context, env queue.JobEnvelope) Status {
	now := t.now()

	status, err := t.store.Get(ctx, env.ID)
	if err != nil {
		status = Status{
			JobID:     env.ID,
			Type:      env.Type,
			ProjectID: env.ProjectID(),
			Durable:   true,
			CreatedAt: now,
		}
	}
	status.State = StateRunning
	status.Retries = env.Retries
	status.Error = ""
	status.UpdatedAt = now

	t.put(ctx, status)
	return status
}

func (t *Tracker) put(ctx context.Context, s Status) {
	if err := t.store.Put(ctx, s); err != nil {
		t.logger.WarnContext(ctx, "failed to record job status",
			logger.JobID(s.JobID),
			slog.String("state", string(s.State)),
			logger.Error(err))
	}
}
