// Package jobstatus records what happened to a job after its id was handed
// back to the client. Route handlers write the accepted state, worker
// handlers wrapped with Track write running, succeeded and failed.
//
// Three backends implement Store: MemoryStore for tests and single-process
// development, RedisStore for short-lived status with a TTL, and
// PostgresStore for durable history.
package jobstatus

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/queue"
)

var (
	ErrNotFound  = errors.New("job status not found")
	ErrInvalidID = errors.New("job id is required")
)

// State is a job's lifecycle state.
type State string

const (
	// StateQueued means the job reached the broker.
	StateQueued State = "queued"
	// StateAccepted means the job was accepted with a fallback id and is
	// not on any queue.
	StateAccepted  State = "accepted"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is the stored record for one job id.
type Status struct {
	JobID     string        `json:"jobId"`
	Type      queue.JobType `json:"type"`
	ProjectID string        `json:"projectId,omitempty"`
	State     State         `json:"state"`
	Durable   bool          `json:"durable"`
	Retries   int           `json:"retries"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Store persists Status records keyed by job id.
type Store interface {
	// Put inserts or replaces the record for s.JobID.
	Put(ctx context.Context, s Status) error
	// Create inserts s only when no record exists for s.JobID and reports
	// whether it did. An existing record is left untouched.
	Create(ctx context.Context, s Status) (bool, error)
	// Get returns ErrNotFound when no record exists.
	Get(ctx context.Context, id string) (Status, error)
}

// Accepted builds the initial record for a publish result.
func Accepted(res queue.PublishResult, msg queue.JobMessage, now time.Time) Status {
	state := StateQueued
	if !res.Durable {
		state = StateAccepted
	}
	return Status{
		JobID:     res.ID,
		Type:      msg.Type,
		ProjectID: queue.JobEnvelope{Payload: msg.Payload}.ProjectID(),
		State:     state,
		Durable:   res.Durable,
		Retries:   max(0, msg.Retries),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
