package jobstatus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/jobstatus"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := jobstatus.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "job_missing")
	assert.ErrorIs(t, err, jobstatus.ErrNotFound)

	assert.ErrorIs(t, store.Put(ctx, jobstatus.Status{}), jobstatus.ErrInvalidID)

	s := jobstatus.Status{JobID: "job_1", Type: queue.JobTypeCrawl, State: jobstatus.StateQueued}
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	s.State = jobstatus.StateRunning
	require.NoError(t, store.Put(ctx, s))
	got, _ = store.Get(ctx, "job_1")
	assert.Equal(t, jobstatus.StateRunning, got.State)
	assert.Equal(t, 1, store.Len())
}

func TestAccepted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := queue.JobMessage{Type: queue.JobTypePlan, Payload: map[string]any{"projectId": "proj_9"}, Retries: -1}

	durable := jobstatus.Accepted(queue.PublishResult{ID: "job_a", Durable: true}, msg, now)
	assert.Equal(t, jobstatus.StateQueued, durable.State)
	assert.True(t, durable.Durable)
	assert.Equal(t, "proj_9", durable.ProjectID)
	assert.Zero(t, durable.Retries)
	assert.Equal(t, now, durable.CreatedAt)

	local := jobstatus.Accepted(queue.PublishResult{ID: "job_local_x"}, msg, now)
	assert.Equal(t, jobstatus.StateAccepted, local.State)
	assert.False(t, local.Durable)
}

func TestMemoryStore_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := jobstatus.NewMemoryStore()

	_, err := store.Create(ctx, jobstatus.Status{})
	assert.ErrorIs(t, err, jobstatus.ErrInvalidID)

	require.NoError(t, store.Put(ctx, jobstatus.Status{JobID: "job_1", State: jobstatus.StateSucceeded}))

	created, err := store.Create(ctx, jobstatus.Status{JobID: "job_1", State: jobstatus.StateQueued})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, "job_1")
	require.NoError(t, err)
	assert.Equal(t, jobstatus.StateSucceeded, got.State)

	created, err = store.Create(ctx, jobstatus.Status{JobID: "job_2", State: jobstatus.StateQueued})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestState_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, jobstatus.StateSucceeded.Terminal())
	assert.True(t, jobstatus.StateFailed.Terminal())
	assert.False(t, jobstatus.StateRunning.Terminal())
	assert.False(t, jobstatus.StateQueued.Terminal())
}

// recordingStore remembers every state it was asked to store.
type recordingStore struct {
	*jobstatus.MemoryStore
	mu     sync.Mutex
	states []jobstatus.State
	fail   error
}

func (r *recordingStore) Put(ctx context.Context, s jobstatus.Status) error {
	r.mu.Lock()
	r.states = append(r.states, s.State)
	r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	return r.MemoryStore.Put(ctx, s)
}

func TestTracker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := queue.JobEnvelope{ID: "job_7", Type: queue.JobTypeGenerate, Payload: map[string]any{"projectId": "p"}, Retries: 1}

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		store := &recordingStore{MemoryStore: jobstatus.NewMemoryStore()}
		created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.MemoryStore.Put(ctx, jobstatus.Status{JobID: "job_7", State: jobstatus.StateQueued, CreatedAt: created, Durable: true}))

		tracker := jobstatus.NewTracker(store, nil)
		var during jobstatus.Status
		h := tracker.Track(func(ctx context.Context, env queue.JobEnvelope) error {
			during, _ = store.Get(ctx, env.ID)
			return nil
		})

		require.NoError(t, h(ctx, env))
		assert.Equal(t, jobstatus.StateRunning, during.State)

		final, err := store.Get(ctx, "job_7")
		require.NoError(t, err)
		assert.Equal(t, jobstatus.StateSucceeded, final.State)
		assert.Equal(t, created, final.CreatedAt)
		assert.Equal(t, 1, final.Retries)
		assert.Equal(t, []jobstatus.State{jobstatus.StateRunning, jobstatus.StateSucceeded}, store.states)
	})

	t.Run("failure keeps handler error", func(t *testing.T) {
		t.Parallel()

		store := jobstatus.NewMemoryStore()
		boom := errors.New("openai: 400 content policy")
		h := jobstatus.NewTracker(store, nil).Track(func(ctx context.Context, env queue.JobEnvelope) error {
			return boom
		})

		assert.Same(t, boom, h(ctx, env))

		final, err := store.Get(ctx, "job_7")
		require.NoError(t, err)
		assert.Equal(t, jobstatus.StateFailed, final.State)
		assert.Equal(t, "openai: 400 content policy", final.Error)
		assert.Equal(t, "p", final.ProjectID)
	})

	t.Run("store outage does not fail the job", func(t *testing.T) {
		t.Parallel()

		store := &recordingStore{MemoryStore: jobstatus.NewMemoryStore(), fail: errors.New("redis down")}
		h := jobstatus.NewTracker(store, nil).Track(func(ctx context.Context, env queue.JobEnvelope) error {
			return nil
		})

		assert.NoError(t, h(ctx, env))
		assert.Len(t, store.states, 2)
	})
}

func TestOpen_Memory(t *testing.T) {
	t.Parallel()

	backend, err := jobstatus.Open(context.Background(), jobstatus.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", backend.Name)
	assert.Nil(t, backend.Ping)
	assert.IsType(t, &jobstatus.MemoryStore{}, backend.Store)
	assert.NoError(t, backend.Close())
}
