package jobstatus_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/jobstatus"
	"github.com/dmitrymomot/seoflow/pkg/pg"
	"github.com/dmitrymomot/seoflow/pkg/queue"
	"github.com/dmitrymomot/seoflow/pkg/redis"
)

// roundTrip exercises a backend the same way the API and Tracker do.
func roundTrip(t *testing.T, store jobstatus.Store) {
	t.Helper()
	ctx := context.Background()

	id := "job_it_" + uuid.NewString()[:8]
	created := time.Now().UTC().Truncate(time.Millisecond)

	_, err := store.Get(ctx, id)
	require.ErrorIs(t, err, jobstatus.ErrNotFound)

	inserted, err := store.Create(ctx, jobstatus.Status{
		JobID: id, Type: queue.JobTypeCrawl, ProjectID: "p1",
		State: jobstatus.StateQueued, Durable: true,
		CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	h := jobstatus.NewTracker(store, nil).Track(func(context.Context, queue.JobEnvelope) error { return nil })
	require.NoError(t, h(ctx, queue.JobEnvelope{ID: id, Type: queue.JobTypeCrawl, Retries: 1}))

	inserted, err = store.Create(ctx, jobstatus.Status{JobID: id, State: jobstatus.StateQueued, CreatedAt: created})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobstatus.StateSucceeded, got.State)
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, 1, got.Retries)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestRedisStore_Integration(t *testing.T) {
	t.Parallel()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := redis.Connect(context.Background(), redis.Config{URL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	roundTrip(t, jobstatus.NewRedisStore(client, time.Minute))
}

func TestPostgresStore_Integration(t *testing.T) {
	t.Parallel()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	cfg := pg.Config{URL: url, MaxConns: 2, RetryAttempts: 1, MigrationsTable: "seoflow_schema_migrations"}
	pool, err := pg.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := jobstatus.NewPostgresStore(pool)
	require.NoError(t, store.Migrate(context.Background(), cfg, nil))

	roundTrip(t, store)
}
