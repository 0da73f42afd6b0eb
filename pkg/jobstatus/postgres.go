package jobstatus

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/seoflow/pkg/pg"
	"github.com/dmitrymomot/seoflow/pkg/queue"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore keeps records in the job_status table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates or upgrades the job_status table.
func (p *PostgresStore) Migrate(ctx context.Context, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, p.pool, migrations, "migrations", cfg, log)
}

const upsertStatus = `
INSERT INTO job_status (job_id, type, project_id, state, durable, retries, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id) DO UPDATE SET
	state      = EXCLUDED.state,
	durable    = EXCLUDED.durable,
	retries    = EXCLUDED.retries,
	error      = EXCLUDED.error,
	updated_at = EXCLUDED.updated_at`

const insertStatus = `
INSERT INTO job_status (job_id, type, project_id, state, durable, retries, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id) DO NOTHING`

const selectStatus = `
SELECT job_id, type, project_id, state, durable, retries, error, created_at, updated_at
FROM job_status WHERE job_id = $1`

func (p *PostgresStore) Put(ctx context.Context, s Status) error {
	if s.JobID == "" {
		return ErrInvalidID
	}
	_, err := p.pool.Exec(ctx, upsertStatus,
		s.JobID, string(s.Type), s.ProjectID, string(s.State), s.Durable, s.Retries, s.Error, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to store job status %s: %w", s.JobID, err)
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, s Status) (bool, error) {
	if s.JobID == "" {
		return false, ErrInvalidID
	}
	tag, err := p.pool.Exec(ctx, insertStatus,
		s.JobID, string(s.Type), s.ProjectID, string(s.State), s.Durable, s.Retries, s.Error, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create job status %s: %w", s.JobID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Status, error) {
	var (
		s       Status
		jobType string
		state   string
	)
	err := p.pool.QueryRow(ctx, selectStatus, id).Scan(
		&s.JobID, &jobType, &s.ProjectID, &state, &s.Durable, &s.Retries, &s.Error, &s.CreatedAt, &s.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return Status{}, ErrNotFound
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to load job status %s: %w", id, err)
	}
	s.Type = queue.JobType(jobType)
	s.State = State(state)
	return s, nil
}
