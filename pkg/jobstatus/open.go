package jobstatus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/pg"
	"github.com/dmitrymomot/seoflow/pkg/redis"
)

// Config selects and configures the backend. Redis wins when both URLs are
// set; with neither, records live in memory.
type Config struct {
	Redis       redis.Config
	Postgres    pg.Config
	RedisTTL    time.Duration `env:"JOB_STATUS_TTL" envDefault:"168h"`
	SkipMigrate bool          `env:"JOB_STATUS_SKIP_MIGRATE" envDefault:"false"`
}

// Backend is an opened Store together with what it needs at shutdown and
// for readiness probes.
type Backend struct {
	Store Store
	Name  string
	// Ping is nil for the memory backend.
	Ping   func(context.Context) error
	closer io.Closer
}

// Close releases the underlying connection, if any.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open connects to the configured backend.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}

	switch {
	case cfg.Redis.URL != "":
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("job status store: %w", err)
		}
		log.InfoContext(ctx, "job status store ready", slog.String("backend", "redis"))
		return &Backend{
			Store:  NewRedisStore(client, cfg.RedisTTL),
			Name:   "redis",
			Ping:   redis.Healthcheck(client),
			closer: client,
		}, nil

	case cfg.Postgres.URL != "":
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("job status store: %w", err)
		}
		store := NewPostgresStore(pool)
		if !cfg.SkipMigrate {
			if err := store.Migrate(ctx, cfg.Postgres, log); err != nil {
				pool.Close()
				return nil, fmt.Errorf("job status store: %w", err)
			}
		}
		log.InfoContext(ctx, "job status store ready", slog.String("backend", "postgres"))
		return &Backend{
			Store:  store,
			Name:   "postgres",
			Ping:   pg.Healthcheck(pool),
			closer: closerFunc(func() error { pool.Close(); return nil }),
		}, nil

	default:
		log.WarnContext(ctx, "job status kept in memory, it is lost on restart")
		return &Backend{Store: NewMemoryStore(), Name: "memory"}, nil
	}
}
