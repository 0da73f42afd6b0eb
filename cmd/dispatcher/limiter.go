package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/seoflow/pkg/jobapi"
	"github.com/dmitrymomot/seoflow/pkg/ratelimiter"
	"github.com/dmitrymomot/seoflow/pkg/redis"
)

// submitLimiter builds the POST /jobs limiter. Buckets live in Redis when
// REDIS_URL is set, so every dispatcher replica shares them, and in memory
// otherwise. A nil limiter means limiting is off.
func submitLimiter(ctx context.Context, cfg ratelimiter.Config, rc redis.Config, log *slog.Logger) (jobapi.Limiter, func(), error) {
	if !cfg.Enabled() {
		return nil, func() {}, nil
	}

	if rc.URL != "" {
		client, err := redis.Connect(ctx, rc)
		if err != nil {
			return nil, nil, err
		}
		b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, ""), cfg)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.InfoContext(ctx, "submission limit enabled", slog.String("backend", "redis"), slog.Int("capacity", cfg.Capacity))
		return b, func() { _ = client.Close() }, nil
	}

	store := ratelimiter.NewMemoryStore()
	b, err := ratelimiter.NewBucket(store, cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	log.InfoContext(ctx, "submission limit enabled", slog.String("backend", "memory"), slog.Int("capacity", cfg.Capacity))
	return b, store.Close, nil
}
