package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL is how long a status record lives in Redis.
const DefaultRedisTTL = 7 * 24 * time.Hour

// RedisStore keeps each record as a JSON string under prefix+id with a TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A non-positive ttl means DefaultRedisTTL.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, prefix: "seoflow:job:", ttl: ttl}
}

func (r *RedisStore) Put(ctx context.Context, s Status) error {
	if s.JobID == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+s.JobID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store job status %s: %w", s.JobID, err)
	}
	return nil
}

func (r *RedisStore) Create(ctx context.Context, s Status) (bool, error) {
	if s.JobID == "" {
		return false, ErrInvalidID
	}
	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("failed to encode job status: %w", err)
	}
	created, err := r.client.SetNX(ctx, r.prefix+s.JobID, data, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to create job status %s: %w", s.JobID, err)
	}
	return created, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (Status, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{}, ErrNotFound
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to load job status %s: %w", id, err)
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return Status{}, fmt.Errorf("failed to decode job status %s: %w", id, err)
	}
	return s, nil
}
