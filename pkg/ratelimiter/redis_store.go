package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "seoflow:ratelimit:"

// consumeScript mirrors MemoryStore.ConsumeTokens inside Redis so replicas
// share one bucket per key. State is a hash {tokens, last} with last in ms.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate     = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local want     = tonumber(ARGV[4])
local now      = tonumber(ARGV[5])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last   = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  last = now
end

if now > last then
  local intervals = math.floor((now - last) / interval)
  if intervals > 0 then
    local capIntervals = math.floor(capacity / rate) + 1
    tokens = math.min(tokens + math.min(intervals, capIntervals) * rate, capacity)
    last = last + intervals * interval
  end
end

local remaining
if tokens < want then
  remaining = tokens - want
else
  tokens = tokens - want
  remaining = tokens
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
local ttl = math.ceil((capacity / rate) * interval) + interval
redis.call('PEXPIRE', KEYS[1], ttl)
return {remaining, last + interval}
`)

// RedisStore keeps buckets in Redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a RedisStore. An empty prefix uses "seoflow:ratelimit:".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (rs *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	res, err := consumeScript.Run(ctx, rs.client, []string{rs.prefix + key},
		cfg.Capacity,
		cfg.RefillRate,
		cfg.RefillInterval.Milliseconds(),
		tokens,
		rs.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, errors.New("unexpected script result"))
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
