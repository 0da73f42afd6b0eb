package ratelimiter

import (
	"context"
	"time"
)

// Store keeps bucket state. Implementations must be safe for concurrent use
// and must apply a consume atomically.
type Store interface {
	// ConsumeTokens refills the bucket for key and takes tokens when enough
	// are available. remaining is the balance after the grant, or the
	// (negative) shortfall when the request is denied and nothing was taken.
	ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// refill returns the token balance after the intervals elapsed since
// lastRefill, and the new lastRefill. Partial intervals carry over.
func refill(tokens int, lastRefill, now time.Time, cfg Config) (int, time.Time) {
	if !now.After(lastRefill) {
		return tokens, lastRefill
	}
	intervals := int64(now.Sub(lastRefill) / cfg.RefillInterval)
	if intervals <= 0 {
		return tokens, lastRefill
	}
	// Beyond this many intervals the bucket is full anyway.
	capIntervals := int64(cfg.Capacity/cfg.RefillRate + 1)
	added := int(min(intervals, capIntervals)) * cfg.RefillRate
	return min(tokens+added, cfg.Capacity), lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
}
