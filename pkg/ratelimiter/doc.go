// Package ratelimiter caps how fast each project may submit jobs.
//
// Bucket implements a token bucket over a Store. A request for n tokens is
// granted only when the bucket holds at least n; a denied request consumes
// nothing. MemoryStore serves a single dispatcher, RedisStore shares buckets
// across replicas with an atomic Lua script.
//
//	limiter, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{
//		Capacity:       20,
//		RefillRate:     1,
//		RefillInterval: 3 * time.Second,
//	})
//	res, err := limiter.Allow(ctx, "project:"+projectID)
//	if err == nil && !res.Allowed() {
//		// answer 429 with Retry-After: res.RetryAfter()
//	}
package ratelimiter
