// Package gate caps how many calls to one external dependency are in
// flight at a time.
//
// A Gate is a counting semaphore with FIFO waiters. Acquire blocks until a
// permit is free, Release hands it to the longest waiting caller. Do wraps
// a call so the permit is released on every path, including panics.
// The limit is per process; there is no coordination between processes.
package gate

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most Limit concurrent holders.
type Gate struct {
	name     string
	limit    int
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	observe  func(name string, inFlight int)
}

// New creates a gate that admits at most limit concurrent holders.
func New(limit int, opts ...Option) (*Gate, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	options := &gateOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return &Gate{
		name:    options.name,
		limit:   limit,
		sem:     semaphore.NewWeighted(int64(limit)),
		observe: options.observe,
	}, nil
}

// MustNew is New that panics on an invalid limit.
func MustNew(limit int, opts ...Option) *Gate {
	g, err := New(limit, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the dependency class this gate guards.
func (g *Gate) Name() string { return g.name }

// Limit returns the maximum number of concurrent holders.
func (g *Gate) Limit() int { return g.limit }

// InFlight returns the number of permits currently held.
func (g *Gate) InFlight() int { return int(g.inFlight.Load()) }

// Acquire blocks until a permit is available or ctx is done. Waiters are
// served in arrival order.
func (g *Gate) Acquire(ctx context.Context) (*Permit, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return g.grant(), nil
}

// TryAcquire returns a permit only if one is free right now.
func (g *Gate) TryAcquire() (*Permit, bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return g.grant(), true
}

func (g *Gate) grant() *Permit {
	g.report(g.inFlight.Add(1))
	return &Permit{gate: g}
}

func (g *Gate) report(n int64) {
	if g.observe != nil {
		g.observe(g.name, int(n))
	}
}

// Permit is one admission through a Gate.
type Permit struct {
	gate *Gate
	once sync.Once
}

// Release returns the permit. Calls after the first are no-ops.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.gate.report(p.gate.inFlight.Add(-1))
		p.gate.sem.Release(1)
	})
}

// Do runs fn while holding a permit from g.
func Do[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	permit, err := g.Acquire(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	defer permit.Release()

	return fn(ctx)
}
