package gate

import (
	"fmt"
	"sync"
)

// Registry holds one Gate per dependency class, e.g. "dataforseo" or "openai".
type Registry struct {
	mu       sync.RWMutex
	gates    map[string]*Gate
	defaults []Option
}

// NewRegistry creates a registry. opts are applied to every gate it creates
// before the per-class name.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{gates: make(map[string]*Gate), defaults: opts}
}

// Register creates the gate for class, or returns the existing one if the
// class is already registered with the same limit.
func (r *Registry) Register(class string, limit int) (*Gate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gates[class]; ok {
		if g.limit != limit {
			return nil, fmt.Errorf("gate %q already registered with limit %d, got %d", class, g.limit, limit)
		}
		return g, nil
	}

	g, err := New(limit, append(append([]Option{}, r.defaults...), WithName(class))...)
	if err != nil {
		return nil, fmt.Errorf("gate %q: %w", class, err)
	}
	r.gates[class] = g
	return g, nil
}

// Get returns the gate registered for class.
func (r *Registry) Get(class string) (*Gate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gates[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return g, nil
}

// InFlight reports the in-flight count of every registered class.
func (r *Registry) InFlight() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.gates))
	for class, g := range r.gates {
		out[class] = g.InFlight()
	}
	return out
}
