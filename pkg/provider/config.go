package provider

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/gate"
)

// Config is the shared provider tuning loaded from the environment.
type Config struct {
	Timeout          time.Duration  `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	MaxAttempts      int            `env:"PROVIDER_MAX_ATTEMPTS" envDefault:"3"`
	Concurrency      map[string]int `env:"PROVIDER_CONCURRENCY" envDefault:"dataforseo:4,openai:8,polar:2"`
	BreakerFailures  int            `env:"PROVIDER_BREAKER_FAILURES" envDefault:"5"`
	BreakerRecovery  time.Duration  `env:"PROVIDER_BREAKER_RECOVERY" envDefault:"30s"`
	BreakerSuccesses int            `env:"PROVIDER_BREAKER_SUCCESSES" envDefault:"2"`
}

// Gates registers one gate per entry in cfg.Concurrency.
func (cfg Config) Gates(opts ...gate.Option) (*gate.Registry, error) {
	r := gate.NewRegistry(opts...)
	for class, limit := range cfg.Concurrency {
		if _, err := r.Register(class, limit); err != nil {
			return nil, fmt.Errorf("provider concurrency: %w", err)
		}
	}
	return r, nil
}

// Options returns the client options cfg implies for the provider called
// name, taking its gate from gates when one is registered.
func (cfg Config) Options(name string, gates *gate.Registry) []Option {
	opts := []Option{
		WithTimeout(cfg.Timeout),
		WithCircuitBreaker(NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerSuccesses, cfg.BreakerRecovery)),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(cfg.MaxAttempts))
	}
	if gates != nil {
		if g, err := gates.Get(name); err == nil {
			opts = append(opts, WithGate(g))
		}
	}
	return opts
}
