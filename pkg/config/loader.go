// Package config loads env-tagged structs through caarlos0/env, reading a
// .env file first when one exists. Loaded values are cached per type so
// every package that asks for the same config struct sees the same values.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu      sync.Mutex
	cache   = make(map[reflect.Type]any)
	dotenv  sync.Once
	envFile = ".env"
)

// Load parses the environment into v. The first successful load of a type
// is cached and copied into v on later calls.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDotenv()

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = *v
	return nil
}

// MustLoad is Load that panics on failure. Use it in main.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse reads the environment into v without touching the cache.
// opts are passed through to env.ParseWithOptions, e.g. a variable prefix.
func Parse[T any](v *T, opts env.Options) error {
	if v == nil {
		return ErrNilPointer
	}
	loadDotenv()

	if err := env.ParseWithOptions(v, opts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// Reset drops every cached config. Tests use it between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}

func loadDotenv() {
	dotenv.Do(func() {
		// A missing .env file is the normal case outside local development.
		_ = godotenv.Load(envFile)
	})
}
