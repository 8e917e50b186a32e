package config

import (
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> any
)

// loadDotenv loads a .env file from the working directory, if present. It
// is silent about a missing file (the common case in production, where
// configuration comes from the real environment) but reports malformed
// files.
func loadDotenv() error {
	var loadErr error
	dotenvOnce.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		loadErr = godotenv.Load()
	})
	return loadErr
}

// Load populates a new T from environment variables using struct `env`
// tags, caching the result so repeated calls for the same T return the
// same value without re-parsing the environment.
func Load[T any]() (*T, error) {
	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var zero T
	key := reflect.TypeOf(zero)

	if cached, ok := cache.Load(key); ok {
		v := cached.(*T)
		return v, nil
	}

	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment into %T: %w", zero, err)
	}

	actual, _ := cache.LoadOrStore(key, cfg)
	return actual.(*T), nil
}

// MustLoad is like Load but panics on failure. Useful at application
// startup where a missing or malformed configuration should abort the
// process immediately.
func MustLoad[T any]() *T {
	cfg, err := Load[T]()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Reset clears the configuration cache. Intended for tests that need to
// reload configuration after mutating environment variables.
func Reset() {
	cache = sync.Map{}
	dotenvOnce = sync.Once{}
}
