// Package config provides type-safe environment variable loading with
// caching using Go generics, adapted from the teacher's core/config
// package. Each configuration struct type is loaded once and cached for
// subsequent calls.
//
// Example:
//
//	type RedisConfig struct {
//		Hosts  []string `env:"FASTCHANNELS_REDIS_HOSTS,required" envSeparator:","`
//		Prefix string   `env:"FASTCHANNELS_REDIS_PREFIX" envDefault:"asgi"`
//	}
//
//	cfg, err := config.Load[RedisConfig]()
package config
