package redis

import (
	"time"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

// Config configures a QueueLayer or PubSubLayer, loaded the way the
// teacher's integration packages load their own Config: via
// core/config.Load[Config]() against `env`-tagged fields, or built
// directly for programmatic use (e.g. tests).
type Config struct {
	// Hosts lists the Redis connection descriptors to shard across. Each
	// entry is a "redis://" URL, or, when SentinelMasterName is set, a
	// Sentinel address (see SentinelMasterName below); kept as strings here
	// so the value is env-parseable.
	Hosts []string `env:"CHANNEL_LAYER_REDIS_HOSTS" envSeparator:"," envDefault:"redis://localhost:6379/0"`

	// Prefix namespaces every Redis key and pub/sub channel this layer
	// touches, so multiple applications can share a Redis instance.
	Prefix string `env:"CHANNEL_LAYER_REDIS_PREFIX" envDefault:"asgi"`

	// Expiry bounds how long an undelivered message survives in a
	// channel's queue (queue layer only).
	Expiry time.Duration `env:"CHANNEL_LAYER_REDIS_EXPIRY" envDefault:"60s"`

	// GroupExpiry bounds how long a group membership survives without
	// being refreshed by GroupAdd.
	GroupExpiry time.Duration `env:"CHANNEL_LAYER_REDIS_GROUP_EXPIRY" envDefault:"86400s"`

	// Capacity is the default per-channel inbox bound (queue layer only).
	Capacity int `env:"CHANNEL_LAYER_REDIS_CAPACITY" envDefault:"100"`

	// ChannelCapacity overrides Capacity for channel names matching a
	// glob, evaluated in order with first match winning.
	ChannelCapacity []channels.CapacityOverride `env:"-"`

	// SymmetricEncryptionKeys, if non-empty, wraps every payload in
	// ChaCha20-Poly1305 keyed by SHA3-256(key). The first key encrypts;
	// every key is tried on decrypt, enabling rotation.
	SymmetricEncryptionKeys []string `env:"CHANNEL_LAYER_REDIS_ENCRYPTION_KEYS" envSeparator:","`

	// SentinelMasterName, if set, switches every host in Hosts from a
	// direct Redis address into a Sentinel address, and Connect resolves
	// the current master for this name through them.
	SentinelMasterName string `env:"CHANNEL_LAYER_REDIS_SENTINEL_MASTER"`

	// SentinelPassword authenticates against the Sentinel processes
	// themselves, distinct from the master's own password (carried in
	// each host URL).
	SentinelPassword string `env:"CHANNEL_LAYER_REDIS_SENTINEL_PASSWORD"`

	// DialTimeout bounds how long initial connection establishment may
	// take per shard.
	DialTimeout time.Duration `env:"CHANNEL_LAYER_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
}

func (c *Config) expiryOrDefault() int {
	if c.Expiry <= 0 {
		return channels.DefaultExpiry
	}
	return int(c.Expiry.Seconds())
}

func (c *Config) groupExpiryOrDefault() int {
	if c.GroupExpiry <= 0 {
		return channels.DefaultGroupExpiry
	}
	return int(c.GroupExpiry.Seconds())
}

func (c *Config) capacityOrDefault() int {
	if c.Capacity <= 0 {
		return channels.DefaultCapacity
	}
	return c.Capacity
}

func (c *Config) prefixOrDefault() string {
	if c.Prefix == "" {
		return "asgi"
	}
	return c.Prefix
}
