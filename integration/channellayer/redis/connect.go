package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// connectShards establishes one *goredis.Client per configured host and
// verifies each with a ping, mirroring the verify-before-return contract
// the teacher's integration/database/redis.Connect documents.
//
// When Config.SentinelMasterName is set, Hosts is instead treated as the
// Sentinel address list for a single resolved master: Sentinel deployments
// shard at the Redis Cluster or application layer, not by handing this
// layer multiple independent master names.
func connectShards(ctx context.Context, cfg *Config) ([]*goredis.Client, error) {
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoHosts
	}

	if cfg.SentinelMasterName != "" {
		client := goredis.NewFailoverClient(&goredis.FailoverOptions{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    cfg.Hosts,
			SentinelPassword: cfg.SentinelPassword,
			DialTimeout:      cfg.DialTimeout,
		})
		if err := pingWithTimeout(ctx, client, cfg.DialTimeout); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("channellayer/redis: connect via sentinel %q: %w", cfg.SentinelMasterName, err)
		}
		return []*goredis.Client{client}, nil
	}

	shards := make([]*goredis.Client, 0, len(cfg.Hosts))
	for _, hostURL := range cfg.Hosts {
		opts, err := goredis.ParseURL(hostURL)
		if err != nil {
			closeShards(shards)
			return nil, fmt.Errorf("channellayer/redis: parse host %q: %w", hostURL, err)
		}
		if cfg.DialTimeout > 0 {
			opts.DialTimeout = cfg.DialTimeout
		}
		client := goredis.NewClient(opts)
		if err := pingWithTimeout(ctx, client, cfg.DialTimeout); err != nil {
			_ = client.Close()
			closeShards(shards)
			return nil, fmt.Errorf("channellayer/redis: connect host %q: %w", hostURL, err)
		}
		shards = append(shards, client)
	}
	return shards, nil
}

func pingWithTimeout(ctx context.Context, client *goredis.Client, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Ping(pingCtx).Err()
}

func closeShards(shards []*goredis.Client) {
	for _, s := range shards {
		_ = s.Close()
	}
}

// shardFor picks the shard a channel or group name belongs to by hashing
// its non-local portion (the part after "!", or the whole name if there is
// no "!"), so the random suffix new_channel generates spreads channels
// uniformly across shards, and any process with the same Hosts list
// computes the same shard for a given name (spec.md §4.5).
func shardFor(shards []*goredis.Client, name string, nonLocalName func(string) string) *goredis.Client {
	if len(shards) == 1 {
		return shards[0]
	}
	h := fnv32a(nonLocalName(name))
	return shards[int(h)%len(shards)]
}

// fnv32a is a small, dependency-free string hash used only to pick a
// shard index; it need not be cryptographically strong.
func fnv32a(s string) uint32 {
	const prime32 = 16777619
	hash := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= prime32
	}
	return hash
}
