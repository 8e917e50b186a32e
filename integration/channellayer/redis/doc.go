// Package redis provides two channel-layer backends on top of
// github.com/redis/go-redis/v9, implementing channels.Layer for
// multi-process deployments (spec.md §4.5, §4.6):
//
//   - QueueLayer ("redis"): a reliable, at-least-once layer backed by Redis
//     lists and sorted sets. Messages survive until delivered or expired,
//     and Send enforces per-channel capacity.
//   - PubSubLayer ("redis_pubsub"): a lighter layer backed by Redis
//     pub/sub. Messages are fire-and-forget: a message published while no
//     process is subscribed to its channel is lost, and there is no
//     capacity enforcement.
//
// Both backends shard across a configured set of hosts by hashing the
// non-local portion of a channel name, and both support Sentinel-based
// master discovery through Config.Hosts.
package redis
