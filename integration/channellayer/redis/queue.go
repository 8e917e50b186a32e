package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/huynguyengl99/fast-channels/core/channels"
	"github.com/huynguyengl99/fast-channels/core/logger"
)

// receivePollInterval bounds how long a single BLPOP call blocks before
// QueueLayer.Receive checks ctx and reissues it, keeping long-lived
// receives cancellation-safe without busy-polling (spec.md §4.5).
const receivePollInterval = 5 * time.Second

// dedupeWindow is how long a delivered message's id is remembered, to
// silently drop a duplicate a shard reconnect can occasionally redeliver.
const dedupeWindow = 2 * time.Minute

// QueueLayer is a reliable, at-least-once channels.Layer backed by Redis
// lists (per-channel queues) and sorted sets (group membership), grounded
// on the shape spec.md §4.5 describes. Build one with NewQueueLayer.
type QueueLayer struct {
	channels.BaseLayer

	shards     []*goredis.Client
	prefix     string
	serializer channels.Serializer
	logger     *slog.Logger

	seenMu sync.Mutex
	seen   map[dedupeKey]time.Time // (channel, message id) -> delivery time, for dedup

	closed bool
}

// QueueOption configures a QueueLayer built by NewQueueLayer.
type QueueOption func(*QueueLayer)

// WithQueueLogger sets the logger used for fan-out warnings and reconnect
// diagnostics.
func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *QueueLayer) { q.logger = l }
}

// WithQueueSerializer overrides the default msgpack serializer, e.g. to use
// channels.JSONSerializer or an channels.EncryptedSerializer wrapper.
func WithQueueSerializer(s channels.Serializer) QueueOption {
	return func(q *QueueLayer) { q.serializer = s }
}

// NewQueueLayer connects to every host in cfg.Hosts and returns a ready
// QueueLayer. When cfg.SymmetricEncryptionKeys is set, payloads are
// transparently encrypted with channels.EncryptedSerializer.
func NewQueueLayer(ctx context.Context, cfg Config, opts ...QueueOption) (*QueueLayer, error) {
	shards, err := connectShards(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	q := &QueueLayer{
		BaseLayer:  channels.NewBaseLayer(cfg.expiryOrDefault(), cfg.groupExpiryOrDefault(), cfg.capacityOrDefault(), cfg.ChannelCapacity),
		shards:     shards,
		prefix:     cfg.prefixOrDefault(),
		serializer: channels.MsgpackSerializer,
		logger:     logger.Discard(),
		seen:       make(map[dedupeKey]time.Time),
	}
	for _, opt := range opts {
		opt(q)
	}

	if len(cfg.SymmetricEncryptionKeys) > 0 {
		enc, err := channels.NewEncryptedSerializer(q.serializer, cfg.SymmetricEncryptionKeys)
		if err != nil {
			closeShards(shards)
			return nil, fmt.Errorf("channellayer/redis: build encrypted serializer: %w", err)
		}
		q.serializer = enc
	}

	return q, nil
}

var _ channels.Layer = (*QueueLayer)(nil)

func (q *QueueLayer) listKey(channel string) string {
	return fmt.Sprintf("%s:specific.%s", q.prefix, channel)
}

func (q *QueueLayer) groupKey(group string) string {
	return fmt.Sprintf("%s:group.%s", q.prefix, group)
}

func (q *QueueLayer) shardForChannel(channel string) *goredis.Client {
	return shardFor(q.shards, channel, channels.NonLocalName)
}

// NewChannel returns "<prefix>!<random>", a fully-qualified client-specific
// channel name this layer can immediately Receive from.
func (q *QueueLayer) NewChannel(_ context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = "specific"
	}
	suffix, err := channels.NewChannelName("")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s!%s", prefix, suffix), nil
}

// Send enqueues message onto channel's Redis list, enforcing capacity
// atomically via boundedPushScript.
func (q *QueueLayer) Send(ctx context.Context, channel string, message channels.Message) error {
	if err := channels.RequireValidChannelName(channel, false); err != nil {
		return err
	}

	payload, err := q.encodePayload(message)
	if err != nil {
		return err
	}

	capacity := q.GetCapacity(channel)
	client := q.shardForChannel(channel)

	pushed, err := boundedPushScript.Run(ctx, client, []string{q.listKey(channel)}, payload, capacity, q.Expiry).Int()
	if err != nil {
		return fmt.Errorf("channellayer/redis: send to %q: %w", channel, err)
	}
	if pushed == 0 {
		return fmt.Errorf("%w: channel %q", channels.ErrChannelFull, channel)
	}
	return nil
}

// Receive blocks until a message is available on channel or ctx is
// cancelled. It reissues BLPOP in receivePollInterval slices so
// cancellation is observed promptly even though go-redis blocks for the
// full timeout per call.
func (q *QueueLayer) Receive(ctx context.Context, channel string) (channels.Message, error) {
	if err := channels.RequireValidChannelName(channel, true); err != nil {
		return nil, err
	}

	client := q.shardForChannel(channel)
	key := q.listKey(channel)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := client.BLPop(ctx, receivePollInterval, key).Result()
		if errors.Is(err, goredis.Nil) {
			continue // poll interval elapsed with nothing queued
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("channellayer/redis: receive from %q: %w", channel, err)
		}

		// result[0] is the key name, result[1] the payload.
		id, message, err := q.decodePayload(result[1])
		if err != nil {
			return nil, err
		}
		if q.isDuplicate(channel, id) {
			continue
		}
		return message, nil
	}
}

// GroupAdd idempotently adds channel to group with the current time as its
// membership score, refreshing the TTL on repeat calls.
func (q *QueueLayer) GroupAdd(ctx context.Context, group, channel string) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}
	if err := channels.RequireValidChannelName(channel, false); err != nil {
		return err
	}

	client := q.shardForChannel(group)
	key := q.groupKey(group)

	if err := client.ZAdd(ctx, key, goredis.Z{Score: float64(nowUnix()), Member: channel}).Err(); err != nil {
		return fmt.Errorf("channellayer/redis: group add %q/%q: %w", group, channel, err)
	}
	return client.Expire(ctx, key, q.GroupExpirySeconds()).Err()
}

// GroupDiscard idempotently removes channel from group.
func (q *QueueLayer) GroupDiscard(ctx context.Context, group, channel string) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}
	client := q.shardForChannel(group)
	if err := client.ZRem(ctx, q.groupKey(group), channel).Err(); err != nil {
		return fmt.Errorf("channellayer/redis: group discard %q/%q: %w", group, channel, err)
	}
	return nil
}

// GroupSend fans message out to every non-stale member of group. Members
// are resolved on the group's own shard, then routed and pushed on each
// member's own channel shard, since a group's membership can span shards
// while Receive only ever reads a channel's list from its own shard
// (spec.md §4.5's per-shard pipelined sends). Per-recipient capacity is
// enforced using the layer's default capacity; channel_capacity overrides
// are not consulted for fan-out (see scripts.go).
func (q *QueueLayer) GroupSend(ctx context.Context, group string, message channels.Message) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}

	payload, err := q.encodePayload(message)
	if err != nil {
		return err
	}

	groupClient := q.shardForChannel(group)
	cutoff := nowUnix() - int64(q.GroupExpirySeconds()/time.Second)

	rawMembers, err := groupMembersScript.Run(ctx, groupClient, []string{q.groupKey(group)}, cutoff).Result()
	if err != nil {
		return fmt.Errorf("channellayer/redis: group send %q: list members: %w", group, err)
	}
	members, ok := rawMembers.([]interface{})
	if !ok {
		return fmt.Errorf("channellayer/redis: group send %q: unexpected member list reply", group)
	}

	keysByShard := make(map[*goredis.Client][]string, len(q.shards))
	for _, m := range members {
		channel, ok := m.(string)
		if !ok {
			continue
		}
		client := q.shardForChannel(channel)
		keysByShard[client] = append(keysByShard[client], q.listKey(channel))
	}

	capacity := q.Capacity
	for client, keys := range keysByShard {
		if _, err := groupFanoutScript.Run(ctx, client, keys, payload, capacity, q.Expiry).Result(); err != nil {
			return fmt.Errorf("channellayer/redis: group send %q: deliver: %w", group, err)
		}
	}
	return nil
}

// GroupExpirySeconds exposes the configured group TTL as a time.Duration
// for Redis EXPIRE calls.
func (q *QueueLayer) GroupExpirySeconds() time.Duration {
	return time.Duration(q.BaseLayer.GroupExpiry) * time.Second
}

// Flush discards every key this layer's prefix owns, across all shards.
// Intended for tests only.
func (q *QueueLayer) Flush(ctx context.Context) error {
	for _, client := range q.shards {
		iter := client.Scan(ctx, 0, q.prefix+":*", 1000).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("channellayer/redis: flush scan: %w", err)
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("channellayer/redis: flush del: %w", err)
			}
		}
	}
	return nil
}

// Close releases every shard's connection pool.
func (q *QueueLayer) Close() error {
	if q.closed {
		return nil
	}
	q.closed = true
	closeShards(q.shards)
	return nil
}

func (q *QueueLayer) encodePayload(message channels.Message) (string, error) {
	body, err := q.serializer.Serialize(message)
	if err != nil {
		return "", fmt.Errorf("channellayer/redis: serialize message: %w", err)
	}
	id, err := randomID()
	if err != nil {
		return "", err
	}
	return id + ":" + string(body), nil
}

func (q *QueueLayer) decodePayload(raw string) (id string, message channels.Message, err error) {
	idx := indexByte(raw, ':')
	if idx < 0 {
		return "", nil, fmt.Errorf("channellayer/redis: malformed payload (missing id separator)")
	}
	id = raw[:idx]
	message, err = q.serializer.Deserialize([]byte(raw[idx+1:]))
	if err != nil {
		return "", nil, fmt.Errorf("channellayer/redis: deserialize message: %w", err)
	}
	return id, message, nil
}

// dedupeKey scopes a remembered message id to the channel it was delivered
// on: GroupSend reuses one encoded payload (and id) across every member's
// list, so two different channels seeing the same id is expected, not a
// duplicate delivery (spec.md §4.5 dedupes per channel, not layer-wide).
type dedupeKey struct {
	channel string
	id      string
}

func (q *QueueLayer) isDuplicate(channel, id string) bool {
	now := time.Now()
	key := dedupeKey{channel: channel, id: id}

	q.seenMu.Lock()
	defer q.seenMu.Unlock()

	for k, at := range q.seen {
		if now.Sub(at) > dedupeWindow {
			delete(q.seen, k)
		}
	}
	if _, ok := q.seen[key]; ok {
		return true
	}
	q.seen[key] = now
	return false
}

func randomID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("channellayer/redis: generate message id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func nowUnix() int64 { return time.Now().Unix() }
