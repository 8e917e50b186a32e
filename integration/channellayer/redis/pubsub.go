package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/huynguyengl99/fast-channels/core/channels"
	"github.com/huynguyengl99/fast-channels/core/logger"
)

// PubSubLayer is a lightweight, fire-and-forget channels.Layer backed by
// Redis pub/sub (spec.md §4.6). Unlike QueueLayer, messages published while
// nobody is subscribed are lost, there is no capacity enforcement, and
// group membership lives only in-process: it tracks which local channels
// are subscribed, not a durable Redis-side set.
type PubSubLayer struct {
	channels.BaseLayer

	shards     []*goredis.Client
	subs       []*goredis.PubSub // one subscriber connection per shard
	prefix     string
	serializer channels.Serializer
	logger     *slog.Logger

	mu     sync.Mutex
	boxes  map[string]*pubsubInbox     // channel name -> local inbox
	groups map[string]map[string]bool // group -> member channel set

	pumps  *errgroup.Group // supervises the per-shard pumpShard goroutines
	closed bool
}

type pubsubInbox struct {
	mu   sync.Mutex
	buf  []channels.Message
	wake chan struct{}
}

func newPubsubInbox() *pubsubInbox {
	return &pubsubInbox{wake: make(chan struct{})}
}

func (b *pubsubInbox) push(msg channels.Message) {
	b.mu.Lock()
	b.buf = append(b.buf, msg)
	close(b.wake)
	b.wake = make(chan struct{})
	b.mu.Unlock()
}

func (b *pubsubInbox) pop() (channels.Message, chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil, b.wake, false
	}
	msg := b.buf[0]
	b.buf = b.buf[1:]
	return msg, nil, true
}

// PubSubOption configures a PubSubLayer built by NewPubSubLayer.
type PubSubOption func(*PubSubLayer)

// WithPubSubLogger sets the logger used for resubscription diagnostics.
func WithPubSubLogger(l *slog.Logger) PubSubOption {
	return func(p *PubSubLayer) { p.logger = l }
}

// WithPubSubSerializer overrides the default msgpack serializer.
func WithPubSubSerializer(s channels.Serializer) PubSubOption {
	return func(p *PubSubLayer) { p.serializer = s }
}

// NewPubSubLayer connects one publisher and one subscriber client per
// configured shard and returns a ready PubSubLayer.
func NewPubSubLayer(ctx context.Context, cfg Config, opts ...PubSubOption) (*PubSubLayer, error) {
	shards, err := connectShards(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	p := &PubSubLayer{
		BaseLayer:  channels.NewBaseLayer(cfg.expiryOrDefault(), cfg.groupExpiryOrDefault(), cfg.capacityOrDefault(), cfg.ChannelCapacity),
		shards:     shards,
		subs:       make([]*goredis.PubSub, len(shards)),
		prefix:     cfg.prefixOrDefault(),
		serializer: channels.MsgpackSerializer,
		logger:     logger.Discard(),
		boxes:      make(map[string]*pubsubInbox),
		groups:     make(map[string]map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(cfg.SymmetricEncryptionKeys) > 0 {
		enc, err := channels.NewEncryptedSerializer(p.serializer, cfg.SymmetricEncryptionKeys)
		if err != nil {
			closeShards(shards)
			return nil, fmt.Errorf("channellayer/redis: build encrypted serializer: %w", err)
		}
		p.serializer = enc
	}

	p.pumps = new(errgroup.Group)
	for i, client := range shards {
		i, sub := i, client.Subscribe(ctx) // no channels yet; Subscribe is called per-channel below
		p.subs[i] = sub
		p.pumps.Go(func() error {
			p.pumpShard(i, sub)
			return nil
		})
	}

	return p, nil
}

var _ channels.Layer = (*PubSubLayer)(nil)

func (p *PubSubLayer) wireKey(channel string) string {
	return p.prefix + ":" + channel
}

func (p *PubSubLayer) shardIndex(name string) int {
	if len(p.shards) == 1 {
		return 0
	}
	return int(fnv32a(channels.NonLocalName(name))) % len(p.shards)
}

// pumpShard forwards every message the shard's subscriber connection
// receives into the matching local inbox (or, for a group's wire channel,
// into every currently-linked member inbox), resubscribing automatically
// if the connection drops (spec.md §4.6: go-redis's PubSub reconnects and
// re-issues SUBSCRIBE transparently, so no manual resubscription loop is
// needed here). One pumpShard goroutine runs per shard, supervised by the
// layer's errgroup so Close can wait for all of them to unwind.
func (p *PubSubLayer) pumpShard(idx int, sub *goredis.PubSub) {
	ch := sub.Channel()
	for msg := range ch {
		logical := strings.TrimPrefix(msg.Channel, p.prefix+":")

		decoded, err := p.serializer.Deserialize([]byte(msg.Payload))
		if err != nil {
			p.logger.Warn("pubsub: drop undecodable message", logger.Error(err), logger.Shard(idx))
			continue
		}

		if group, ok := strings.CutPrefix(logical, groupWirePrefix); ok {
			p.fanoutToGroupMembers(group, decoded)
			continue
		}

		if box, ok := p.existingInbox(logical); ok {
			box.push(decoded)
		}
	}
	// sub.Channel() closed only when Close tears the subscriber down; a
	// transient network drop is retried internally by go-redis.
}

func (p *PubSubLayer) fanoutToGroupMembers(group string, msg channels.Message) {
	p.mu.Lock()
	members := make([]string, 0, len(p.groups[group]))
	for m := range p.groups[group] {
		members = append(members, m)
	}
	p.mu.Unlock()

	for _, member := range members {
		if box, ok := p.existingInbox(member); ok {
			box.push(msg)
		}
	}
}

func (p *PubSubLayer) existingInbox(channel string) (*pubsubInbox, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	box, ok := p.boxes[channel]
	return box, ok
}

func (p *PubSubLayer) inbox(channel string) *pubsubInbox {
	p.mu.Lock()
	defer p.mu.Unlock()
	box, ok := p.boxes[channel]
	if !ok {
		box = newPubsubInbox()
		p.boxes[channel] = box
	}
	return box
}

// NewChannel returns "<prefix>!<random>" and subscribes this process to it.
func (p *PubSubLayer) NewChannel(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = "specific"
	}
	suffix, err := channels.NewChannelName("")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s!%s", prefix, suffix)
	if err := p.subscribeLocal(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// subscribeLocal subscribes to a channel's own wire name and creates its
// inbox, used for specific channels that Receive is called against
// directly.
func (p *PubSubLayer) subscribeLocal(ctx context.Context, channel string) error {
	p.inbox(channel) // ensure the inbox exists before traffic can arrive
	idx := p.shardIndex(channel)
	return p.subs[idx].Subscribe(ctx, p.wireKey(channel))
}

func (p *PubSubLayer) unsubscribeLocal(ctx context.Context, channel string) error {
	idx := p.shardIndex(channel)
	p.mu.Lock()
	delete(p.boxes, channel)
	p.mu.Unlock()
	return p.subs[idx].Unsubscribe(ctx, p.wireKey(channel))
}

// subscribeGroupWire subscribes to a group's shared wire channel without
// creating a standalone inbox for it; delivery is fanned out to member
// inboxes directly in pumpShard.
func (p *PubSubLayer) subscribeGroupWire(ctx context.Context, group string) error {
	name := groupWireName(group)
	idx := p.shardIndex(name)
	return p.subs[idx].Subscribe(ctx, p.wireKey(name))
}

func (p *PubSubLayer) unsubscribeGroupWire(ctx context.Context, group string) error {
	name := groupWireName(group)
	idx := p.shardIndex(name)
	return p.subs[idx].Unsubscribe(ctx, p.wireKey(name))
}

// Send publishes message to channel. There is no capacity check and no
// persistence: a publish with no current subscriber is simply dropped.
func (p *PubSubLayer) Send(ctx context.Context, channel string, message channels.Message) error {
	if err := channels.RequireValidChannelName(channel, false); err != nil {
		return err
	}
	payload, err := p.serializer.Serialize(message)
	if err != nil {
		return fmt.Errorf("channellayer/redis: serialize message: %w", err)
	}
	client := p.shards[p.shardIndex(channel)]
	return client.Publish(ctx, p.wireKey(channel), payload).Err()
}

// Receive blocks until a message arrives in channel's local inbox or ctx is
// cancelled. Direct sends reach the inbox only while channel's own wire key
// is subscribed, which NewChannel does; group messages reach it while
// channel is a group member (GroupAdd) and its inbox exists, which NewChannel
// or Receive itself creates. Otherwise Receive blocks until ctx is done.
func (p *PubSubLayer) Receive(ctx context.Context, channel string) (channels.Message, error) {
	if err := channels.RequireValidChannelName(channel, true); err != nil {
		return nil, err
	}
	box := p.inbox(channel)
	for {
		msg, wake, ok := box.pop()
		if ok {
			return msg, nil
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GroupAdd subscribes channel to group's wire channel locally and tracks
// the membership so GroupDiscard and Close can unwind it. Because
// membership is process-local, a group spans exactly the processes that
// called GroupAdd for it; there is no cross-process membership TTL to
// refresh.
func (p *PubSubLayer) GroupAdd(ctx context.Context, group, channel string) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}
	if err := channels.RequireValidChannelName(channel, false); err != nil {
		return err
	}

	p.mu.Lock()
	members, ok := p.groups[group]
	if !ok {
		members = make(map[string]bool)
		p.groups[group] = members
	}
	alreadySubscribed := len(members) > 0
	members[channel] = true
	p.mu.Unlock()

	if !alreadySubscribed {
		if err := p.subscribeGroupWire(ctx, group); err != nil {
			return fmt.Errorf("channellayer/redis: subscribe group %q: %w", group, err)
		}
	}
	return nil
}

// GroupDiscard removes channel from group, unsubscribing from the group's
// wire channel once no local member remains.
func (p *PubSubLayer) GroupDiscard(ctx context.Context, group, channel string) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}

	p.mu.Lock()
	members, ok := p.groups[group]
	if ok {
		delete(members, channel)
	}
	empty := ok && len(members) == 0
	if empty {
		delete(p.groups, group)
	}
	p.mu.Unlock()

	if empty {
		return p.unsubscribeGroupWire(ctx, group)
	}
	return nil
}

// GroupSend publishes message once to group's shared wire channel; every
// process with at least one local member subscribed receives it and fans
// it out to each of its own members' inboxes.
func (p *PubSubLayer) GroupSend(ctx context.Context, group string, message channels.Message) error {
	if err := channels.RequireValidGroupName(group); err != nil {
		return err
	}
	return p.Send(ctx, groupWireName(group), message)
}

// Flush unsubscribes every local channel and group and clears local state.
// Intended for tests only.
func (p *PubSubLayer) Flush(ctx context.Context) error {
	p.mu.Lock()
	channelsToDrop := make([]string, 0, len(p.boxes))
	for ch := range p.boxes {
		channelsToDrop = append(channelsToDrop, ch)
	}
	groupsToDrop := make([]string, 0, len(p.groups))
	for g := range p.groups {
		groupsToDrop = append(groupsToDrop, g)
	}
	p.boxes = make(map[string]*pubsubInbox)
	p.groups = make(map[string]map[string]bool)
	p.mu.Unlock()

	for _, ch := range channelsToDrop {
		idx := p.shardIndex(ch)
		_ = p.subs[idx].Unsubscribe(ctx, p.wireKey(ch))
	}
	for _, g := range groupsToDrop {
		_ = p.unsubscribeGroupWire(ctx, g)
	}
	return nil
}

// Close shuts down every shard's subscriber and publisher connection.
func (p *PubSubLayer) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	for _, sub := range p.subs {
		_ = sub.Close()
	}
	_ = p.pumps.Wait() // closing each sub closes its Channel(), letting pumpShard return
	closeShards(p.shards)
	return nil
}

const groupWirePrefix = "__group__."

func groupWireName(group string) string { return groupWirePrefix + group }
