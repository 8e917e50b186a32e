package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// InMemoryLayer is the reference channel layer used for tests and
// single-process deployments (spec.md §4.4). It keeps a bounded deque per
// channel and an in-process group membership table.
type InMemoryLayer struct {
	BaseLayer

	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*inMemoryInbox
	groups   map[string]map[string]time.Time
	closed   bool
}

type inMemoryInbox struct {
	mu    sync.Mutex
	items []inMemoryItem
	wake  chan struct{}
}

type inMemoryItem struct {
	expiresAt time.Time
	message   Message
}

func newInMemoryInbox() *inMemoryInbox {
	return &inMemoryInbox{wake: make(chan struct{})}
}

// InMemoryOption configures an InMemoryLayer.
type InMemoryOption func(*InMemoryLayer)

// WithInMemoryLogger sets the layer's structured logger.
func WithInMemoryLogger(logger *slog.Logger) InMemoryOption {
	return func(l *InMemoryLayer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithInMemoryExpiry overrides the default message TTL, in seconds.
func WithInMemoryExpiry(seconds int) InMemoryOption {
	return func(l *InMemoryLayer) { l.Expiry = seconds }
}

// WithInMemoryGroupExpiry overrides the default group-membership TTL, in
// seconds.
func WithInMemoryGroupExpiry(seconds int) InMemoryOption {
	return func(l *InMemoryLayer) { l.GroupExpiry = seconds }
}

// WithInMemoryCapacity overrides the default per-channel inbox capacity.
func WithInMemoryCapacity(capacity int) InMemoryOption {
	return func(l *InMemoryLayer) { l.Capacity = capacity }
}

// WithInMemoryChannelCapacity sets glob-based per-channel capacity
// overrides, evaluated in the order given (first match wins).
func WithInMemoryChannelCapacity(overrides ...CapacityOverride) InMemoryOption {
	return func(l *InMemoryLayer) { l.ChannelCapacity = overrides }
}

// NewInMemoryLayer constructs an InMemoryLayer with spec.md defaults,
// overridden by any options supplied.
func NewInMemoryLayer(opts ...InMemoryOption) *InMemoryLayer {
	l := &InMemoryLayer{
		BaseLayer: NewBaseLayer(0, 0, 0, nil),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		channels:  make(map[string]*inMemoryInbox),
		groups:    make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Layer = (*InMemoryLayer)(nil)

// NewChannel returns a new process-local channel name, using the
// "<prefix>.inmemory!<random>" convention carried over from the original
// implementation (see SPEC_FULL.md §4).
func (l *InMemoryLayer) NewChannel(_ context.Context, prefix string) (string, error) {
	if prefix == "" {
		prefix = "specific"
	}
	suffix, err := NewChannelName("")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.inmemory!%s", prefix, suffix), nil
}

func (l *InMemoryLayer) inbox(channel string) *inMemoryInbox {
	l.mu.Lock()
	defer l.mu.Unlock()
	ib, ok := l.channels[channel]
	if !ok {
		ib = newInMemoryInbox()
		l.channels[channel] = ib
	}
	return ib
}

// Send implements Layer.
func (l *InMemoryLayer) Send(_ context.Context, channel string, message Message) error {
	if err := RequireValidChannelName(channel, false); err != nil {
		return err
	}
	ib := l.inbox(channel)
	capacity := l.GetCapacity(channel)

	ib.mu.Lock()
	defer ib.mu.Unlock()

	ib.evictExpiredLocked()
	if len(ib.items) >= capacity {
		return fmt.Errorf("%w: %q", ErrChannelFull, channel)
	}
	ib.items = append(ib.items, inMemoryItem{
		expiresAt: time.Now().Add(time.Duration(l.Expiry) * time.Second),
		message:   message,
	})
	ib.broadcastLocked()
	return nil
}

// Receive implements Layer. Only one receiver per channel should be active
// at a time; behavior under concurrent receivers is undefined per
// spec.md §4.3.
func (l *InMemoryLayer) Receive(ctx context.Context, channel string) (Message, error) {
	if err := RequireValidChannelName(channel, true); err != nil {
		return nil, err
	}
	ib := l.inbox(channel)

	for {
		ib.mu.Lock()
		ib.evictExpiredLocked()
		if len(ib.items) > 0 {
			item := ib.items[0]
			ib.items = ib.items[1:]
			ib.mu.Unlock()
			l.maybeDropEmptyChannel(channel)
			return item.message, nil
		}
		wake := ib.wake
		ib.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

func (l *InMemoryLayer) maybeDropEmptyChannel(channel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ib, ok := l.channels[channel]; ok {
		ib.mu.Lock()
		empty := len(ib.items) == 0
		ib.mu.Unlock()
		if empty {
			delete(l.channels, channel)
		}
	}
}

func (ib *inMemoryInbox) evictExpiredLocked() {
	now := time.Now()
	i := 0
	for i < len(ib.items) && ib.items[i].expiresAt.Before(now) {
		i++
	}
	if i > 0 {
		ib.items = ib.items[i:]
	}
}

func (ib *inMemoryInbox) broadcastLocked() {
	close(ib.wake)
	ib.wake = make(chan struct{})
}

// GroupAdd implements Layer.
func (l *InMemoryLayer) GroupAdd(_ context.Context, group, channel string) error {
	if err := RequireValidGroupName(group); err != nil {
		return err
	}
	if err := RequireValidChannelName(channel, false); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		members = make(map[string]time.Time)
		l.groups[group] = members
	}
	members[channel] = time.Now()
	return nil
}

// GroupDiscard implements Layer.
func (l *InMemoryLayer) GroupDiscard(_ context.Context, group, channel string) error {
	if err := RequireValidGroupName(group); err != nil {
		return err
	}
	if err := RequireValidChannelName(channel, false); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		return nil
	}
	delete(members, channel)
	if len(members) == 0 {
		delete(l.groups, group)
	}
	return nil
}

// GroupSend implements Layer. Per-member ErrChannelFull is swallowed and
// logged; other members are unaffected.
func (l *InMemoryLayer) GroupSend(ctx context.Context, group string, message Message) error {
	if err := RequireValidGroupName(group); err != nil {
		return err
	}
	l.reapExpiredGroups()

	l.mu.Lock()
	members := l.groups[group]
	channelsCopy := make([]string, 0, len(members))
	for ch := range members {
		channelsCopy = append(channelsCopy, ch)
	}
	l.mu.Unlock()

	var wg sync.WaitGroup
	for _, ch := range channelsCopy {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			if err := l.Send(ctx, channel, message); err != nil {
				l.logger.WarnContext(ctx, "group_send: dropping message for full channel",
					slog.String("group", group),
					slog.String("channel", channel),
					slog.Any("error", err))
			}
		}(ch)
	}
	wg.Wait()
	return nil
}

func (l *InMemoryLayer) reapExpiredGroups() {
	cutoff := time.Now().Add(-time.Duration(l.GroupExpiry) * time.Second)
	l.mu.Lock()
	defer l.mu.Unlock()
	for group, members := range l.groups {
		for channel, joinedAt := range members {
			if joinedAt.Before(cutoff) {
				delete(members, channel)
			}
		}
		if len(members) == 0 {
			delete(l.groups, group)
		}
	}
}

// Flush implements Layer. Intended for tests only.
func (l *InMemoryLayer) Flush(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels = make(map[string]*inMemoryInbox)
	l.groups = make(map[string]map[string]time.Time)
	return nil
}

// Close implements Layer. The in-memory layer holds no transport resources,
// so this is a no-op, matching the original's InMemoryChannelLayer.close().
func (l *InMemoryLayer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
