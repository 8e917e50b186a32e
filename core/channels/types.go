package channels

import "context"

// Message is a mapping with at least a "type" key whose value is a dotted
// lowercase identifier (e.g. "chat.message"). The layer is agnostic to any
// other keys; consumers interpret them.
type Message map[string]any

// Type returns the message's dispatch type, or "" if absent or not a string.
func (m Message) Type() string {
	v, _ := m["type"].(string)
	return v
}

// CapacityOverride pairs a glob pattern with the inbox capacity that applies
// to channel names matching it. Overrides are evaluated in slice order;
// the first match wins (see SPEC_FULL.md §4, resolving spec.md's Open
// Question on overlapping globs).
type CapacityOverride struct {
	Pattern  string
	Capacity int
}

// Layer is the contract every channel layer backend must satisfy. It
// mirrors BaseChannelLayer from spec.md §4.3.
type Layer interface {
	// NewChannel returns a fresh, unused channel name owned by this layer.
	NewChannel(ctx context.Context, prefix string) (string, error)

	// Send enqueues message for channel. Returns ErrChannelFull if the
	// inbox is saturated. Succeeds silently for an unknown channel.
	Send(ctx context.Context, channel string, message Message) error

	// Receive suspends until a non-expired message is available for
	// channel and returns exactly one. At most one receiver per channel
	// at a time; concurrent receivers yield undefined interleaving.
	Receive(ctx context.Context, channel string) (Message, error)

	// GroupAdd idempotently adds channel to group.
	GroupAdd(ctx context.Context, group, channel string) error

	// GroupDiscard idempotently removes channel from group. No-op if absent.
	GroupDiscard(ctx context.Context, group, channel string) error

	// GroupSend fans a message out to every current member of group.
	// Per-recipient ErrChannelFull is swallowed and logged, not returned.
	GroupSend(ctx context.Context, group string, message Message) error

	// Flush discards all state. Intended for tests only.
	Flush(ctx context.Context) error

	// Close releases any transport resources held by the layer.
	Close() error
}
