package channels

import "errors"

// Domain-specific channel-layer errors, checked with errors.Is(), following
// the same pattern the teacher uses for its own domain packages
// (core/event/errors.go, integration/database/redis/errors.go).
var (
	// ErrInvalidName is returned when a channel, group, or dispatch-type
	// name fails validation.
	ErrInvalidName = errors.New("channels: invalid name")

	// ErrNoSuchLayer is returned by the registry when Get is called with
	// an alias that was never registered.
	ErrNoSuchLayer = errors.New("channels: no such layer registered")

	// ErrChannelFull is returned by Send when a channel's inbox is at
	// capacity. GroupSend swallows this error per-recipient rather than
	// propagating it.
	ErrChannelFull = errors.New("channels: channel is full")

	// ErrNoHandler is returned by the consumer runtime when an inbound
	// message's dispatch type has no corresponding method.
	ErrNoHandler = errors.New("channels: no handler for message type")

	// ErrBadType is returned when a message's "type" field fails the
	// dispatch-type naming rules (ASCII, no leading/trailing dot, "."
	// used only as a separator).
	ErrBadType = errors.New("channels: invalid dispatch type")

	// ErrLayerRequired is returned when a consumer declares non-empty
	// groups but was constructed without a channel layer.
	ErrLayerRequired = errors.New("channels: channel layer required for group membership")

	// ErrEmptyEncryptionKey is returned when a configured symmetric
	// encryption key is the empty string.
	ErrEmptyEncryptionKey = errors.New("channels: encryption keys must not be empty")
)

// Control-flow signals raised by consumer handlers. These are not failures;
// the consumer runtime treats them specially (spec.md §7).
var (
	// ErrDenyConnection, raised from Connect, rejects the connection.
	ErrDenyConnection = errors.New("channels: connection denied")

	// ErrAcceptConnection, raised from Connect, explicitly accepts the
	// connection (used when a subclass wants to short-circuit further
	// connect logic).
	ErrAcceptConnection = errors.New("channels: connection accepted")

	// ErrStopConsumer ends the consumer's dispatch loop cleanly.
	ErrStopConsumer = errors.New("channels: stop consumer")
)
