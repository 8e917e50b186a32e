package consumer

import (
	"context"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

// Message is the event/message envelope shared with the channels package: a
// string-keyed map carrying at least a "type" key.
type Message = channels.Message

// Scope carries the connection-scoped metadata an Application receives on
// entry, analogous to an ASGI scope (path, headers, query string, and so
// on). Consumers treat it as read-only context about the connection they
// are serving.
type Scope map[string]any

// ReceiveFunc pulls the next event from the upstream protocol server (the
// WebSocket/HTTP layer embedding the consumer). It blocks until an event is
// available or ctx is cancelled.
type ReceiveFunc func(ctx context.Context) (Message, error)

// SendFunc delivers an outbound event to the upstream protocol server.
type SendFunc func(ctx context.Context, event Message) error

// Application is the shape every consumer exposes to its embedding server:
// given a scope and the two halves of the event stream, run until the
// connection ends and return any error that was not handled internally.
type Application func(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error
