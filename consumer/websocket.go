package consumer

import (
	"context"
	"errors"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

// WebSocketConsumer specializes Consumer for the three WebSocket dispatch
// types (spec.md §4.8): websocket.connect, websocket.receive and
// websocket.disconnect. Callers customize behavior with WithConnectHandler,
// WithReceiveHandler and WithDisconnectHandler; unset handlers fall back to
// accepting every connection and ignoring incoming frames, matching the
// teacher's permissive defaults elsewhere in core/response.
type WebSocketConsumer struct {
	*Consumer

	onConnect    func(ctx context.Context, c *WebSocketConsumer) error
	onReceive    func(ctx context.Context, c *WebSocketConsumer, text *string, data []byte) error
	onDisconnect func(ctx context.Context, c *WebSocketConsumer, code int) error
}

// WebSocketOption configures a WebSocketConsumer built by NewWebSocketConsumer.
type WebSocketOption func(*WebSocketConsumer)

// WithConnectHandler overrides the default accept-everything behavior run
// on websocket.connect. Returning channels.ErrDenyConnection closes the
// socket instead of accepting it and stops the consumer.
func WithConnectHandler(fn func(ctx context.Context, c *WebSocketConsumer) error) WebSocketOption {
	return func(c *WebSocketConsumer) { c.onConnect = fn }
}

// WithReceiveHandler sets the callback invoked for each websocket.receive
// event. Exactly one of text/data is non-nil, mirroring a text or binary
// frame.
func WithReceiveHandler(fn func(ctx context.Context, c *WebSocketConsumer, text *string, data []byte) error) WebSocketOption {
	return func(c *WebSocketConsumer) { c.onReceive = fn }
}

// WithDisconnectHandler sets the callback invoked on websocket.disconnect,
// before the consumer leaves its groups and stops.
func WithDisconnectHandler(fn func(ctx context.Context, c *WebSocketConsumer, code int) error) WebSocketOption {
	return func(c *WebSocketConsumer) { c.onDisconnect = fn }
}

// WithConsumerOptions threads generic Consumer options (WithLogger and the
// like) through to the embedded Consumer.
func WithConsumerOptions(opts ...ConsumerOption) WebSocketOption {
	return func(c *WebSocketConsumer) {
		for _, opt := range opts {
			opt(c.Consumer)
		}
	}
}

// NewWebSocketConsumer builds a WebSocketConsumer that joins groups on
// connect and leaves them on disconnect or error.
func NewWebSocketConsumer(layer channels.Layer, groups []string, opts ...WebSocketOption) *WebSocketConsumer {
	c := &WebSocketConsumer{
		Consumer: NewConsumer(layer, WithGroups(groups...)),
	}
	for _, opt := range opts {
		opt(c)
	}

	_ = c.On("websocket.connect", HandlerFunc(c.handleConnect))
	_ = c.On("websocket.receive", HandlerFunc(c.handleReceive))
	_ = c.On("websocket.disconnect", HandlerFunc(c.handleDisconnect))
	return c
}

func (c *WebSocketConsumer) handleConnect(ctx context.Context, _ Message) error {
	if c.onConnect == nil {
		return c.Accept(ctx, "")
	}

	err := c.onConnect(ctx, c)
	switch {
	case errors.Is(err, channels.ErrDenyConnection):
		if err := c.Close(ctx, 0, ""); err != nil {
			return err
		}
		return channels.ErrStopConsumer
	case errors.Is(err, channels.ErrAcceptConnection):
		return c.Accept(ctx, "")
	default:
		return err
	}
}

func (c *WebSocketConsumer) handleReceive(ctx context.Context, msg Message) error {
	if c.onReceive == nil {
		return nil
	}

	var text *string
	if t, ok := msg["text"].(string); ok {
		text = &t
	}
	var data []byte
	if b, ok := msg["bytes"].([]byte); ok {
		data = b
	}
	return c.onReceive(ctx, c, text, data)
}

func (c *WebSocketConsumer) handleDisconnect(ctx context.Context, msg Message) error {
	code, _ := msg["code"].(int)
	if c.onDisconnect != nil {
		if err := c.onDisconnect(ctx, c, code); err != nil {
			return err
		}
	}
	return channels.ErrStopConsumer
}

// Accept sends websocket.accept, optionally negotiating subprotocol.
func (c *WebSocketConsumer) Accept(ctx context.Context, subprotocol string) error {
	event := Message{"type": "websocket.accept"}
	if subprotocol != "" {
		event["subprotocol"] = subprotocol
	}
	return c.Send(ctx, event)
}

// SendText sends a websocket.send event carrying a text frame.
func (c *WebSocketConsumer) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, Message{"type": "websocket.send", "text": text})
}

// SendBytes sends a websocket.send event carrying a binary frame.
func (c *WebSocketConsumer) SendBytes(ctx context.Context, data []byte) error {
	return c.Send(ctx, Message{"type": "websocket.send", "bytes": data})
}

// Close sends websocket.close. A zero code defaults to 1000 (normal
// closure), matching the default the teacher's WebSocket response writer
// uses when callers don't specify one.
func (c *WebSocketConsumer) Close(ctx context.Context, code int, reason string) error {
	if code == 0 {
		code = 1000
	}
	event := Message{"type": "websocket.close", "code": code}
	if reason != "" {
		event["reason"] = reason
	}
	return c.Send(ctx, event)
}
