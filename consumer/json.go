package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

// JSONConsumer layers JSON encode/decode over WebSocketConsumer: incoming
// text frames are decoded and handed to onReceiveJSON; SendJSON encodes and
// sends a value as a text frame. A consumer receiving a binary frame or a
// frame that fails to decode returns the decode error, which propagates as
// an unhandled Run error (spec.md §4.9 leaves wire-format errors
// unhandled by design).
type JSONConsumer struct {
	*WebSocketConsumer

	onReceiveJSON func(ctx context.Context, c *JSONConsumer, content any) error
	encode        func(content any) (string, error)
	decode        func(text string) (any, error)
}

// JSONOption configures a JSONConsumer built by NewJSONConsumer.
type JSONOption func(*JSONConsumer)

// WithJSONCodec overrides the default encoding/json-based encode/decode
// functions, e.g. to swap in a schema-validating decoder.
func WithJSONCodec(encode func(content any) (string, error), decode func(text string) (any, error)) JSONOption {
	return func(c *JSONConsumer) {
		c.encode = encode
		c.decode = decode
	}
}

// WithJSONConnectHandler sets the websocket.connect callback; see
// WithConnectHandler.
func WithJSONConnectHandler(fn func(ctx context.Context, c *WebSocketConsumer) error) JSONOption {
	return func(c *JSONConsumer) { c.WebSocketConsumer.onConnect = fn }
}

// WithJSONDisconnectHandler sets the websocket.disconnect callback; see
// WithDisconnectHandler.
func WithJSONDisconnectHandler(fn func(ctx context.Context, c *WebSocketConsumer, code int) error) JSONOption {
	return func(c *JSONConsumer) { c.WebSocketConsumer.onDisconnect = fn }
}

// NewJSONConsumer builds a JSONConsumer. onReceiveJSON is called with the
// decoded payload of every incoming text frame.
func NewJSONConsumer(layer channels.Layer, groups []string, onReceiveJSON func(ctx context.Context, c *JSONConsumer, content any) error, opts ...JSONOption) *JSONConsumer {
	c := &JSONConsumer{
		onReceiveJSON: onReceiveJSON,
		encode:        defaultJSONEncode,
		decode:        defaultJSONDecode,
	}
	c.WebSocketConsumer = NewWebSocketConsumer(layer, groups, WithReceiveHandler(c.receiveFrame))

	// Options are applied after the embedded WebSocketConsumer exists,
	// since WithJSONConnectHandler/WithJSONDisconnectHandler write through
	// c.WebSocketConsumer.
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *JSONConsumer) receiveFrame(ctx context.Context, _ *WebSocketConsumer, text *string, data []byte) error {
	if text == nil {
		return fmt.Errorf("consumer: JSONConsumer received a non-text frame (%d bytes)", len(data))
	}
	content, err := c.decode(*text)
	if err != nil {
		return fmt.Errorf("consumer: decode JSON frame: %w", err)
	}
	return c.onReceiveJSON(ctx, c, content)
}

// SendJSON encodes content and sends it as a text frame, closing the
// connection afterward when closeCode is non-nil.
func (c *JSONConsumer) SendJSON(ctx context.Context, content any, closeCode *int) error {
	text, err := c.encode(content)
	if err != nil {
		return fmt.Errorf("consumer: encode JSON frame: %w", err)
	}
	if err := c.SendText(ctx, text); err != nil {
		return err
	}
	if closeCode != nil {
		return c.Close(ctx, *closeCode, "")
	}
	return nil
}

func defaultJSONEncode(content any) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func defaultJSONDecode(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}
