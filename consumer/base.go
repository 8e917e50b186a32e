package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/huynguyengl99/fast-channels/core/channels"
	"github.com/huynguyengl99/fast-channels/core/logger"
)

// Handler processes one dispatched message. HandlerFunc lets a plain
// function satisfy it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// groupCleanupTimeout bounds the best-effort GroupDiscard calls issued when
// a consumer exits, so a wedged layer cannot hang connection teardown.
const groupCleanupTimeout = 5 * time.Second

// Consumer is the generic dispatch runtime described by spec.md §4.8. It
// races two event sources, an upstream ReceiveFunc and (when a channel
// layer is configured) the layer's own per-connection channel, and routes
// whichever event arrives to the handler registered for its dispatch type.
//
// Consumer is built once per connection via NewConsumer and then invoked
// through Run, which satisfies the Application shape.
type Consumer struct {
	Layer  channels.Layer
	Groups []string

	channelName string
	handlers    map[string]Handler
	logger      *slog.Logger
	sendFn      SendFunc
}

// ConsumerOption configures a Consumer built by NewConsumer.
type ConsumerOption func(*Consumer)

// WithGroups declares the groups this consumer's channel joins on entry and
// leaves on exit.
func WithGroups(groups ...string) ConsumerOption {
	return func(c *Consumer) { c.Groups = append(c.Groups, groups...) }
}

// WithLogger sets the logger used for best-effort cleanup failures.
func WithLogger(l *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.logger = l }
}

// NewConsumer builds a Consumer bound to layer, which may be nil for
// consumers that never join a group and never receive layer-routed
// messages (using Groups with a nil layer is a construction error surfaced
// by Run as channels.ErrLayerRequired).
func NewConsumer(layer channels.Layer, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		Layer:    layer,
		handlers: make(map[string]Handler),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers the handler invoked for messages whose "type" field equals
// dispatchType. Handlers are expected to be registered before Run starts;
// On is not safe to call concurrently with Run.
func (c *Consumer) On(dispatchType string, h Handler) error {
	if !channels.ValidDispatchType(dispatchType) {
		return fmt.Errorf("consumer: %w: %q", channels.ErrBadType, dispatchType)
	}
	c.handlers[dispatchType] = h
	return nil
}

// ChannelName returns the channel name this consumer acquired from its
// layer, or "" before Run has started or when no layer is configured. Run
// sets it only after every declared group has been joined.
func (c *Consumer) ChannelName() string { return c.channelName }

// Send delivers an outbound event to the upstream protocol server. It is
// only valid while Run is executing.
func (c *Consumer) Send(ctx context.Context, event Message) error {
	if c.sendFn == nil {
		return errors.New("consumer: Send called outside Run")
	}
	return c.sendFn(ctx, event)
}

// Run implements Application: it joins the consumer's groups, then
// dispatches events from both receive and the layer channel until a
// handler returns channels.ErrStopConsumer, an unhandled error occurs, or
// ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, scope Scope, receive ReceiveFunc, send SendFunc) error {
	if len(c.Groups) > 0 && c.Layer == nil {
		return channels.ErrLayerRequired
	}

	c.sendFn = send

	if c.Layer != nil {
		name, err := c.Layer.NewChannel(ctx, "specific")
		if err != nil {
			return fmt.Errorf("consumer: acquire channel: %w", err)
		}
		for _, group := range c.Groups {
			if err := c.Layer.GroupAdd(ctx, group, name); err != nil {
				c.channelName = name
				c.leaveGroups()
				return fmt.Errorf("consumer: join group %q: %w", group, err)
			}
		}
		c.channelName = name
	}
	defer c.leaveGroups()

	return c.dispatchLoop(ctx, receive)
}

type dispatchResult struct {
	source int // 0 = upstream receive, 1 = layer channel
	msg    Message
	err    error
}

// dispatchLoop races the upstream receive and (when a layer is configured)
// the layer's channel, feeding whichever arrives into the dispatch table.
// The two feeders run under an errgroup so that once either the loop exits
// or ctx is cancelled, both are guaranteed to unwind before dispatchLoop
// returns — mirroring the feeder/owner shutdown pattern the teacher uses
// for its worker pools (core/queue), but scoped to exactly two feeders.
func (c *Consumer) dispatchLoop(ctx context.Context, receive ReceiveFunc) error {
	feedCtx, cancelFeeds := context.WithCancel(ctx)
	defer cancelFeeds()

	g, gctx := errgroup.WithContext(feedCtx)
	results := make(chan dispatchResult)
	upstreamNext := make(chan struct{}, 1)
	layerNext := make(chan struct{}, 1)

	g.Go(func() error {
		for {
			select {
			case <-upstreamNext:
			case <-gctx.Done():
				return nil
			}
			msg, err := receive(gctx)
			select {
			case results <- dispatchResult{source: 0, msg: msg, err: err}:
			case <-gctx.Done():
				return nil
			}
		}
	})

	if c.Layer != nil {
		g.Go(func() error {
			for {
				select {
				case <-layerNext:
				case <-gctx.Done():
					return nil
				}
				msg, err := c.Layer.Receive(gctx, c.channelName)
				select {
				case results <- dispatchResult{source: 1, msg: msg, err: err}:
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	upstreamNext <- struct{}{}
	if c.Layer != nil {
		layerNext <- struct{}{}
	}

	loopErr := func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case r := <-results:
				if r.err != nil {
					return r.err
				}
				err := c.dispatch(ctx, r.msg)
				if errors.Is(err, channels.ErrStopConsumer) {
					return nil
				}
				if err != nil {
					return err
				}
				switch r.source {
				case 0:
					upstreamNext <- struct{}{}
				case 1:
					layerNext <- struct{}{}
				}
			}
		}
	}()

	cancelFeeds()
	_ = g.Wait()
	return loopErr
}

func (c *Consumer) dispatch(ctx context.Context, msg Message) error {
	typeName := msg.Type()
	if !channels.ValidDispatchType(typeName) {
		return fmt.Errorf("consumer: %w: %q", channels.ErrBadType, typeName)
	}
	h, ok := c.handlers[typeName]
	if !ok {
		return fmt.Errorf("consumer: %w: %q", channels.ErrNoHandler, typeName)
	}
	return h.Handle(ctx, msg)
}

func (c *Consumer) leaveGroups() {
	if c.Layer == nil || len(c.Groups) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), groupCleanupTimeout)
	defer cancel()
	for _, group := range c.Groups {
		if err := c.Layer.GroupDiscard(ctx, group, c.channelName); err != nil {
			c.logger.Warn("leave group failed", logger.Group_(group), logger.Channel(c.channelName), logger.Error(err))
		}
	}
}
