package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/channels"
	channelredis "github.com/huynguyengl99/fast-channels/integration/channellayer/redis"
)

func newTestQueueLayer(t *testing.T, opts ...channelredis.QueueOption) (*channelredis.QueueLayer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := channelredis.Config{
		Hosts:       []string{"redis://" + mr.Addr()},
		Prefix:      "test",
		Capacity:    3,
		DialTimeout: 2 * time.Second,
	}
	layer, err := channelredis.NewQueueLayer(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = layer.Close() })
	return layer, mr
}

func TestQueueLayer_SendReceiveRoundTrip(t *testing.T) {
	t.Parallel()

	layer, _ := newTestQueueLayer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	channel, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.Send(ctx, channel, channels.Message{"type": "chat.message", "text": "hi"}))

	msg, err := layer.Receive(ctx, channel)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg["text"])
}

func TestQueueLayer_CapacityEnforced(t *testing.T) {
	t.Parallel()

	layer, _ := newTestQueueLayer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	channel, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, layer.Send(ctx, channel, channels.Message{"type": "chat.message", "n": i}))
	}

	err = layer.Send(ctx, channel, channels.Message{"type": "chat.message", "n": 99})
	assert.ErrorIs(t, err, channels.ErrChannelFull)
}

func TestQueueLayer_GroupSendFansOutToMembers(t *testing.T) {
	t.Parallel()

	layer, _ := newTestQueueLayer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)
	b, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.GroupAdd(ctx, "room.1", a))
	require.NoError(t, layer.GroupAdd(ctx, "room.1", b))

	require.NoError(t, layer.GroupSend(ctx, "room.1", channels.Message{"type": "chat.message", "text": "hello room"}))

	msgA, err := layer.Receive(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "hello room", msgA["text"])

	msgB, err := layer.Receive(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "hello room", msgB["text"])
}

func TestQueueLayer_GroupDiscardStopsFutureDelivery(t *testing.T) {
	t.Parallel()

	layer, _ := newTestQueueLayer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.GroupAdd(ctx, "room.1", a))
	require.NoError(t, layer.GroupDiscard(ctx, "room.1", a))
	require.NoError(t, layer.GroupSend(ctx, "room.1", channels.Message{"type": "chat.message", "text": "missed"}))

	recvCtx, recvCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer recvCancel()
	_, err = layer.Receive(recvCtx, a)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueLayer_ReceiveCancelledByContext(t *testing.T) {
	t.Parallel()

	layer, _ := newTestQueueLayer(t)

	channel, err := layer.NewChannel(context.Background(), "specific")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = layer.Receive(ctx, channel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
