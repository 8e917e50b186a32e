package channels_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

func TestInMemoryLayer_SendReceiveRoundTrip(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	ctx := context.Background()
	name, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)
	assert.True(t, strings.Contains(name, ".inmemory!"))

	require.NoError(t, layer.Send(ctx, name, channels.Message{"type": "chat.message", "text": "hi"}))

	msg, err := layer.Receive(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "hi", msg["text"])
}

func TestInMemoryLayer_ReceiveBlocksUntilSend(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	name, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	result := make(chan channels.Message, 1)
	go func() {
		msg, err := layer.Receive(ctx, name)
		require.NoError(t, err)
		result <- msg
	}()

	time.Sleep(20 * time.Millisecond) // let Receive block first
	require.NoError(t, layer.Send(ctx, name, channels.Message{"type": "chat.message", "text": "late"}))

	select {
	case msg := <-result:
		assert.Equal(t, "late", msg["text"])
	case <-time.After(time.Second):
		t.Fatal("Receive never unblocked")
	}
}

func TestInMemoryLayer_CapacityEnforced(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer(channels.WithInMemoryCapacity(2))
	defer layer.Close()

	ctx := context.Background()
	name, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.Send(ctx, name, channels.Message{"type": "chat.message", "n": 1}))
	require.NoError(t, layer.Send(ctx, name, channels.Message{"type": "chat.message", "n": 2}))

	err = layer.Send(ctx, name, channels.Message{"type": "chat.message", "n": 3})
	assert.ErrorIs(t, err, channels.ErrChannelFull)
}

func TestInMemoryLayer_GroupSendSkipsFullMembersButDeliversOthers(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer(channels.WithInMemoryCapacity(1))
	defer layer.Close()

	ctx := context.Background()
	full, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)
	ok, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.GroupAdd(ctx, "room.1", full))
	require.NoError(t, layer.GroupAdd(ctx, "room.1", ok))

	// Saturate "full" before the group send.
	require.NoError(t, layer.Send(ctx, full, channels.Message{"type": "chat.message", "n": 0}))

	require.NoError(t, layer.GroupSend(ctx, "room.1", channels.Message{"type": "chat.message", "text": "fanout"}))

	msg, err := layer.Receive(ctx, ok)
	require.NoError(t, err)
	assert.Equal(t, "fanout", msg["text"])
}

func TestInMemoryLayer_GroupDiscardStopsDelivery(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	ctx := context.Background()
	name, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)

	require.NoError(t, layer.GroupAdd(ctx, "room.1", name))
	require.NoError(t, layer.GroupDiscard(ctx, "room.1", name))
	require.NoError(t, layer.GroupSend(ctx, "room.1", channels.Message{"type": "chat.message", "text": "missed"}))

	recvCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = layer.Receive(recvCtx, name)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInMemoryLayer_Flush(t *testing.T) {
	t.Parallel()

	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	ctx := context.Background()
	name, err := layer.NewChannel(ctx, "specific")
	require.NoError(t, err)
	require.NoError(t, layer.Send(ctx, name, channels.Message{"type": "chat.message"}))

	require.NoError(t, layer.Flush(ctx))

	recvCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = layer.Receive(recvCtx, name)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
