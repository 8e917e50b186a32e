package channels_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

func TestValidChannelName(t *testing.T) {
	t.Parallel()

	assert.True(t, channels.ValidChannelName("chat", false))
	assert.True(t, channels.ValidChannelName("specific!abc123", true))
	assert.False(t, channels.ValidChannelName("has a space", false))
	assert.False(t, channels.ValidChannelName("", false))
	assert.False(t, channels.ValidChannelName(strings.Repeat("a", 101), false))
	assert.False(t, channels.ValidChannelName("no-bang", true))
}

func TestRequireValidChannelName_RejectsBareBangForReceive(t *testing.T) {
	t.Parallel()

	require.NoError(t, channels.RequireValidChannelName("specific!abc123", true))
	err := channels.RequireValidChannelName("specific!", true)
	assert.ErrorIs(t, err, channels.ErrInvalidName)
}

func TestValidGroupName(t *testing.T) {
	t.Parallel()

	assert.True(t, channels.ValidGroupName("room.1"))
	assert.False(t, channels.ValidGroupName("room!1"))
	assert.False(t, channels.ValidGroupName(""))
}

func TestNewChannelName_UniqueAndPrefixed(t *testing.T) {
	t.Parallel()

	a, err := channels.NewChannelName("specific!")
	require.NoError(t, err)
	b, err := channels.NewChannelName("specific!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "specific!"))
	assert.NotEqual(t, a, b)
}

func TestNonLocalName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc123", channels.NonLocalName("specific!abc123"))
	assert.Equal(t, "chat", channels.NonLocalName("chat"))
}

func TestValidDispatchType(t *testing.T) {
	t.Parallel()

	assert.True(t, channels.ValidDispatchType("chat.message"))
	assert.True(t, channels.ValidDispatchType("websocket.connect"))
	assert.False(t, channels.ValidDispatchType(".leading"))
	assert.False(t, channels.ValidDispatchType("trailing."))
	assert.False(t, channels.ValidDispatchType(""))
}

func TestMethodNameForType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "chat_message", channels.MethodNameForType("chat.message"))
	assert.Equal(t, "websocket_connect", channels.MethodNameForType("websocket.connect"))
}
