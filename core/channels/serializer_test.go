package channels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

func TestJSONSerializer_RoundTrip(t *testing.T) {
	t.Parallel()

	msg := channels.Message{"type": "chat.message", "text": "hi"}
	body, err := channels.JSONSerializer.Serialize(msg)
	require.NoError(t, err)

	got, err := channels.JSONSerializer.Deserialize(body)
	require.NoError(t, err)
	assert.Equal(t, "chat.message", got.Type())
	assert.Equal(t, "hi", got["text"])
}

func TestMsgpackSerializer_RoundTrip(t *testing.T) {
	t.Parallel()

	msg := channels.Message{"type": "chat.message", "text": "hi"}
	body, err := channels.MsgpackSerializer.Serialize(msg)
	require.NoError(t, err)

	got, err := channels.MsgpackSerializer.Deserialize(body)
	require.NoError(t, err)
	assert.Equal(t, "chat.message", got.Type())
	assert.Equal(t, "hi", got["text"])
}

func TestSerializerRegistry_GetKnownAndUnknown(t *testing.T) {
	t.Parallel()

	reg := channels.NewSerializerRegistry()

	json, err := reg.Get("json")
	require.NoError(t, err)
	assert.Same(t, channels.JSONSerializer, json)

	_, err = reg.Get("protobuf")
	assert.Error(t, err)
}

func TestEncryptedSerializer_RoundTripAndKeyRotation(t *testing.T) {
	t.Parallel()

	msg := channels.Message{"type": "chat.message", "secret": "value"}

	// Encrypted with the oldest key in a two-key rotation.
	encOld, err := channels.NewEncryptedSerializer(channels.JSONSerializer, []string{"old-key"})
	require.NoError(t, err)
	body, err := encOld.Serialize(msg)
	require.NoError(t, err)

	// A reader configured with both keys (new first) can still decrypt it.
	encBoth, err := channels.NewEncryptedSerializer(channels.JSONSerializer, []string{"new-key", "old-key"})
	require.NoError(t, err)
	got, err := encBoth.Deserialize(body)
	require.NoError(t, err)
	assert.Equal(t, "value", got["secret"])

	// A reader with only the new key cannot.
	encNewOnly, err := channels.NewEncryptedSerializer(channels.JSONSerializer, []string{"new-key"})
	require.NoError(t, err)
	_, err = encNewOnly.Deserialize(body)
	assert.Error(t, err)
}

func TestEncryptedSerializer_RejectsEmptyKey(t *testing.T) {
	t.Parallel()

	_, err := channels.NewEncryptedSerializer(channels.JSONSerializer, []string{""})
	assert.ErrorIs(t, err, channels.ErrEmptyEncryptionKey)
}
