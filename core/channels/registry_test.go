package channels_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/channels"
)

func TestRegistry_RegisterGetUnregister(t *testing.T) {
	t.Parallel()

	reg := channels.NewRegistry()
	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	reg.Register("default", layer)
	assert.True(t, reg.Has("default"))

	got, err := reg.Get("default")
	require.NoError(t, err)
	assert.Same(t, layer, got)

	reg.Unregister("default")
	assert.False(t, reg.Has("default"))

	_, err = reg.Get("default")
	assert.ErrorIs(t, err, channels.ErrNoSuchLayer)
}

func TestRegistry_AliasesAndClear(t *testing.T) {
	t.Parallel()

	reg := channels.NewRegistry()
	a := channels.NewInMemoryLayer()
	b := channels.NewInMemoryLayer()
	defer a.Close()
	defer b.Close()

	reg.Register("a", a)
	reg.Register("b", b)

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Aliases())

	reg.Clear()
	assert.Empty(t, reg.Aliases())
}

func TestPackageLevelRegistryHelpers(t *testing.T) {
	layer := channels.NewInMemoryLayer()
	defer layer.Close()

	channels.RegisterChannelLayer("pkg-level-test", layer)
	defer channels.UnregisterChannelLayer("pkg-level-test")

	assert.True(t, channels.HasChannelLayer("pkg-level-test"))

	got, err := channels.GetChannelLayer("pkg-level-test")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, got.Send(ctx, "specific!x", channels.Message{"type": "chat.message"}))
}
