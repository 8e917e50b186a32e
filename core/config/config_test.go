package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huynguyengl99/fast-channels/core/config"
)

type sampleConfig struct {
	Prefix string `env:"FASTCHANNELS_TEST_PREFIX" envDefault:"asgi"`
	Count  int    `env:"FASTCHANNELS_TEST_COUNT" envDefault:"3"`
}

func TestLoad_UsesDefaultsWhenUnset(t *testing.T) {
	config.Reset()
	os.Unsetenv("FASTCHANNELS_TEST_PREFIX")
	os.Unsetenv("FASTCHANNELS_TEST_COUNT")

	cfg, err := config.Load[sampleConfig]()
	require.NoError(t, err)
	assert.Equal(t, "asgi", cfg.Prefix)
	assert.Equal(t, 3, cfg.Count)
}

func TestLoad_ReadsEnvironmentAndCaches(t *testing.T) {
	config.Reset()
	t.Setenv("FASTCHANNELS_TEST_PREFIX", "custom")
	t.Setenv("FASTCHANNELS_TEST_COUNT", "7")

	cfg, err := config.Load[sampleConfig]()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Prefix)
	assert.Equal(t, 7, cfg.Count)

	// Changing the environment after the first Load must not affect the
	// cached value.
	t.Setenv("FASTCHANNELS_TEST_PREFIX", "changed")
	cfg2, err := config.Load[sampleConfig]()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg2.Prefix)
	assert.Same(t, cfg, cfg2)
}

func TestMustLoad_PanicsOnMalformedValue(t *testing.T) {
	config.Reset()
	t.Setenv("FASTCHANNELS_TEST_COUNT", "not-an-int")

	assert.Panics(t, func() {
		config.MustLoad[sampleConfig]()
	})
}
