package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/alertkit/pkg/config"
)

type testConfig struct {
	Capacity int           `env:"TEST_QUEUE_CAPACITY" envDefault:"1000"`
	Tick     time.Duration `env:"TEST_TICK" envDefault:"1s"`
	Name     string        `env:"TEST_NAME"`
}

type requiredConfig struct {
	Token string `env:"TEST_REQUIRED_TOKEN,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 1000, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.Tick)
	assert.Empty(t, cfg.Name)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_QUEUE_CAPACITY", "50")
	t.Setenv("TEST_TICK", "250ms")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 50, cfg.Capacity)
	assert.Equal(t, 250*time.Millisecond, cfg.Tick)
}

func TestLoad_RequiredMissing(t *testing.T) {
	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[testConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	var cfg requiredConfig
	assert.Panics(t, func() { config.MustLoad(&cfg) })
}
