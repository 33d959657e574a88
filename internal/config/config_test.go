package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should return sane defaults", func(t *testing.T) {
		cfg := Default()
		require.NotNil(t, cfg)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10000, cfg.Engine.MaxSteps)
		assert.Equal(t, time.Hour, cfg.Stream.MaxConnection)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
	})
}

func TestManager_LoadAndGet(t *testing.T) {
	t.Run("Should load defaults and serve them via Get", func(t *testing.T) {
		m := NewManager()
		cfg, err := m.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, cfg, m.Get())
	})

	t.Run("Should override defaults from the environment", func(t *testing.T) {
		t.Setenv("WORKFLOWS_ENGINE_MAX_STEPS", "42")
		m := NewManager()
		cfg, err := m.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, cfg.Engine.MaxSteps)
	})
}

func TestManager_OnChange(t *testing.T) {
	t.Run("Should invoke listeners after a successful load", func(t *testing.T) {
		m := NewManager()
		var got *Config
		m.OnChange(func(c *Config) { got = c })
		cfg, err := m.Load(context.Background())
		require.NoError(t, err)
		assert.Same(t, cfg, got)
	})
}
