package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Run("Should provide sensible built-in defaults", func(t *testing.T) {
		cfg := Default()

		assert.Equal(t, "./workflows", cfg.WorkflowsDir)
		assert.False(t, cfg.TraceEnabled)
		assert.False(t, cfg.ReloadEnabled)
		assert.Equal(t, "info", cfg.Log.Level)
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should load defaults when no environment overrides are set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("Should override a flat field from its environment variable", func(t *testing.T) {
		t.Setenv("DATAFLOW_WORKFLOWS_DIR", "/etc/dataflow/workflows")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "/etc/dataflow/workflows", cfg.WorkflowsDir)
	})

	t.Run("Should override a nested field using a double underscore", func(t *testing.T) {
		t.Setenv("DATAFLOW_LOG__LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
	})
}

func TestContextRoundTrip(t *testing.T) {
	t.Run("Should return the stored config from context", func(t *testing.T) {
		cfg := &Config{WorkflowsDir: "/tmp/workflows"}
		ctx := ContextWithConfig(context.Background(), cfg)
		assert.Equal(t, cfg, FromContext(ctx))
	})

	t.Run("Should fall back to defaults when context carries none", func(t *testing.T) {
		assert.Equal(t, Default(), FromContext(context.Background()))
	})
}
