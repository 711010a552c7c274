// Package config is the engine's typed configuration, loaded from
// built-in defaults overridden by environment variables via koanf
// (the teacher's own configuration library).
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/flowforge/dataflow/pkg/logger"
)

// LogConfig is the logging section of Config.
type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Config is the engine's top-level runtime configuration.
type Config struct {
	WorkflowsDir  string    `koanf:"workflows_dir"`
	TraceEnabled  bool      `koanf:"trace_enabled"`
	ReloadEnabled bool      `koanf:"reload_enabled"`
	Log           LogConfig `koanf:"log"`
}

// Default returns the engine's built-in configuration defaults.
func Default() *Config {
	return &Config{
		WorkflowsDir:  "./workflows",
		TraceEnabled:  false,
		ReloadEnabled: false,
		Log:           LogConfig{Level: string(logger.InfoLevel), JSON: false},
	}
}

const envPrefix = "DATAFLOW_"

// Load builds a Config from Default(), overridden by any DATAFLOW_*
// environment variable. A double underscore descends into a nested
// section (e.g. DATAFLOW_LOG__LEVEL maps to Log.Level); a single
// underscore is a literal word separator (e.g. DATAFLOW_WORKFLOWS_DIR
// maps to WorkflowsDir).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default configuration: %w", err)
	}

	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

type contextKey string

const ctxKey contextKey = "config"

// ContextWithConfig returns a child context carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey, cfg)
}

// FromContext returns the Config stored in ctx, or Default() if ctx
// carries none.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey).(*Config); ok && cfg != nil {
		return cfg
	}
	return Default()
}
