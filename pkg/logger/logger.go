// Package logger is the engine's structured logging facade, backed by
// charmbracelet/log. It is deliberately small: a handful of leveled
// methods plus a context carrier, mirrored on the teacher's own
// pkg/logger package.
package logger

import (
	"context"
	"flag"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is the engine's own level vocabulary, translated to
// charmbracelet/log's levels by ToCharmlogLevel.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel converts a LogLevel to the equivalent charmbracelet/log
// level. An unrecognized level defaults to InfoLevel.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Config configures a Logger.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the engine's production default: info level,
// text format, to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig returns a Config suitable for tests: logging disabled,
// output discarded.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go
// test` (the standard -test.v flag is always registered in test
// binaries).
func IsTestEnvironment() bool {
	return flag.Lookup("test.v") != nil
}

// Logger is the leveled logging contract used throughout the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger constructs a Logger from config. A nil config defaults to
// TestConfig() under `go test` and DefaultConfig() otherwise.
func NewLogger(config *Config) Logger {
	if config == nil {
		if IsTestEnvironment() {
			config = TestConfig()
		} else {
			config = DefaultConfig()
		}
	}

	l := charmlog.NewWithOptions(config.Output, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      config.TimeFormat,
		ReportCaller:    config.AddSource,
	})
	l.SetLevel(config.Level.ToCharmlogLevel())
	if config.JSON {
		l.SetFormatter(charmlog.JSONFormatter)
	}
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, args ...any) { c.l.Debug(msg, args...) }
func (c *charmLogger) Info(msg string, args ...any)  { c.l.Info(msg, args...) }
func (c *charmLogger) Warn(msg string, args ...any)  { c.l.Warn(msg, args...) }
func (c *charmLogger) Error(msg string, args ...any) { c.l.Error(msg, args...) }

func (c *charmLogger) With(args ...any) Logger {
	return &charmLogger{l: c.l.With(args...)}
}

type contextKey string

// LoggerCtxKey is the context key a Logger is stored under.
const LoggerCtxKey contextKey = "logger"

// ContextWithLogger returns a child context carrying logger.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, l)
}

// FromContext returns the Logger stored in ctx, or a freshly
// constructed default Logger if ctx carries none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
		return l
	}
	return NewLogger(nil)
}
