// Package log provides JSON-lines structured logging for suggestd.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
		Debug:  false,
	}
}

// New creates a new JSON-lines structured logger:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"INFO","msg":"daemon started","pid":12345}
//
// Log levels:
//   - debug: Verbose per-query tracing (enabled via SUGGESTD_DEBUG=1)
//   - info: Startup, shutdown, session lifecycle
//   - warn: Non-fatal issues (source failures, dropped refreshes)
//   - error: Fatal issues requiring attention
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Rename "time" to "ts" to keep log lines compact
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(output, opts)
	return slog.New(handler)
}

// NewFromEnv creates a logger configured from environment variables.
// SUGGESTD_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("SUGGESTD_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// Nop returns a logger that discards everything. Used by tests and by
// library callers that do not care about engine logs.
func Nop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
