// Package logging configures zerolog for the orgrepos binaries and library.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off. The terminal browser uses it so log
	// lines do not tear the screen.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ValidateLevel returns an error for level names Setup would not recognize.
func ValidateLevel(level LogLevel) error {
	switch strings.ToLower(string(level)) {
	case "", "debug", "info", "warn", "warning", "error", "disabled":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

// parseLevel converts LogLevel to zerolog.Level. Unknown names map to info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: request and state-machine internals
//   - Cache lookups and conditional requests (etag, ttl)
//   - Skipped loads and retries (status, exhausted, retry_count)
//   - Stale responses discarded after a reset (generation)
//
// Info: normal operation
//   - Pages loaded (page, received, total, exhausted)
//   - Batch fetch completion
//   - Server startup/shutdown
//
// Warn: failures the user can recover from
//   - Failed page loads and retry attempts (backoff)
//   - GitHub error responses (status, error_kind)
//   - Rate limit blocks and throttling
//   - Cache errors (request continues uncached)
//
// Error: conditions requiring attention
//   - Exhausted rate limit windows
//   - Configuration and startup failures
//
// Context Fields:
//   - component: emitting package (pagination, github-client, ...)
//   - org, page, per_page: the listing being paged
//   - load_id: correlates the start and outcome of one page load
//   - endpoint, status, error_kind: GitHub request outcome
//   - remaining, reset_at: rate limit window
