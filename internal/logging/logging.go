// Package logging configures the process-wide slog logger.
//
// Level and format come from flags first and can be overridden with the
// ROLLCALL_LOG_LEVEL and ROLLCALL_LOG_FORMAT environment variables.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLogLevel  = "ROLLCALL_LOG_LEVEL"
	EnvLogFormat = "ROLLCALL_LOG_FORMAT"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Profile selects the defaults before env overrides are applied.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options configures Setup.
type Options struct {
	Profile Profile

	// Verbose lowers the level to debug.
	Verbose bool

	// Level is a level name ("debug", "info", "warn", "error", "off").
	// Empty keeps the profile default.
	Level string

	// Format is FormatText or FormatJSON. Empty means text.
	Format string

	// Writer receives log output. Defaults to stderr, or io.Discard for ProfileTest.
	Writer io.Writer
}

type config struct {
	level    slog.Level
	disabled bool
	format   string
	writer   io.Writer
}

// New builds a logger from opts without touching the slog default.
func New(opts Options) *slog.Logger {
	cfg := defaultConfig(opts)
	applyEnvOverrides(&cfg)

	if cfg.disabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level}
	if cfg.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(cfg.writer, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(cfg.writer, handlerOpts))
}

// Setup builds a logger from opts and installs it as the slog default.
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig(opts Options) config {
	cfg := config{
		level:  slog.LevelInfo,
		format: FormatText,
		writer: opts.Writer,
	}

	if opts.Profile == ProfileTest {
		cfg.level = slog.LevelDebug
		if cfg.writer == nil {
			cfg.writer = io.Discard
		}
	}
	if cfg.writer == nil {
		cfg.writer = os.Stderr
	}

	if opts.Verbose {
		cfg.level = slog.LevelDebug
	}
	if lvl, disabled, ok := parseLevel(opts.Level); ok {
		cfg.level, cfg.disabled = lvl, disabled
	}
	if f, ok := parseFormat(opts.Format); ok {
		cfg.format = f
	}
	return cfg
}

func applyEnvOverrides(cfg *config) {
	if lvl, disabled, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.level, cfg.disabled = lvl, disabled
	}
	if f, ok := parseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.format = f
	}
}

// ValidLevel reports whether raw names a level New understands. Empty is valid.
func ValidLevel(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, _, ok := parseLevel(raw)
	return ok
}

func parseLevel(raw string) (level slog.Level, disabled bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace":
		return slog.LevelDebug, false, true
	case "info":
		return slog.LevelInfo, false, true
	case "warn", "warning":
		return slog.LevelWarn, false, true
	case "error":
		return slog.LevelError, false, true
	case "off", "none", "disabled":
		return slog.LevelInfo, true, true
	default:
		return slog.LevelInfo, false, false
	}
}

func parseFormat(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case FormatText:
		return FormatText, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return "", false
	}
}
