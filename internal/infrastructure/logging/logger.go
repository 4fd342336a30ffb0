package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "graylogic-onewire"

// Logger is the bridge's slog.Logger.
//
// A Logger and every child made with With or Component share one level, so
// raising it to debug on a running bridge affects all components at once.
// It satisfies the small Logger interfaces of the onewire, timer,
// homeassistant, ds18x and mqtt packages.
type Logger struct {
	*slog.Logger
	level *levelState
}

// levelState is the shared, adjustable level plus the configured baseline
// that ToggleDebug returns to.
type levelState struct {
	current slog.LevelVar
	base    slog.Level
}

// New creates a Logger writing to stdout, or stderr when cfg.Output says so.
func New(cfg config.LoggingConfig, version string) *Logger {
	var w io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(cfg, version, w)
}

// NewWithWriter creates a Logger writing to w, ignoring cfg.Output.
// Entries are JSON unless cfg.Format is "text" and always carry the service
// name and version.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	state := &levelState{base: parseLevel(cfg.Level)}
	state.current.Set(state.base)

	opts := &slog.HandlerOptions{Level: &state.current}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	base := slog.New(h).With("service", ServiceName, "version", version)
	return &Logger{Logger: base, level: state}
}

// parseLevel maps a configured level name onto slog, case-insensitively.
// Anything unrecognised means info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component returns a child logger tagged component=name, e.g. "ds18x".
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Level returns the level currently in force.
func (l *Logger) Level() slog.Level {
	return l.level.current.Level()
}

// SetLevel changes the level of l and every logger sharing it.
func (l *Logger) SetLevel(name string) slog.Level {
	lvl := parseLevel(name)
	l.level.current.Set(lvl)
	return lvl
}

// ToggleDebug switches between debug and the configured level and returns
// the level now in force.
func (l *Logger) ToggleDebug() slog.Level {
	next := slog.LevelDebug
	if l.Level() == slog.LevelDebug {
		next = l.level.base
	}
	l.level.current.Set(next)
	return next
}

// Default is the logger used before configuration is loaded: JSON on
// stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}
