package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{name: "json stdout", cfg: config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text stderr", cfg: config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if logger := New(tt.cfg, "1.0.0"); logger == nil {
				t.Fatal("New() returned nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		if result := parseLevel(tt.input); result != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestNewWithWriter_JSONDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)

	logger.Component("ds18x").Info("sensor updated", "address", "28FF4A1B02160348")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	want := map[string]string{
		"service":   ServiceName,
		"version":   "test",
		"component": "ds18x",
		"address":   "28FF4A1B02160348",
		"msg":       "sensor updated",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %q", k, entry[k], v)
		}
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "test", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn entry missing")
	}
}

func TestLogger_With(t *testing.T) {
	logger := Default()
	child := logger.With("component", "mqtt")

	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() returned the parent logger")
	}
}

func TestLogger_SetLevelSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, "test", &buf)
	child := logger.Component("onewire")

	child.Debug("before")
	if got := logger.SetLevel("debug"); got != slog.LevelDebug {
		t.Errorf("SetLevel() = %v, want debug", got)
	}
	child.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("debug entry written at info level")
	}
	if !strings.Contains(out, "after") {
		t.Error("child did not pick up the parent's new level")
	}
}

func TestLogger_ToggleDebug(t *testing.T) {
	tests := []struct {
		configured string
		first      slog.Level
		second     slog.Level
	}{
		{configured: "warn", first: slog.LevelDebug, second: slog.LevelWarn},
		{configured: "info", first: slog.LevelDebug, second: slog.LevelInfo},
		{configured: "debug", first: slog.LevelDebug, second: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.configured, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(config.LoggingConfig{Level: tt.configured}, "test", &buf)

			if first := logger.ToggleDebug(); first != tt.first {
				t.Errorf("first toggle = %v, want %v", first, tt.first)
			}
			if second := logger.ToggleDebug(); second != tt.second {
				t.Errorf("second toggle = %v, want %v", second, tt.second)
			}
		})
	}
}
