package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: format, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { SetLevel("info") })
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (log %q)", err, buf.String())
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(Logger)
		level string
	}{
		{"debug", func(l Logger) { l.Debug("m") }, "DEBUG"},
		{"info", func(l Logger) { l.Info("m") }, "INFO"},
		{"warn", func(l Logger) { l.Warn("m") }, "WARN"},
		{"error", func(l Logger) { l.Error("m") }, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferLogger(t, "debug", "json")
			tt.log(l)
			if got := decodeLine(t, buf)["level"]; got != tt.level {
				t.Errorf("level = %v, want %s", got, tt.level)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "warn", "json")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}

	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Fatalf("GetLevel() = %q, want debug", GetLevel())
	}
	l.Debug("visible")
	if buf.Len() == 0 {
		t.Error("SetLevel() did not apply to an existing logger")
	}
}

func TestLogger_With(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	l.With("component", "pool").Info("started", "instances", 3)

	entry := decodeLine(t, buf)
	if entry["component"] != "pool" {
		t.Errorf("component = %v, want pool", entry["component"])
	}
	if entry["instances"] != float64(3) {
		t.Errorf("instances = %v, want 3", entry["instances"])
	}
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "text")
	l.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestLogger_Slog(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	l.Slog().Info("through slog", "passphrase", "hunter22")

	entry := decodeLine(t, buf)
	if entry["passphrase"] != redactedValue {
		t.Errorf("passphrase = %v, want redacted", entry["passphrase"])
	}
}

func TestLogger_WithContext(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")
	l.WithContext(context.Background()).Info("ctx")
	if buf.Len() == 0 {
		t.Error("WithContext() logger produced no output")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"DEBUG":   "debug",
		"warning": "warn",
		"error":   "error",
		"bogus":   "info",
		"":        "info",
	}
	t.Cleanup(func() { SetLevel("info") })
	for in, want := range tests {
		SetLevel(in)
		if got := GetLevel(); got != want {
			t.Errorf("SetLevel(%q) then GetLevel() = %q, want %q", in, got, want)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	l, buf := newBufferLogger(t, "info", "json")
	prev := Default()
	SetDefault(l)
	t.Cleanup(func() { SetDefault(prev) })

	Info("package level")
	if buf.Len() == 0 {
		t.Error("package-level Info() did not use the new default")
	}
}
