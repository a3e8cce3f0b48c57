package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		debug    string
		level    string
		expected LogLevel
	}{
		{name: "Default is info", expected: LevelInfo},
		{name: "Debug via LOG_LEVEL", level: "debug", expected: LevelDebug},
		{name: "Warn via LOG_LEVEL", level: "warn", expected: LevelWarn},
		{name: "Warning alias", level: "warning", expected: LevelWarn},
		{name: "Error via LOG_LEVEL", level: "error", expected: LevelError},
		{name: "Case insensitive", level: "DEBUG", expected: LevelDebug},
		{name: "Unknown falls back to info", level: "verbose", expected: LevelInfo},
		{name: "DEBUG flag wins", debug: "true", level: "error", expected: LevelDebug},
		{name: "DEBUG flag numeric", debug: "1", expected: LevelDebug},
		{name: "DEBUG flag false ignored", debug: "false", level: "warn", expected: LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLevel(tt.debug, tt.level)
			if got != tt.expected {
				t.Errorf("parseLevel(%q, %q) = %v, want %v", tt.debug, tt.level, got, tt.expected)
			}
		})
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Expected %q, got %q", tt.expected, got)
		}
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestSetOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "json") })

	Error("probe failed for %s", "clip.mkv")

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("Expected a log line to be written")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", line, err)
	}
	if decoded["level"] != "error" {
		t.Errorf("Expected level=error, got %v", decoded["level"])
	}
	if decoded["message"] != "probe failed for clip.mkv" {
		t.Errorf("Unexpected message: %v", decoded["message"])
	}
}

func TestPrintfHasNoLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "json") })

	Printf("Converting %d/%d", 1, 3)

	var decoded map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if decoded["message"] != "Converting 1/3" {
		t.Errorf("Unexpected message: %v", decoded["message"])
	}
	if _, ok := decoded["level"]; ok {
		t.Errorf("Expected no level field, got %v", decoded["level"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	t.Cleanup(func() { SetOutput(&bytes.Buffer{}, "json") })

	l := WithComponent("queue")
	l.Error().Msg("run failed")

	if !strings.Contains(buf.String(), `"component":"queue"`) {
		t.Errorf("Expected component field in %q", buf.String())
	}
}
