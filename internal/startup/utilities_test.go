package startup

import (
	"fmt"
	"testing"

	"media-converter/internal/memory"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		want     bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"T", false, true},
		{"false", true, false},
		{"0", true, false},
		{"F", true, false},
		{"yes", false, false},
		{"no", true, true},
		{"   ", true, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%v", tt.value, tt.fallback), func(t *testing.T) {
			t.Setenv("MEDIA_CONVERTER_TEST_BOOL", tt.value)
			if got := getEnvBool("MEDIA_CONVERTER_TEST_BOOL", tt.fallback); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{"Returns default when unset", "", 3, 3},
		{"Parses value", "12", 3, 12},
		{"Trims spaces", " 7 ", 3, 7},
		{"Parses negative", "-1", 3, -1},
		{"Returns default when invalid", "three", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			if got := getEnvInt("TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvInt(%q) = %d, want %d", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBytes(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     int64
	}{
		{"Returns default when unset", "", 1024},
		{"Plain byte count", "4096", 4096},
		{"Binary unit", "2GiB", 2147483648},
		{"Decimal unit with space", "500 MB", 500000000},
		{"Returns default when zero", "0", 1024},
		{"Returns default when invalid", "lots", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BYTES", tt.envValue)
			if got := getEnvBytes("TEST_BYTES", 1024); got != tt.want {
				t.Errorf("getEnvBytes(%q) = %d, want %d", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestDepthString(t *testing.T) {
	if got := depthString(0); got != "unbounded" {
		t.Errorf("Expected unbounded, got %q", got)
	}
	if got := depthString(4); got != "4" {
		t.Errorf("Expected 4, got %q", got)
	}
}

func TestLogMemoryConfig_NotConfigured(_ *testing.T) {
	// Should not panic when called with unconfigured memory
	LogMemoryConfig(memory.ConfigResult{})
}

func TestLogMemoryConfig_GOMEMLIMIT(_ *testing.T) {
	// Should not panic
	LogMemoryConfig(memory.ConfigResult{
		Configured: true,
		Source:     "GOMEMLIMIT",
		GoMemLimit: 524288000,
	})
}

func TestLogMemoryConfig_MEMORY_LIMIT(_ *testing.T) {
	// Should not panic
	LogMemoryConfig(memory.ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: 1073741824,
		GoMemLimit:     805306368,
		Ratio:          0.75,
	})
}

func TestLogEngineSetup_MissingBinary(_ *testing.T) {
	// Should only warn
	LogEngineSetup(&Config{
		FFmpegPath:   "definitely-not-an-ffmpeg-binary",
		ConverterDir: "/tmp/converter",
		WorkspaceDir: "/tmp/workspace",
	})
}

func TestBuildInfoStruct(t *testing.T) {
	info := BuildInfo{
		Version:   "1.0.0",
		Commit:    "abc123",
		BuildTime: "2026-01-01",
		GoVersion: "go1.21.0",
		OS:        "linux",
		Arch:      "amd64",
	}

	if info.Version != "1.0.0" {
		t.Errorf("Expected Version='1.0.0', got %q", info.Version)
	}

	if info.Commit != "abc123" {
		t.Errorf("Expected Commit='abc123', got %q", info.Commit)
	}

	if info.BuildTime != "2026-01-01" {
		t.Errorf("Expected BuildTime='2026-01-01', got %q", info.BuildTime)
	}

	if info.GoVersion != "go1.21.0" {
		t.Errorf("Expected GoVersion='go1.21.0', got %q", info.GoVersion)
	}

	if info.OS != "linux" {
		t.Errorf("Expected OS='linux', got %q", info.OS)
	}

	if info.Arch != "amd64" {
		t.Errorf("Expected Arch='amd64', got %q", info.Arch)
	}
}

func BenchmarkGetEnv(b *testing.B) {
	b.Setenv("BENCH_TEST_VAR", "test-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnv("BENCH_TEST_VAR", "default")
	}
}

func BenchmarkGetEnvBool(b *testing.B) {
	b.Setenv("BENCH_TEST_BOOL", "true")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvBool("BENCH_TEST_BOOL", false)
	}
}
