package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("Expected MemoryLimitBytes to be 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("Expected HighWaterMark %.2f below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval to be 5s, got %v", cfg.CheckInterval)
	}
}

// restoreMemoryLimit resets GOMEMLIMIT after a test changes it.
func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name           string
		memoryLimit    string
		memoryRatio    string
		wantConfigured bool
		wantSource     string
		wantContainer  int64
		wantRatio      float64
	}{
		{
			name:       "No environment",
			wantSource: sourceNone,
		},
		{
			name:           "Byte count with default ratio",
			memoryLimit:    "1073741824",
			wantConfigured: true,
			wantSource:     sourceMEMORYLIMIT,
			wantContainer:  1 << 30,
			wantRatio:      DefaultMemoryRatio,
		},
		{
			name:           "Humanized limit with custom ratio",
			memoryLimit:    "2GiB",
			memoryRatio:    "0.5",
			wantConfigured: true,
			wantSource:     sourceMEMORYLIMIT,
			wantContainer:  2 << 30,
			wantRatio:      0.5,
		},
		{
			name:           "Out of range ratio falls back",
			memoryLimit:    "1073741824",
			memoryRatio:    "1.5",
			wantConfigured: true,
			wantSource:     sourceMEMORYLIMIT,
			wantContainer:  1 << 30,
			wantRatio:      DefaultMemoryRatio,
		},
		{
			name:           "Unparseable ratio falls back",
			memoryLimit:    "1073741824",
			memoryRatio:    "lots",
			wantConfigured: true,
			wantSource:     sourceMEMORYLIMIT,
			wantContainer:  1 << 30,
			wantRatio:      DefaultMemoryRatio,
		},
		{
			name:        "Invalid limit",
			memoryLimit: "not-a-size",
			wantSource:  sourceNone,
		},
		{
			name:        "Negative limit",
			memoryLimit: "-100",
			wantSource:  sourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.memoryLimit)
			t.Setenv("MEMORY_RATIO", tt.memoryRatio)

			result := ConfigureFromEnv()

			if result.Configured != tt.wantConfigured {
				t.Errorf("Expected Configured %v, got %v", tt.wantConfigured, result.Configured)
			}
			if result.Source != tt.wantSource {
				t.Errorf("Expected Source %q, got %q", tt.wantSource, result.Source)
			}
			if result.ContainerLimit != tt.wantContainer {
				t.Errorf("Expected ContainerLimit %d, got %d", tt.wantContainer, result.ContainerLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Expected Ratio %v, got %v", tt.wantRatio, result.Ratio)
			}
			if tt.wantConfigured {
				want := int64(float64(tt.wantContainer) * tt.wantRatio)
				if result.GoMemLimit != want {
					t.Errorf("Expected GoMemLimit %d, got %d", want, result.GoMemLimit)
				}
				if got := CurrentLimit(); got != want {
					t.Errorf("Expected runtime limit %d, got %d", want, got)
				}
			}
		})
	}
}

func TestConfigureFromEnvGOMEMLIMITTakesPrecedence(t *testing.T) {
	restoreMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	debug.SetMemoryLimit(500 << 20)

	result := ConfigureFromEnv()
	if !result.Configured || result.Source != sourceGOMEMLIMIT {
		t.Fatalf("Expected GOMEMLIMIT source, got %+v", result)
	}
	if result.GoMemLimit != 500<<20 {
		t.Errorf("Expected GoMemLimit %d, got %d", 500<<20, result.GoMemLimit)
	}
	if result.ContainerLimit != 0 {
		t.Errorf("Expected MEMORY_LIMIT to be ignored, got %d", result.ContainerLimit)
	}
}
