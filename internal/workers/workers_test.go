package workers

import (
	"testing"
)

func TestCount(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	available := Available()

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{
			name:       "CPU-bound task",
			multiplier: 1.0,
			limit:      0,
			want:       available,
		},
		{
			name:       "Limit lower than calculated",
			multiplier: 4.0,
			limit:      1,
			want:       1,
		},
		{
			name:       "Multiplier rounds down to zero",
			multiplier: 0.0001,
			limit:      0,
			want:       1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	available := Available()

	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
	}{
		{"Valid override", "8", 0, 8},
		{"Override capped by limit", "20", 10, 10},
		{"Override below limit", "5", 10, 5},
		{"Non-numeric override ignored", "invalid", 0, available},
		{"Zero override ignored", "0", 0, available},
		{"Negative override ignored", "-5", 0, available},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(OverrideEnv, tt.envValue)

			got := Count(1.0, tt.limit)
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with %s=%s = %d, want %d", tt.limit, OverrideEnv, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForCPU(t *testing.T) {
	t.Setenv(OverrideEnv, "")

	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}

	got := ForCPU(0)
	if got < 1 || got > Available() {
		t.Errorf("ForCPU(0) = %d, want between 1 and %d", got, Available())
	}
}
