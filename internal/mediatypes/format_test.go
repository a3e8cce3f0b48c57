package mediatypes

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, Placeholder},
		{-3, Placeholder},
		{59.6, "00:01:00"},
		{3723, "01:02:03"},
		{36000, "10:00:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	if got := FormatBitrate(0); got != Placeholder {
		t.Errorf("Expected placeholder, got %q", got)
	}
	if got := FormatBitrate(320000); got != "320 kb/s" {
		t.Errorf("Expected 320 kb/s, got %q", got)
	}
}

func TestFormatFrameRate(t *testing.T) {
	tests := []struct {
		fps  float64
		want string
	}{
		{0, Placeholder},
		{25, "25 fps"},
		{29.97, "29.97 fps"},
		{23.976, "23.98 fps"},
		{59.5, "59.5 fps"},
	}

	for _, tt := range tests {
		if got := FormatFrameRate(tt.fps); got != tt.want {
			t.Errorf("FormatFrameRate(%v) = %q, want %q", tt.fps, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	if got := FormatBytes(-1); got != Placeholder {
		t.Errorf("Expected placeholder, got %q", got)
	}
	if got := FormatBytes(512); got != "512 B" {
		t.Errorf("Expected 512 B, got %q", got)
	}
	if got := FormatBytes(1536); got != "1.5 KiB" {
		t.Errorf("Expected 1.5 KiB, got %q", got)
	}
}

func TestDetectMIME(t *testing.T) {
	if got := DetectMIME("Audio/MPEG", nil); got != "audio/mpeg" {
		t.Errorf("Expected supplied hint to win, got %q", got)
	}
	if got := DetectMIME("", nil); got != "" {
		t.Errorf("Expected empty hint for empty data, got %q", got)
	}

	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
	if got := DetectMIME("application/octet-stream", wav); got != "audio/wav" {
		t.Errorf("Expected audio/wav from sniffing, got %q", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"00:00:10.50", 10.5, true},
		{"01:02:03", 3723, true},
		{" 00:01:00.00 ", 60, true},
		{"N/A", 0, false},
		{"00:61:00", 0, false},
		{"1:2", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseClock(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParseClock(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
