package mediatypes

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Placeholder is rendered for values that are unknown.
const Placeholder = "—"

// FormatBytes renders a byte count with binary units, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n < 0 {
		return Placeholder
	}
	return humanize.IBytes(uint64(n))
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Placeholder
	}
	total := int64(math.Round(seconds))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatBitrate renders a bits-per-second value in kb/s.
func FormatBitrate(bitsPerSecond int64) string {
	if bitsPerSecond <= 0 {
		return Placeholder
	}
	return fmt.Sprintf("%d kb/s", bitsPerSecond/1000)
}

// FormatFrameRate renders a frame rate, trimming trailing zeros.
func FormatFrameRate(fps float64) string {
	if fps <= 0 {
		return Placeholder
	}
	s := strconv.FormatFloat(fps, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return s + " fps"
}

// ParseClock parses an engine timestamp of the form HH:MM:SS[.fraction]
// into seconds.
func ParseClock(s string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}
