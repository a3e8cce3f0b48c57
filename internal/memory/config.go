package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"media-converter/internal/logging"
)

const (
	// DefaultMemoryRatio is the share of container memory given to the Go
	// heap. The rest is left for the ffmpeg child process, staged media
	// buffers held outside the heap, and goroutine stacks.
	DefaultMemoryRatio = 0.75

	sourceGOMEMLIMIT  = "GOMEMLIMIT"
	sourceMEMORYLIMIT = "MEMORY_LIMIT"
	sourceNone        = "none"
)

// ConfigResult reports what ConfigureFromEnv did, for the startup log.
type ConfigResult struct {
	Configured bool
	Source     string // sourceGOMEMLIMIT, sourceMEMORYLIMIT or sourceNone

	// ContainerLimit and Ratio are only set for MEMORY_LIMIT.
	ContainerLimit int64
	Ratio          float64
	GoMemLimit     int64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call it
// first thing in main, before any media is staged.
//
// An explicit GOMEMLIMIT wins. Otherwise MEMORY_LIMIT (bytes, or a size such
// as "512MiB") is scaled by MEMORY_RATIO, default DefaultMemoryRatio.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		if limit := CurrentLimit(); limit > 0 {
			return ConfigResult{Configured: true, Source: sourceGOMEMLIMIT, GoMemLimit: limit}
		}
		return ConfigResult{}
	}

	none := ConfigResult{Source: sourceNone}
	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT alone")
		return none
	}
	container, err := parseLimit(raw)
	if err != nil {
		logging.Warn("Ignoring MEMORY_LIMIT %q: %v", raw, err)
		return none
	}

	ratio := memoryRatio(os.Getenv("MEMORY_RATIO"))
	heap := int64(float64(container) * ratio)
	debug.SetMemoryLimit(heap)
	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		humanize.IBytes(uint64(heap)), ratio*100, humanize.IBytes(uint64(container)))

	return ConfigResult{
		Configured:     true,
		Source:         sourceMEMORYLIMIT,
		ContainerLimit: container,
		Ratio:          ratio,
		GoMemLimit:     heap,
	}
}

// memoryRatio parses MEMORY_RATIO, falling back to DefaultMemoryRatio for
// empty, malformed or out of range values.
func memoryRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("Ignoring MEMORY_RATIO %q, using %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// parseLimit accepts a plain byte count or a humanized size.
func parseLimit(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, strconv.ErrRange
		}
		return n, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > math.MaxInt64 {
		return 0, strconv.ErrRange
	}
	return int64(n), nil
}

// CurrentLimit returns the active GOMEMLIMIT, or 0 when none is set.
func CurrentLimit() int64 {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit >= math.MaxInt64 {
		return 0
	}
	return limit
}
