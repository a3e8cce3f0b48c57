package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that pins the engine thread
// count regardless of detected CPUs.
const OverrideEnv = "ENGINE_THREADS"

// Available returns the number of CPUs the process may use. It respects
// container CPU limits via GOMAXPROCS.
func Available() int {
	return runtime.GOMAXPROCS(0)
}

// Count returns a worker or thread count for a given task type.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound work such as encoding
//   - 0.5 for work that shares the CPU with a concurrent encoder
//
// The limit parameter caps the result. Use 0 for no limit. The result is
// never below 1.
//
// Can be overridden with the ENGINE_THREADS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	return capAt(int(float64(Available())*multiplier), limit)
}

// ForCPU returns the count for CPU-bound work (1 per CPU), capped at limit.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

func capAt(n, limit int) int {
	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
