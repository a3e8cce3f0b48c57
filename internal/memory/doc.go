// Package memory configures Go's soft memory limit for containerized
// deployments and provides backpressure for the conversion queue.
//
// # Configuration
//
// Go reads cgroup CPU limits into GOMAXPROCS but never reads the memory
// limit, so GOMEMLIMIT must be set explicitly. Call [ConfigureFromEnv]
// early in main, before any uploads are staged:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable. Takes precedence over everything
//     else and is only reported, not changed.
//
//   - MEMORY_LIMIT: container memory limit, either in bytes (as provided by
//     the Kubernetes Downward API) or with a unit such as "2GiB".
//
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between
//     0.0 and 1.0. Default 0.75. The remainder is left for the ffmpeg child
//     process, which is not covered by GOMEMLIMIT.
//
// Passing the limit through the Downward API:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// # Backpressure
//
// Every staged input and every output read back from the engine is held in
// memory until the run finishes. A [Monitor] samples heap usage and, once
// usage crosses the critical water mark, holds the next job until usage
// drops below the high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.WaitIfPaused(ctx); err != nil {
//	    return err
//	}
//
// GOMEMLIMIT is a soft limit that only covers the Go heap. It does not
// bound the encoder's own allocations, which is why the default ratio
// leaves a quarter of the container for ffmpeg.
package memory
