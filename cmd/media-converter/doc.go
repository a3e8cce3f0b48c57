// Package main provides the media-converter binary.
//
// media-converter converts batches of audio and video files with an ffmpeg
// engine. Uploaded files (and the contents of uploaded zip archives) join
// a working set for the active mode, are probed for their streams, and are
// converted one at a time according to a preset or an explicit container,
// codec and quality selection. Results are offered individually or, past
// the bundle threshold, as one zip archive.
//
// # Commands
//
//   - serve (the default): the HTTP API, see [media-converter/internal/handlers]
//   - convert: run one conversion over local files and write the results
//   - probe: print the parsed stream information of local files as JSON
//   - shell: an interactive ffmpeg workspace backed by a scratch sandbox
//   - version: print build information
//
// # Engines
//
// The server runs two engines, each with its own sandbox directory under
// CACHE_DIR: one for the converter pipeline and one for the workspace, so
// free-form workspace commands never touch staged conversion inputs. The
// converter engine is warmed in the background at startup; /readyz reports
// ready once that attempt finishes, and /health reports "degraded" if it
// failed.
//
// # Background Services
//
//   - Memory Monitor: holds queued conversion jobs while heap usage is critical
//   - Metrics Collector: copies working-set and workspace counts into gauges every minute
//
// # Environment Variables
//
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus port (default: 9090)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - CACHE_DIR: root of the engine sandboxes
//   - FFMPEG_PATH: ffmpeg binary (default: ffmpeg)
//   - MAX_UPLOAD_BYTES: request body limit for uploads
//   - BUNDLE_THRESHOLD: results above this count are zipped (default: 3)
//   - LOG_BUFFER_LINES: engine log lines kept for the logs endpoint
//   - MAX_ARCHIVE_DEPTH: nested archive limit, 0 for unbounded
//   - DEVICE_CLASS: capability profile override (desktop or mobile)
//   - PRESETS_FILE: YAML presets merged over the built-ins
//   - UPLOAD_RATE_LIMIT: upload and command requests per minute per client
//   - CORS_ORIGINS: comma-separated allowed origins
//   - CONFIG_FILE: YAML file with any of the settings above
//   - LOG_LEVEL, LOG_FORMAT: logging verbosity and output format
//   - MEMORY_LIMIT, GOMEMLIMIT: memory limit for the Go runtime
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the server stops the metrics collector, kills any
// running engine process, releases staged inputs, stops the memory
// monitor and shuts down the metrics and API servers within 30 seconds.
package main
