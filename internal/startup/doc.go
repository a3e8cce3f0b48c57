// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// Configuration is loaded by [LoadConfig] from an optional YAML file named by
// CONFIG_FILE, then from environment variables, which win over the file.
// The following settings are supported (YAML key in parentheses):
//
//   - PORT (port): HTTP server port (default: 8080)
//   - METRICS_PORT (metrics_port): Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED (metrics_enabled): Enable or disable metrics server (default: true)
//   - CACHE_DIR (cache_dir): Parent of the engine sandboxes (default: $TMPDIR/media-converter)
//   - FFMPEG_PATH (ffmpeg_path): FFmpeg binary name or path (default: ffmpeg)
//   - MAX_UPLOAD_BYTES (max_upload_bytes): Upload size limit, plain or with a unit such as "2GiB" (default: 2 GiB)
//   - BUNDLE_THRESHOLD (bundle_threshold): Results above this count are offered as one archive (default: 3)
//   - LOG_BUFFER_LINES (log_buffer_lines): Converter engine log ring size (default: 5000)
//   - MAX_ARCHIVE_DEPTH (max_archive_depth): Nested archive limit, 0 for unbounded (default: 0)
//   - DEVICE_CLASS (device_class): "desktop" or "mobile", overriding host detection
//   - PRESETS_FILE (presets_file): YAML preset catalog replacing the built-in presets
//   - UPLOAD_RATE_LIMIT (upload_rate_limit): Upload and exec requests per minute per client, 0 to disable (default: 60)
//   - CORS_ORIGINS (cors_origins): Comma separated allowed origins (default: *)
//   - LOG_STATIC_FILES (log_static_files): Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS (log_health_checks): Log health check requests (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for the Go heap (default: 0.75)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Directory Setup
//
// The cache directory must be writable. Two sandboxes are created beneath
// it, one per engine:
//   - converter: private filesystem of the conversion engine
//   - workspace: private filesystem of the workspace terminal engine
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogMemoryConfig]: Memory limit configuration
//   - [LogEngineSetup]: Sandbox locations and FFmpeg availability
//   - [LogPresetCatalog]: Preset catalog source
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	startup.LogEngineSetup(config)
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
