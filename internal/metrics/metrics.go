package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_upload_bytes_total",
			Help: "Total bytes received through uploads",
		},
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_downloads_total",
			Help: "Total downloads by kind (result, bundle, archive, workspace) and status",
		},
		[]string{"kind", "status"},
	)

	DownloadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_download_bytes_total",
			Help: "Total bytes sent through downloads by kind",
		},
		[]string{"kind"},
	)
)

// Engine metrics
var (
	EngineCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_engine_calls_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "status"},
	)

	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_engine_call_duration_seconds",
			Help:    "Engine operation duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"operation"},
	)

	EngineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_engine_ready",
			Help: "Whether the engine has been initialized (1 = ready)",
		},
	)

	EngineExitCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_engine_exit_codes_total",
			Help: "Engine exec exit codes grouped by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "aborted"
	)
)

// Conversion metrics
var (
	ConversionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_runs_total",
			Help: "Total number of conversion runs by final state",
		},
		[]string{"status"}, // "completed", "failed", "canceled", "rejected"
	)

	ConversionJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_jobs_total",
			Help: "Total number of conversion jobs",
		},
		[]string{"type", "status"},
	)

	ConversionJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_job_duration_seconds",
			Help:    "Conversion job duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"type"},
	)

	ConversionRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_run_in_progress",
			Help: "Whether a conversion run is in progress (1 = running)",
		},
	)

	ConversionProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_run_progress_percent",
			Help: "Overall progress of the current conversion run",
		},
	)

	PlanDowngradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_plan_downgrades_total",
			Help: "Plan corrections applied during resolution",
		},
		[]string{"kind"}, // "lossless_audio", "lossless_video", "preset_speed", "codec_fallback", "resolution_cap"
	)

	BundlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_bundles_total",
			Help: "Result presentations by kind",
		},
		[]string{"kind"}, // "empty", "individual", "bundle"
	)
)

// Probe and ingestion metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_probes_total",
			Help: "Total number of media probes",
		},
		[]string{"status"}, // "success", "partial"
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_converter_probe_duration_seconds",
			Help:    "Media probe duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	IngestedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_ingested_entries_total",
			Help: "Entries accepted into a working set",
		},
		[]string{"type", "source"}, // source: "file", "archive"
	)

	SkippedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_skipped_files_total",
			Help: "Files skipped during ingestion",
		},
		[]string{"reason"}, // "other_type", "not_media", "corrupt_archive", "depth_limit"
	)
)

// Working set and workspace gauges
var (
	WorkingSetEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_working_set_entries",
			Help: "Number of entries held per processing mode",
		},
		[]string{"type"},
	)

	StagedPaths = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_staged_paths",
			Help: "Number of input paths staged in the engine per processing mode",
		},
		[]string{"type"},
	)

	WorkspaceNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_workspace_nodes",
			Help: "Number of nodes in the workspace tree",
		},
		[]string{"kind"}, // "file", "directory"
	)

	TerminalCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_terminal_commands_total",
			Help: "Free-form commands executed in the workspace terminal",
		},
		[]string{"status"},
	)
)

// Sandbox filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_sandbox_operation_duration_seconds",
			Help:    "Sandbox filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_sandbox_operation_errors_total",
			Help: "Sandbox filesystem operation errors",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_sandbox_retry_attempts_total",
			Help: "Retries of sandbox operations after transient errors",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_sandbox_retry_failures_total",
			Help: "Sandbox operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_usage_ratio",
			Help: "Current heap usage as a ratio of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_memory_paused",
			Help: "Whether job dispatch is paused for memory (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_memory_gc_pauses_total",
			Help: "Number of times dispatch paused and forced a GC",
		},
	)
)
