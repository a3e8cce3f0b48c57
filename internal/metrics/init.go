package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, op := range []string{"initialize", "write", "read", "delete", "mkdir", "rmdir", "list", "exec"} {
		EngineCallsTotal.WithLabelValues(op, "success")
		EngineCallsTotal.WithLabelValues(op, "error")
		EngineCallDuration.WithLabelValues(op)
	}
	for _, outcome := range []string{"success", "failure", "aborted"} {
		EngineExitCodes.WithLabelValues(outcome)
	}

	for _, status := range []string{"completed", "failed", "canceled", "rejected"} {
		ConversionRunsTotal.WithLabelValues(status)
	}

	for _, t := range []string{"audio", "video"} {
		ConversionJobsTotal.WithLabelValues(t, "success")
		ConversionJobsTotal.WithLabelValues(t, "failure")
		ConversionJobDuration.WithLabelValues(t)
		IngestedEntriesTotal.WithLabelValues(t, "file")
		IngestedEntriesTotal.WithLabelValues(t, "archive")
		WorkingSetEntries.WithLabelValues(t)
		StagedPaths.WithLabelValues(t)
	}

	for _, kind := range []string{"lossless_audio", "lossless_video", "preset_speed", "codec_fallback", "resolution_cap"} {
		PlanDowngradesTotal.WithLabelValues(kind)
	}
	for _, kind := range []string{"empty", "individual", "bundle"} {
		BundlesTotal.WithLabelValues(kind)
	}
	for _, status := range []string{"success", "partial"} {
		ProbesTotal.WithLabelValues(status)
	}
	for _, reason := range []string{"other_type", "not_media", "corrupt_archive", "depth_limit"} {
		SkippedFilesTotal.WithLabelValues(reason)
	}
	for _, kind := range []string{"file", "directory"} {
		WorkspaceNodes.WithLabelValues(kind)
	}
	for _, status := range []string{"success", "failure", "error"} {
		TerminalCommandsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"read", "write", "remove", "mkdir", "readdir", "stat"} {
		FilesystemOperationDuration.WithLabelValues(op)
		FilesystemOperationErrors.WithLabelValues(op)
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
	}
}
