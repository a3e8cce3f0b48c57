package filesystem

// Observer records sandbox operation metrics. Implementations are provided
// by the metrics package to break the import cycle between filesystem and metrics.
type Observer interface {
	// ObserveOperation records duration and error status for an operation:
	// "read", "write", "remove", "mkdir", "readdir" or "stat".
	ObserveOperation(operation string, durationSeconds float64, err error)

	// ObserveRetryAttempt records one retry after a transient error.
	ObserveRetryAttempt(operation string)

	// ObserveRetryFailure records an operation that exhausted its retries.
	ObserveRetryFailure(operation string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

// observe is a nil-safe helper for the package-level observer.
func observe() Observer {
	return defaultObserver
}
