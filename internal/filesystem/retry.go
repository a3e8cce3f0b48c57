package filesystem

import (
	"errors"
	"syscall"
	"time"

	"media-converter/internal/logging"
)

// RetryConfig configures retry behavior for sandbox operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns defaults suited to a local or network-backed
// scratch directory.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransient reports whether err is worth retrying: stale NFS handles,
// busy files and interrupted system calls.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ESTALE, syscall.EBUSY, syscall.EAGAIN, syscall.EINTR:
			return true
		}
	}

	return false
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// Every attempt is reported to the package observer.
func withRetry[T any](operation, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	start := time.Now()
	backoff := config.InitialBackoff

	var (
		result T
		err    error
	)

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err = fn()
		if !isTransient(err) {
			if err == nil && attempt > 0 {
				logging.Info("Sandbox %s succeeded on retry %d for %s", operation, attempt, path)
			}
			if o := observe(); o != nil {
				o.ObserveOperation(operation, time.Since(start).Seconds(), err)
			}
			return result, err
		}

		if attempt < config.MaxRetries {
			if o := observe(); o != nil {
				o.ObserveRetryAttempt(operation)
			}
			logging.Debug("Sandbox %s transient error for %s, retrying in %v (attempt %d/%d)",
				operation, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Sandbox %s failed after %d retries for %s: %v", operation, config.MaxRetries, path, err)
	if o := observe(); o != nil {
		o.ObserveRetryFailure(operation)
		o.ObserveOperation(operation, time.Since(start).Seconds(), err)
	}
	return result, err
}
