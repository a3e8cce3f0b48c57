// Package filesystem implements the engine's private scratch filesystem.
//
// A [Sandbox] confines every operation to one root directory. Callers pass
// slash-separated paths relative to that root; [Sandbox.Resolve] rejects
// anything that would escape it with [ErrPathEscape]. Writes go through
// github.com/google/renameio so a reader never observes a partially
// written input.
//
// Operations that fail with transient errors (stale NFS handles, EBUSY,
// EAGAIN, EINTR) are retried with exponential backoff according to
// [RetryConfig]. Results are reported to an optional [Observer], which the
// metrics package installs at startup.
package filesystem
