/*
Package streaming sends converted files, bundles and workspace files to HTTP
clients with timeout protection.

# Overview

Every result the converter produces lives in memory until it is downloaded.
A slow or vanished client must not pin a handler goroutine, so downloads go
through a TimeoutWriter, which wraps http.ResponseWriter with per-write,
idle and total-duration limits.

# Downloads

[ServeDownload] is the entry point used by the HTTP handlers. It sets the
attachment headers, sniffs the content type with mimetype when none is
given, streams the bytes, and records download metrics by kind:

	err := streaming.ServeDownload(r.Context(), w, streaming.Download{
		Name:        artifact.Name,
		ContentType: "application/zip",
		Data:        artifact.Data,
		Kind:        "bundle",
	}, streaming.DefaultTimeoutWriterConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("download failed: %v", err)
	}

# Configuration

TimeoutWriterConfig controls the writer:

  - WriteTimeout: maximum time for one write (default 30s)
  - IdleTimeout: maximum time between successful writes (default 60s)
  - MaxDuration: maximum total duration, 0 for unlimited (default 0)
  - ChunkSize: large writes are split and flushed per chunk (default 64KB)
  - OnProgress: called each time another mebibyte has been written

# Errors

  - [ErrWriteTimeout]: a write or the whole stream ran too long
  - [ErrClientGone]: the request context ended
  - [ErrStreamCanceled]: the writer was closed or torn down by the idle timer
*/
package streaming
