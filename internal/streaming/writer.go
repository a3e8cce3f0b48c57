package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"media-converter/internal/logging"
)

var (
	// ErrWriteTimeout is returned when one write to the client takes longer
	// than the configured WriteTimeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned when the request context ends before the
	// download completes.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled is returned after Close, or when the idle timer or a
	// write timeout tore the stream down.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures a TimeoutWriter.
type TimeoutWriterConfig struct {
	// WriteTimeout bounds a single write to the client.
	WriteTimeout time.Duration
	// IdleTimeout bounds the time between successful writes.
	IdleTimeout time.Duration
	// MaxDuration bounds the whole stream. Zero means unlimited.
	MaxDuration time.Duration
	// ChunkSize splits large writes and flushes after each piece. Zero
	// writes as received.
	ChunkSize int
	// OnProgress is called roughly every mebibyte with the running total.
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultTimeoutWriterConfig returns the settings used for downloads.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled or vanished
// client cannot hold a download open forever.
type TimeoutWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	config  TimeoutWriterConfig
	start   time.Time

	mu           sync.Mutex
	lastWrite    time.Time
	bytesWritten int64
	closed       bool
}

// NewTimeoutWriter returns a writer bound to ctx. Close must be called to
// stop the idle checker.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	tw := &TimeoutWriter{
		w:         w,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		start:     now,
		lastWrite: now,
	}
	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()
	return tw
}

// Write implements io.Writer.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctx.Err(); err != nil {
		return 0, tw.contextError()
	}
	if tw.config.MaxDuration > 0 && time.Since(tw.start) > tw.config.MaxDuration {
		return 0, ErrWriteTimeout
	}

	size := tw.config.ChunkSize
	if size <= 0 || len(p) <= size {
		return tw.writeOnce(p)
	}

	written := 0
	for len(p) > 0 {
		if tw.ctx.Err() != nil {
			return written, tw.contextError()
		}
		chunk := p[:min(size, len(p))]
		n, err := tw.writeOnce(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[len(chunk):]
		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}
	return written, nil
}

type writeResult struct {
	n   int
	err error
}

// writeOnce performs one write to the client, giving up after WriteTimeout.
func (tw *TimeoutWriter) writeOnce(p []byte) (int, error) {
	done := make(chan writeResult, 1)
	go func() {
		n, err := tw.w.Write(p)
		done <- writeResult{n, err}
	}()

	var timeout <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		if res.err != nil {
			return res.n, res.err
		}
		tw.mu.Lock()
		tw.lastWrite = time.Now()
		before := tw.bytesWritten
		tw.bytesWritten += int64(res.n)
		total := tw.bytesWritten
		tw.mu.Unlock()

		if tw.config.OnProgress != nil && total>>20 != before>>20 {
			tw.config.OnProgress(total, time.Since(tw.start))
		}
		return res.n, nil

	case <-timeout:
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}
			if idle > tw.config.IdleTimeout {
				logging.Warn("Download idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close stops the writer. Later writes fail with ErrStreamCanceled.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.closed {
		tw.closed = true
		tw.cancel()
	}
	return nil
}

// Stats returns the bytes written so far and the stream's age.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.start)
}
