package handlers

import (
	"sync"
	"time"

	"media-converter/internal/session"
	"media-converter/internal/startup"
	"media-converter/internal/streaming"
	"media-converter/internal/workspace"
)

// Handlers serves the converter session and the workspace over HTTP.
type Handlers struct {
	session   *session.Session
	workspace *workspace.Reconciler
	config    *startup.Config
	download  streaming.TimeoutWriterConfig
	startTime time.Time

	mu        sync.RWMutex
	ready     bool
	warmupErr string
}

func New(sess *session.Session, ws *workspace.Reconciler, config *startup.Config) *Handlers {
	return &Handlers{
		session:   sess,
		workspace: ws,
		config:    config,
		download:  streaming.DefaultTimeoutWriterConfig(),
		startTime: time.Now(),
	}
}

// MarkReady flips the readiness probe once startup has finished. A non-nil
// err from warming up the engine is reported as a degraded health status.
func (h *Handlers) MarkReady(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = true
	if err != nil {
		h.warmupErr = err.Error()
	}
}

func (h *Handlers) readiness() (bool, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready, h.warmupErr
}
