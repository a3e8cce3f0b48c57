package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/session"
)

const (
	eventBuffer       = 64
	keepaliveInterval = 15 * time.Second
)

// Events streams session status, progress, log and state changes as
// server-sent events. The first event is a snapshot of the session. Events
// are dropped for a client that falls behind.
// GET /api/events
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := make(chan session.Event, eventBuffer)
	unsubscribe := h.session.Subscribe(func(ev session.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", h.session.Status()); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if err := writeEvent(w, string(ev.Kind), ev); err != nil {
				logging.Debug("Event stream closed: %v", err)
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
