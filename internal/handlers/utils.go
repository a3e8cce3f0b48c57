package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"media-converter/internal/archive"
	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/plan"
	"media-converter/internal/queue"
	"media-converter/internal/session"
	"media-converter/internal/workspace"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONResponse writes v with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownEntry),
		errors.Is(err, session.ErrNoResults),
		errors.Is(err, workspace.ErrNotFound),
		errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidMode),
		errors.Is(err, plan.ErrInvalidSelection),
		errors.Is(err, workspace.ErrEmptyCommand),
		errors.Is(err, filesystem.ErrPathEscape):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoEntries),
		errors.Is(err, workspace.ErrNotFile),
		errors.Is(err, workspace.ErrNotArchive),
		errors.Is(err, archive.ErrCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and answers with the mapped status. Server errors
// are logged at error level, client errors at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s rejected (%d): %v", r.Method, r.URL.Path, code, err)
	}
	writeJSONError(w, err.Error(), code)
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
