package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"media-converter/internal/logging"
	"media-converter/internal/mediatypes"
	"media-converter/internal/metrics"
	"media-converter/internal/plan"
	"media-converter/internal/session"
	"media-converter/internal/streaming"
)

// multipartMemory is the part of a multipart form kept in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

type modeRequest struct {
	Mode string `json:"mode"`
}

// GetMode returns the active media mode.
// GET /api/mode
func (h *Handlers) GetMode(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]mediatypes.MediaType{"mode": h.session.Mode()})
}

// SetMode switches between audio and video.
// PUT /api/mode
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode, _ := mediatypes.ParseMediaType(req.Mode)
	if err := h.session.SwitchMode(r.Context(), mode); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Status())
}

// readMultipart parses a size-limited multipart form and returns the files
// of the "files" field with their bytes. The caller removes the form.
func (h *Handlers) readMultipart(w http.ResponseWriter, r *http.Request) ([]*multipart.FileHeader, bool) {
	limit := h.config.MaxUploadBytes
	if r.ContentLength > limit {
		writeJSONError(w, fmt.Sprintf("Upload exceeds %s", mediatypes.FormatBytes(limit)), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, fmt.Sprintf("Upload exceeds %s", mediatypes.FormatBytes(limit)), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
		return nil, false
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		_ = r.MultipartForm.RemoveAll()
		writeJSONError(w, "No files in upload", http.StatusBadRequest)
		return nil, false
	}
	return files, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Upload ingests the uploaded files into the active working set. Archives
// are expanded; non-media files are skipped and logged.
// POST /api/uploads
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readMultipart(w, r)
	if !ok {
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	uploads := make([]session.Upload, 0, len(files))
	var total int64
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			logging.Error("Failed to read upload %s: %v", fh.Filename, err)
			writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
			return
		}
		hint := fh.Header.Get("Content-Type")
		if hint == "" || hint == "application/octet-stream" {
			hint = mimetype.Detect(data).String()
		}
		uploads = append(uploads, session.Upload{
			Name:       fh.Filename,
			MIME:       hint,
			Data:       data,
			ModifiedAt: time.Now(),
		})
		total += int64(len(data))
	}
	metrics.UploadBytesTotal.Add(float64(total))

	report, err := h.session.Ingest(r.Context(), uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.Info("Ingested %d of %d uploaded files (%s)", len(report.Added), len(uploads), mediatypes.FormatBytes(total))
	writeJSONResponse(w, http.StatusCreated, report)
}

// ListEntries returns the active working set.
// GET /api/entries
func (h *Handlers) ListEntries(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Entries())
}

// GetEntry returns one entry with its analysis.
// GET /api/entries/{id}
func (h *Handlers) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.session.Entry(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entry)
}

// DeleteEntry removes one entry and its staged input.
// DELETE /api/entries/{id}
func (h *Handlers) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "removed")
}

// ClearEntries empties the active working set.
// DELETE /api/entries
func (h *Handlers) ClearEntries(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Clear(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "cleared")
}

// Analyze probes every entry of the active set.
// POST /api/analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	report, err := h.session.Analyze(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, report)
}

// Convert runs the active set through the engine. The request blocks until
// the run ends; closing it cancels the run.
// POST /api/convert
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	var sel plan.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.session.Convert(r.Context(), sel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, outcome)
}

// GetStatus returns a snapshot of the session.
// GET /api/status
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, h.session.Status())
}

// GetPresets returns the pickers' choices for the active mode.
// GET /api/presets
func (h *Handlers) GetPresets(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.session.Choices())
}

// GetResults returns the latest run's summary and download presentation.
// GET /api/results
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.session.Results()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, outcome)
}

// DownloadBundle sends every result of the latest run as one zip archive.
// GET /api/results/bundle
func (h *Handlers) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.session.DownloadAll()
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.serve(w, r, streaming.Download{
		Name:        artifact.Name,
		ContentType: "application/zip",
		Data:        artifact.Data,
		Kind:        "bundle",
	})
}

// DownloadResult sends one artifact of the latest run by name.
// GET /api/results/file/{name}
func (h *Handlers) DownloadResult(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.session.ResultFile(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	kind := "result"
	if mediatypes.IsArchive(artifact.Name) {
		kind = "archive"
	}
	h.serve(w, r, streaming.Download{Name: artifact.Name, Data: artifact.Data, Kind: kind})
}

// GetLogs returns the activity log, or the raw engine log with
// ?source=engine.
// GET /api/logs
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	var lines []string
	switch r.URL.Query().Get("source") {
	case "", "activity":
		lines = h.session.Logs()
	case "engine":
		lines = h.session.EngineLogs()
	default:
		writeJSONError(w, "Unknown log source", http.StatusBadRequest)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]string{"lines": lines})
}

// serve streams d to the client. Failures are logged and counted by
// ServeDownload; the status line is already sent by then.
func (h *Handlers) serve(w http.ResponseWriter, r *http.Request, d streaming.Download) {
	_ = streaming.ServeDownload(r.Context(), w, d, h.download)
}

// planView is the JSON form of one resolved job.
type planView struct {
	EntryID     string   `json:"entryId"`
	DisplayName string   `json:"displayName"`
	Output      string   `json:"output"`
	Container   string   `json:"container"`
	VideoCodec  string   `json:"videoCodec,omitempty"`
	AudioCodec  string   `json:"audioCodec,omitempty"`
	Threads     int      `json:"threads"`
	Notes       []string `json:"notes,omitempty"`
}

// PreviewPlans resolves the selection against the active set without
// running anything.
// POST /api/plans
func (h *Handlers) PreviewPlans(w http.ResponseWriter, r *http.Request) {
	var sel plan.Selection
	if err := decodeJSON(r, &sel); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	jobs, err := h.session.Plans(sel)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]planView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, planView{
			EntryID:     job.Entry.ID,
			DisplayName: job.Entry.DisplayName,
			Output:      job.Output,
			Container:   job.Plan.Container,
			VideoCodec:  job.Plan.VideoCodec,
			AudioCodec:  job.Plan.AudioCodec,
			Threads:     job.Plan.Threads,
			Notes:       job.Plan.Notes,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, views)
}
