package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/streaming"
	"media-converter/internal/workspace"
)

// WorkspaceListing is one directory of the workspace tree.
type WorkspaceListing struct {
	Path    string           `json:"path"`
	Entries []workspace.Info `json:"entries"`
}

type execRequest struct {
	Command string `json:"command"`
}

// ExecResponse carries the outcome of a terminal command.
type ExecResponse struct {
	ExitCode int      `json:"exitCode"`
	Output   []string `json:"output"`
	Error    string   `json:"error,omitempty"`
}

// ListWorkspace lists one directory, the root by default.
// GET /api/workspace?path=
func (h *Handlers) ListWorkspace(w http.ResponseWriter, r *http.Request) {
	dir := workspace.NormalizeRelative(r.URL.Query().Get("path"))
	entries, err := h.workspace.List(dir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, WorkspaceListing{Path: dir, Entries: entries})
}

// UploadWorkspace adds the uploaded files to the directory named by ?path=.
// Missing directories are created and colliding names get a numbered
// suffix.
// POST /api/workspace/files
func (h *Handlers) UploadWorkspace(w http.ResponseWriter, r *http.Request) {
	files, ok := h.readMultipart(w, r)
	if !ok {
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	dir := workspace.NormalizeRelative(r.URL.Query().Get("path"))
	added := make([]string, 0, len(files))
	for _, fh := range files {
		data, err := readPart(fh)
		if err != nil {
			logging.Error("Failed to read upload %s: %v", fh.Filename, err)
			writeJSONError(w, "Failed to read upload", http.StatusBadRequest)
			return
		}
		metrics.UploadBytesTotal.Add(float64(len(data)))

		stored, err := h.workspace.AddFile(r.Context(), path.Join(dir, fh.Filename), data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		added = append(added, stored)
	}
	writeJSONResponse(w, http.StatusCreated, map[string][]string{"added": added})
}

// DeleteWorkspace removes a file or directory.
// DELETE /api/workspace/{path}
func (h *Handlers) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.workspace.Delete(r.Context(), mux.Vars(r)["path"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "deleted")
}

// DownloadWorkspace sends one workspace file.
// GET /api/workspace/download/{path}
func (h *Handlers) DownloadWorkspace(w http.ResponseWriter, r *http.Request) {
	p := mux.Vars(r)["path"]
	data, err := h.workspace.Read(p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.serve(w, r, streaming.Download{Name: path.Base(p), Data: data, Kind: "workspace"})
}

// UnzipWorkspace expands a zip file next to itself.
// POST /api/workspace/unzip/{path}
func (h *Handlers) UnzipWorkspace(w http.ResponseWriter, r *http.Request) {
	added, err := h.workspace.UnzipInPlace(r.Context(), mux.Vars(r)["path"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string][]string{"added": added})
}

// ExecWorkspace runs a terminal command against the workspace and returns
// its output. A non-zero exit code is a successful request; only a command
// that could not run is an error.
// POST /api/workspace/exec
func (h *Handlers) ExecWorkspace(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, r, workspace.ErrEmptyCommand)
		return
	}

	resp := ExecResponse{Output: []string{}}
	code, err := h.workspace.Exec(r.Context(), req.Command, func(line string) {
		resp.Output = append(resp.Output, line)
	})
	resp.ExitCode = code
	if err != nil {
		if statusFor(err) != http.StatusInternalServerError {
			writeError(w, r, err)
			return
		}
		resp.Error = err.Error()
		writeJSONResponse(w, http.StatusBadGateway, resp)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}
