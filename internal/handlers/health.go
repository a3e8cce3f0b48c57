package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-converter/internal/mediatypes"
	"media-converter/internal/queue"
	"media-converter/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Ready       bool   `json:"ready"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	WarmupError string `json:"warmupError,omitempty"`

	// Converter state
	Mode        mediatypes.MediaType `json:"mode"`
	State       queue.State          `json:"state"`
	EngineReady bool                 `json:"engineReady"`
	Entries     int                  `json:"entries"`
	Results     int                  `json:"results"`

	// Workspace tree
	WorkspaceFiles int `json:"workspaceFiles"`
	WorkspaceDirs  int `json:"workspaceDirs"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	ready, warmupErr := h.readiness()
	snap := h.session.Status()
	files, dirs := h.workspace.Counts()

	response := HealthResponse{
		Ready:          ready,
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		WarmupError:    warmupErr,
		Mode:           snap.Mode,
		State:          snap.State,
		EngineReady:    snap.EngineReady,
		Entries:        snap.Entries,
		Results:        snap.Results,
		WorkspaceFiles: files,
		WorkspaceDirs:  dirs,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	switch {
	case !ready:
		response.Status = statusStarting
	case warmupErr != "":
		response.Status = statusDegraded
	default:
		response.Status = statusHealthy
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service is ready to accept traffic
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	ready, _ := h.readiness()

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}

// GetVersion returns build information and the engine binary in use
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, struct {
		startup.BuildInfo
		Engine string `json:"engine"`
	}{startup.GetBuildInfo(), h.config.FFmpegPath})
}
