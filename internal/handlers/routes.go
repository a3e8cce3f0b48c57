package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-converter/internal/middleware"
)

// Router registers every route. Uploads and terminal commands go through
// the per-client rate limit; request metrics are recorded per route
// template.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	limit := middleware.RateLimit(middleware.RateLimitConfig{RequestLimit: h.config.UploadRateLimit})
	limited := func(fn http.HandlerFunc) http.Handler { return limit(fn) }

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Converter
	r.HandleFunc("/api/mode", h.GetMode).Methods("GET")
	r.HandleFunc("/api/mode", h.SetMode).Methods("PUT")
	r.Handle("/api/uploads", limited(h.Upload)).Methods("POST")
	r.HandleFunc("/api/entries", h.ListEntries).Methods("GET")
	r.HandleFunc("/api/entries", h.ClearEntries).Methods("DELETE")
	r.HandleFunc("/api/entries/{id}", h.GetEntry).Methods("GET")
	r.HandleFunc("/api/entries/{id}", h.DeleteEntry).Methods("DELETE")
	r.HandleFunc("/api/analyze", h.Analyze).Methods("POST")
	r.HandleFunc("/api/plans", h.PreviewPlans).Methods("POST")
	r.HandleFunc("/api/convert", h.Convert).Methods("POST")
	r.HandleFunc("/api/status", h.GetStatus).Methods("GET")
	r.HandleFunc("/api/presets", h.GetPresets).Methods("GET")
	r.HandleFunc("/api/results", h.GetResults).Methods("GET")
	r.HandleFunc("/api/results/bundle", h.DownloadBundle).Methods("GET")
	r.HandleFunc("/api/results/file/{name}", h.DownloadResult).Methods("GET")
	r.HandleFunc("/api/logs", h.GetLogs).Methods("GET")
	r.HandleFunc("/api/events", h.Events).Methods("GET")

	// Workspace
	r.HandleFunc("/api/workspace", h.ListWorkspace).Methods("GET")
	r.Handle("/api/workspace/files", limited(h.UploadWorkspace)).Methods("POST")
	r.Handle("/api/workspace/exec", limited(h.ExecWorkspace)).Methods("POST")
	r.HandleFunc("/api/workspace/download/{path:.*}", h.DownloadWorkspace).Methods("GET")
	r.HandleFunc("/api/workspace/unzip/{path:.*}", h.UnzipWorkspace).Methods("POST")
	r.HandleFunc("/api/workspace/{path:.*}", h.DeleteWorkspace).Methods("DELETE")

	return r
}

// MetricsHandler returns the Prometheus handler served on the metrics port.
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
