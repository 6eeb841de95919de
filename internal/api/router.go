package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
)

// Deps are the collaborators of the HTTP API. Archive and Metrics are optional.
type Deps struct {
	Registry *scanner.Registry
	Archive  storage.Archive
	Metrics  http.Handler
	Logger   zerolog.Logger
}

var endpoints = []string{
	"POST /v1/scans",
	"GET /v1/scans",
	"GET /v1/scans/{id}",
	"POST /v1/scans/{id}/stop",
	"GET /v1/scans/{id}/results",
	"DELETE /v1/scans/{id}",
	"GET /v1/history",
	"GET /v1/history/{id}",
	"POST /start_scan",
	"GET /scan_status/{id}",
	"POST /stop_scan/{id}",
	"GET /scan_results/{id}",
	"GET /download_results/{id}",
	"GET /health",
	"GET /healthz",
}

// NewRouter creates a new http.ServeMux and registers the API handlers.
func NewRouter(deps Deps) http.Handler {
	mux := http.NewServeMux()
	h := NewHandlers(deps.Registry, deps.Archive, deps.Logger)

	mux.HandleFunc("POST /v1/scans", h.StartScan)
	mux.HandleFunc("GET /v1/scans", h.ListScans)
	mux.HandleFunc("GET /v1/scans/{id}", h.ScanStatus)
	mux.HandleFunc("POST /v1/scans/{id}/stop", h.StopScan)
	mux.HandleFunc("GET /v1/scans/{id}/results", h.ScanResults)
	mux.HandleFunc("DELETE /v1/scans/{id}", h.DeleteScan)
	mux.HandleFunc("GET /v1/history", h.ListHistory)
	mux.HandleFunc("GET /v1/history/{id}", h.GetHistory)

	// Routes kept for clients of the original form-based tool.
	mux.HandleFunc("POST /start_scan", h.StartScan)
	mux.HandleFunc("GET /scan_status/{id}", h.ScanStatus)
	mux.HandleFunc("POST /stop_scan/{id}", h.StopScan)
	mux.HandleFunc("GET /scan_results/{id}", h.ScanResults)
	mux.HandleFunc("GET /download_results/{id}", h.DownloadResults)

	mux.HandleFunc("GET /health", h.Healthz)
	mux.HandleFunc("GET /healthz", h.Healthz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	return logRequests(deps.Logger, mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}
