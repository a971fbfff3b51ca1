// Package httpapi implements the HTTP surface (C8): request routing, SSE
// framing for the job pipeline, and the bearer-token auth gate for log
// retrieval.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/nimbusd/internal/jobstore"
	"github.com/c360studio/nimbusd/internal/logarchive"
	"github.com/c360studio/nimbusd/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Server bundles the dependencies the HTTP surface needs.
type Server struct {
	Pipeline  *pipeline.Pipeline
	Store     *jobstore.Store
	Archive   *logarchive.Archive
	AuthToken string
	Logger    *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Router builds the chi router with every route in the external interface
// table: POST/GET /api/jobs, GET /api/jobs/{id}, GET /api/jobs/{id}/logs,
// the legacy POST /build alias, GET /health, GET /metrics, and CORS
// preflight on every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Auth"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/jobs", s.handleCreateJob)
	r.Get("/api/jobs", s.handleListJobs)
	r.Get("/api/jobs/{id}", s.handleGetJob)
	r.Get("/api/jobs/{id}/logs", s.handleGetJobLogs)
	r.Post("/build", s.handleCreateJob) // legacy alias

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
