package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/jobmodel"
	"github.com/c360studio/nimbusd/internal/pipeline"
)

type createJobRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// handleCreateJob accepts and validates the body synchronously; on success
// it returns an SSE stream immediately and runs the pipeline on a
// background task tied to the request's lifetime. The stream terminates
// with exactly one of "complete" or "error".
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, apperr.BadRequest("invalid JSON body"))
		return
	}
	if err := pipeline.ValidatePrompt(req.Prompt); err != nil {
		writeAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAppError(w, apperr.StoreFailure("streaming unsupported", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// SSE writes must not be subject to the server's normal write
	// deadline; this stream can legitimately run for minutes.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	var writeMu sync.Mutex
	send := func(ev jobmodel.Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			// The client disconnected; the pipeline continues to
			// completion to preserve durable job state, so we just stop
			// writing rather than aborting the run.
			return
		}
		flusher.Flush()
	}

	// The request's own context is canceled on client disconnect; detach
	// so the pipeline is never cut off mid-stage by that cancellation,
	// per the cancellation semantics in the concurrency model.
	pipelineCtx := context.WithoutCancel(r.Context())

	jobID, pipelineErr := s.Pipeline.Run(pipelineCtx, req.Prompt, req.Model, send)
	s.logger().Info("job pipeline finished", "job_id", jobID, "error", pipelineErr)
}

// handleListJobs returns the list projection: id, truncated prompt, model,
// status, createdAt, deployedUrl.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	items, err := s.Store.ListJobs(r.Context(), 100)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": items})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Store.GetJob(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleGetJobLogs requires the admin bearer token in the Auth header and
// returns the requested log phase as plain text.
func (s *Server) handleGetJobLogs(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Auth")
	if token == "" || token != s.AuthToken {
		writeAppError(w, apperr.Unauthorized("missing or invalid Auth header"))
		return
	}

	id := chi.URLParam(r, "id")
	phase := r.URL.Query().Get("type")
	if phase != "build" && phase != "deploy" {
		writeAppError(w, apperr.BadRequest("type must be 'build' or 'deploy'"))
		return
	}

	buildKey, deployKey, err := s.Store.GetJobLogKeys(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	var key *string
	if phase == "build" {
		key = buildKey
	} else {
		key = deployKey
	}
	if key == nil {
		writeAppError(w, apperr.NotFound("no "+phase+" log for this job"))
		return
	}

	content, err := s.Archive.Get(r.Context(), *key)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// writeAppError maps an apperr.Kind to its HTTP status and a JSON error
// body. Any error not recognized as *apperr.Error is surfaced as a 500.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch apperr.Of(err) {
	case apperr.KindBadRequest:
		status = http.StatusBadRequest
	case apperr.KindConfigMissing:
		status = http.StatusServiceUnavailable
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	}

	writeJSON(w, status, map[string]string{"error": message})
}
