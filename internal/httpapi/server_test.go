package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/nimbusd/internal/apperr"
)

func TestHandleHealth(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v, want status=ok", body)
	}
}

func TestRouter_NotFoundReturnsJSON(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestWriteAppError_MapsKindsToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", apperr.BadRequest("bad body"), http.StatusBadRequest},
		{"config missing", apperr.ConfigMissing("no api key"), http.StatusServiceUnavailable},
		{"not found", apperr.NotFound("job missing"), http.StatusNotFound},
		{"unauthorized", apperr.Unauthorized("no token"), http.StatusUnauthorized},
		{"unrecognized error defaults to 500", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tc.err)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestHandleGetJobLogs_MissingAuthHeaderRejected(t *testing.T) {
	s := &Server{AuthToken: "secret"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/logs?type=build", nil)

	s.handleGetJobLogs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleGetJobLogs_WrongAuthHeaderRejected(t *testing.T) {
	s := &Server{AuthToken: "secret"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/logs?type=build", nil)
	req.Header.Set("Auth", "wrong-token")

	s.handleGetJobLogs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleGetJobLogs_InvalidPhaseRejectedBeforeStoreAccess(t *testing.T) {
	s := &Server{AuthToken: "secret"}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/job-1/logs?type=bogus", nil)
	req.Header.Set("Auth", "secret")

	// Store is nil: if handleGetJobLogs reached it before validating phase,
	// this would panic instead of returning 400.
	s.handleGetJobLogs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
