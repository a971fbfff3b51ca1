package llmclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_SchemaRejectionTriggersExactlyOneRetryWithoutDescriptor(t *testing.T) {
	var requests []chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creq chatRequest
		if err := json.NewDecoder(r.Body).Decode(&creq); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		requests = append(requests, creq)

		w.Header().Set("Content-Type", "application/json")
		if len(requests) == 1 {
			json.NewEncoder(w).Encode(chatResponse{
				Error: &struct {
					Message string `json:"message"`
				}{Message: "this model does not support response_format"},
			})
			return
		}

		resp := chatResponse{}
		resp.Choices = []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{
			{Message: struct {
				Content string `json:"content"`
			}{Content: `{"files": [{"path": "index.html", "content": "<h1>hi</h1>"}]}`}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient("openrouter", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	result, err := client.Complete(t.Context(), Request{Model: "m", SystemPrompt: "sys", UserPrompt: "build a blog"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(requests) != 2 {
		t.Fatalf("got %d requests, want exactly 2 (one rejected, one retry)", len(requests))
	}
	if requests[0].ResponseFormat == nil {
		t.Fatal("first request should include the response_format descriptor")
	}
	if requests[1].ResponseFormat != nil {
		t.Fatal("retry request should omit the response_format descriptor")
	}
	if len(result.Files) != 1 || result.Files[0].Path != "index.html" {
		t.Fatalf("Complete() files = %+v", result.Files)
	}
}

func TestComplete_SuccessOnFirstAttemptNoRetry(t *testing.T) {
	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		resp := chatResponse{}
		resp.Choices = []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{
			{Message: struct {
				Content string `json:"content"`
			}{Content: `{"files": [{"path": "index.html", "content": "<h1>hi</h1>"}]}`}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient("openrouter", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	result, err := client.Complete(t.Context(), Request{Model: "m", SystemPrompt: "sys", UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if requests != 1 {
		t.Fatalf("requests = %d, want 1", requests)
	}
	if len(result.Files) != 1 || result.Files[0].Path != "index.html" {
		t.Fatalf("Complete() files = %+v", result.Files)
	}
}

func TestComplete_EmptyFilesArrayIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := chatResponse{}
		resp.Choices = []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{
			{Message: struct {
				Content string `json:"content"`
			}{Content: `{"files": []}`}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client, err := NewClient("openrouter", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.Complete(t.Context(), Request{Model: "m", SystemPrompt: "sys", UserPrompt: "hi"}); err == nil {
		t.Fatal("Complete() with an empty files array should return an error")
	}
}
