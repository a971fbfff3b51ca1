package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

const (
	maxResponseSize  = 10 << 20 // 10MB
	requestTemperature = 0.7
	requestMaxTokens   = 8192
	costLookupDelay    = 500 * time.Millisecond
)

// Client posts chat-style generation requests to an LLM provider and parses
// the file-tree response this orchestrator needs.
type Client struct {
	provider   Provider
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithRetryConfig(r RetryConfig) Option  { return func(c *Client) { c.retry = r } }
func WithLogger(l *slog.Logger) Option      { return func(c *Client) { c.logger = l } }
func WithBaseURL(u string) Option           { return func(c *Client) { c.baseURL = u } }

// NewClient constructs a Client bound to a named provider ("openrouter",
// "openai", ...).
func NewClient(providerName string, opts ...Option) (*Client, error) {
	p, ok := GetProvider(providerName)
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q", providerName)
	}
	c := &Client{
		provider:   p,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		retry:      DefaultRetryConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request is a single generation request: model, framework prompt rules,
// and the raw user prompt.
type Request struct {
	Model         string
	SystemPrompt  string
	UserPrompt    string
}

// Result bundles the parsed files with usage/cost/latency metrics.
type Result struct {
	Files        []jobmodel.GeneratedFile
	PromptTokens int
	CompletionTokens int
	TotalTokens  int
	Cost         float64
	LatencyMs    int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int      `json:"prompt_tokens"`
		CompletionTokens int      `json:"completion_tokens"`
		TotalTokens      int      `json:"total_tokens"`
		Cost             *float64 `json:"cost,omitempty"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// filesSchema is the strict JSON-schema descriptor constraining the
// response to {files: [{path, content}, ...]}.
var filesSchema = json.RawMessage(`{
  "name": "generated_files",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "files": {
        "type": "array",
        "items": {
          "type": "object",
          "properties": {
            "path": {"type": "string"},
            "content": {"type": "string"}
          },
          "required": ["path", "content"]
        }
      }
    },
    "required": ["files"]
  }
}`)

// Complete posts req, requiring a JSON object {files: [{path, content}]}.
// The first attempt includes a strict response_format descriptor; if the
// provider rejects structured output, exactly one retry is issued without
// it. Cost is read from the primary response when present, otherwise a
// best-effort secondary lookup is attempted after a short delay.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	body, raw, genID, err := c.doChatWithFallback(ctx, req)
	if err != nil {
		return nil, err
	}

	files, err := parseFilesResponse(raw)
	if err != nil {
		return nil, apperr.LLMFailure(err.Error(), err)
	}

	cost := 0.0
	if body.Usage.Cost != nil {
		cost = *body.Usage.Cost
	} else if genID != "" {
		cost = c.lookupCost(ctx, genID)
	}

	return &Result{
		Files:            files,
		PromptTokens:     body.Usage.PromptTokens,
		CompletionTokens: body.Usage.CompletionTokens,
		TotalTokens:      body.Usage.TotalTokens,
		Cost:             cost,
		LatencyMs:        int(time.Since(start).Milliseconds()),
	}, nil
}

// doChatWithFallback issues the primary schema-constrained request, and on
// a schema-rejection error retries exactly once without the descriptor.
func (c *Client) doChatWithFallback(ctx context.Context, req Request) (*chatResponse, string, string, error) {
	body, raw, err := c.doChat(ctx, req, true)
	if err == nil {
		return body, raw, body.ID, nil
	}

	rejectErr, ok := err.(*schemaRejectedError)
	if !ok {
		return nil, "", "", err
	}
	c.logger.Info("llm rejected structured output, retrying without schema", "message", rejectErr.message)

	body, raw, err = c.doChat(ctx, req, false)
	if err != nil {
		return nil, "", "", err
	}
	return body, raw, body.ID, nil
}

type schemaRejectedError struct{ message string }

func (e *schemaRejectedError) Error() string { return e.message }

func (c *Client) doChat(ctx context.Context, req Request, withSchema bool) (*chatResponse, string, error) {
	creq := chatRequest{
		Model:       req.Model,
		Temperature: requestTemperature,
		MaxTokens:   requestMaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if withSchema {
		creq.ResponseFormat = &responseFormat{Type: "json_schema", JSONSchema: filesSchema}
	}

	payload, err := json.Marshal(creq)
	if err != nil {
		return nil, "", apperr.LLMFailure("marshal request", err)
	}

	url := c.provider.BuildURL(c.baseURL)
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, "", apperr.LLMFailure("build request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		c.provider.SetHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = apperr.LLMFailure("http request failed", err)
			c.sleepBackoff(ctx, attempt)
			continue
		}

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		resp.Body.Close()
		if readErr != nil {
			lastErr = apperr.LLMFailure("read response body", readErr)
			c.sleepBackoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			lastErr = apperr.LLMFailure(fmt.Sprintf("llm provider returned %d", resp.StatusCode), nil)
			c.sleepBackoff(ctx, attempt)
			continue
		}

		var body chatResponse
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, "", apperr.LLMFailure("parse llm response", err)
		}

		if body.Error != nil {
			if withSchema && isSchemaRejection(body.Error.Message) {
				return nil, "", &schemaRejectedError{message: body.Error.Message}
			}
			return nil, "", apperr.LLMFailure(body.Error.Message, nil)
		}

		if resp.StatusCode != http.StatusOK {
			if withSchema && isSchemaRejection(string(raw)) {
				return nil, "", &schemaRejectedError{message: string(raw)}
			}
			return nil, "", apperr.LLMFailure(fmt.Sprintf("llm provider returned %d", resp.StatusCode), nil)
		}

		if len(body.Choices) == 0 {
			return nil, "", apperr.LLMFailure("llm response had no choices", nil)
		}

		return &body, body.Choices[0].Message.Content, nil
	}

	return nil, "", lastErr
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) {
	d := calculateBackoff(c.retry, attempt)
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// parseFilesResponse extracts and validates the {files: [...]} payload from
// raw model content.
func parseFilesResponse(content string) ([]jobmodel.GeneratedFile, error) {
	cleaned := ExtractJSON(content)

	var parsed struct {
		Files []jobmodel.GeneratedFile `json:"files"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		tail := content
		if len(tail) > 500 {
			tail = tail[:500]
		}
		return nil, fmt.Errorf("parse llm file tree: %w (content: %s)", err, tail)
	}
	if len(parsed.Files) == 0 {
		return nil, fmt.Errorf("llm response contained no files")
	}
	for i, f := range parsed.Files {
		if f.Path == "" {
			return nil, fmt.Errorf("file at index %d missing path", i)
		}
	}
	return parsed.Files, nil
}

// lookupCost performs the best-effort secondary "generation details" cost
// lookup; any failure yields zero rather than failing the request.
func (c *Client) lookupCost(ctx context.Context, generationID string) float64 {
	orp, ok := c.provider.(*OpenRouterProvider)
	if !ok {
		return 0
	}

	select {
	case <-ctx.Done():
		return 0
	case <-time.After(costLookupDelay):
	}

	url := orp.generationDetailsURL(c.baseURL, generationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}
	orp.SetHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0
	}

	var details struct {
		Data struct {
			TotalCost float64 `json:"total_cost"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &details); err != nil {
		return 0
	}
	return details.Data.TotalCost
}
