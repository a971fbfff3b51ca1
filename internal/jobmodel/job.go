// Package jobmodel defines the central Job entity and its satellite types.
package jobmodel

import "time"

// Status is one of the five legal job states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is one of the five legal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Job is the central entity: one row per build-and-deploy run.
//
// Status transitions form the DAG pending -> running -> {completed, failed};
// {completed, failed} -> expired. StartedAt is non-nil iff Status >= running;
// CompletedAt is non-nil iff Status is completed, failed, or expired;
// ErrorMessage is non-nil iff Status is failed.
type Job struct {
	ID     string  `json:"id" db:"id"`
	Prompt string  `json:"prompt" db:"prompt"`
	Model  string  `json:"model" db:"model"`
	Status Status  `json:"status" db:"status"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty" db:"expires_at"`

	PreviewURL   *string `json:"previewUrl,omitempty" db:"preview_url"`
	DeployedURL  *string `json:"deployedUrl,omitempty" db:"deployed_url"`
	ErrorMessage *string `json:"errorMessage,omitempty" db:"error_message"`

	FileCount   *int `json:"fileCount,omitempty" db:"file_count"`
	LinesOfCode *int `json:"linesOfCode,omitempty" db:"lines_of_code"`

	PromptTokens     *int     `json:"promptTokens,omitempty" db:"prompt_tokens"`
	CompletionTokens *int     `json:"completionTokens,omitempty" db:"completion_tokens"`
	TotalTokens      *int     `json:"totalTokens,omitempty" db:"total_tokens"`
	Cost             *float64 `json:"cost,omitempty" db:"cost"`

	LLMLatencyMs       *int `json:"llmLatencyMs,omitempty" db:"llm_latency_ms"`
	InstallDurationMs  *int `json:"installDurationMs,omitempty" db:"install_duration_ms"`
	BuildDurationMs    *int `json:"buildDurationMs,omitempty" db:"build_duration_ms"`
	DeployDurationMs   *int `json:"deployDurationMs,omitempty" db:"deploy_duration_ms"`
	TotalDurationMs    *int `json:"totalDurationMs,omitempty" db:"total_duration_ms"`

	BuildLogKey  *string `json:"buildLogKey,omitempty" db:"build_log_key"`
	DeployLogKey *string `json:"deployLogKey,omitempty" db:"deploy_log_key"`

	WorkerName *string `json:"workerName,omitempty" db:"worker_name"`
}

// ListItem is the projection returned by listJobs: id, truncated prompt,
// model, status, createdAt, deployedUrl only.
type ListItem struct {
	ID          string    `json:"id"`
	Prompt      string    `json:"prompt"`
	Model       string    `json:"model"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	DeployedURL *string   `json:"deployedUrl,omitempty"`
}

const promptTruncateLen = 100

// TruncatePrompt implements the list-projection rule: a prompt of length
// exactly 100 is returned untouched; length 101+ is cut to 100 runes with a
// trailing ellipsis.
func TruncatePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptTruncateLen {
		return prompt
	}
	return string(runes[:promptTruncateLen]) + "…"
}

// GeneratedFile is one file in an LLM-produced or normalized project tree.
// Path is always project-relative, never absolute.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NimbusConfig is the optional per-project descriptor embedded as
// nimbus.config.json in the generated file tree.
type NimbusConfig struct {
	Framework  string `json:"framework,omitempty"`
	Target     string `json:"target,omitempty"`
	AssetsDir  string `json:"assetsDir,omitempty"`
	WorkerEntry string `json:"workerEntry,omitempty"`
}

// Metrics bundles the fields written together at Finalize.
type Metrics struct {
	FileCount          int
	LinesOfCode        int
	PromptTokens       int
	CompletionTokens   int
	TotalTokens        int
	Cost               float64
	LLMLatencyMs       int
	InstallDurationMs  int
	BuildDurationMs    int
	DeployDurationMs   int
	TotalDurationMs    int
}

// CompletionExtras bundles the optional fields markCompleted/markFailed both
// accept alongside their primary argument.
type CompletionExtras struct {
	ExpiresAt    time.Time
	WorkerName   string
	BuildLogKey  string
	DeployLogKey string
}
