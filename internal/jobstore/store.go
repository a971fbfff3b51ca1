// Package jobstore implements the job store (C1): a single jobs table
// keyed by id, indexed by status and by created_at DESC, mutated only via
// single-row upserts using named parameters.
package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

// Store wraps a *sqlx.DB bound to the jobs table.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, verifies connectivity, and runs migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(sqlDB); err != nil {
		return nil, err
	}
	return &Store{db: sqlx.NewDb(sqlDB, "pgx")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateJob inserts a pending row.
func (s *Store) CreateJob(ctx context.Context, job *jobmodel.Job) error {
	const q = `
INSERT INTO jobs (id, prompt, model, status, created_at)
VALUES (:id, :prompt, :model, :status, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, job)
	if err != nil {
		return apperr.StoreFailure("create job", err)
	}
	return nil
}

// GetJob fetches a single job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*jobmodel.Job, error) {
	var job jobmodel.Job
	err := s.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(fmt.Sprintf("job %s not found", id))
	}
	if err != nil {
		return nil, apperr.StoreFailure("get job", err)
	}
	return &job, nil
}

// ListJobs returns up to limit jobs ordered by created_at DESC, truncating
// prompt to the list projection's 100-character rule.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]jobmodel.ListItem, error) {
	var jobs []jobmodel.Job
	err := s.db.SelectContext(ctx, &jobs,
		`SELECT * FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.StoreFailure("list jobs", err)
	}

	items := make([]jobmodel.ListItem, len(jobs))
	for i, j := range jobs {
		items[i] = jobmodel.ListItem{
			ID:          j.ID,
			Prompt:      jobmodel.TruncatePrompt(j.Prompt),
			Model:       j.Model,
			Status:      j.Status,
			CreatedAt:   j.CreatedAt,
			DeployedURL: j.DeployedURL,
		}
	}
	return items, nil
}

// MarkRunning transitions a job to running and stamps started_at.
func (s *Store) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	const q = `UPDATE jobs SET status = 'running', started_at = $2 WHERE id = $1`
	return s.exec(ctx, q, id, startedAt)
}

// MarkCompleted writes every metric field and the completion bookkeeping
// fields in one update, transitioning to completed.
func (s *Store) MarkCompleted(ctx context.Context, id string, completedAt time.Time, deployedURL string, m jobmodel.Metrics, extras jobmodel.CompletionExtras) error {
	const q = `
UPDATE jobs SET
  status = 'completed',
  completed_at = :completed_at,
  expires_at = :expires_at,
  preview_url = :url,
  deployed_url = :url,
  file_count = :file_count,
  lines_of_code = :lines_of_code,
  prompt_tokens = :prompt_tokens,
  completion_tokens = :completion_tokens,
  total_tokens = :total_tokens,
  cost = :cost,
  llm_latency_ms = :llm_latency_ms,
  install_duration_ms = :install_duration_ms,
  build_duration_ms = :build_duration_ms,
  deploy_duration_ms = :deploy_duration_ms,
  total_duration_ms = :total_duration_ms,
  worker_name = :worker_name,
  build_log_key = :build_log_key,
  deploy_log_key = :deploy_log_key
WHERE id = :id`

	args := map[string]any{
		"id":                  id,
		"completed_at":        completedAt,
		"expires_at":          extras.ExpiresAt,
		"url":                 deployedURL,
		"file_count":          m.FileCount,
		"lines_of_code":       m.LinesOfCode,
		"prompt_tokens":       m.PromptTokens,
		"completion_tokens":   m.CompletionTokens,
		"total_tokens":        m.TotalTokens,
		"cost":                m.Cost,
		"llm_latency_ms":      m.LLMLatencyMs,
		"install_duration_ms": m.InstallDurationMs,
		"build_duration_ms":   m.BuildDurationMs,
		"deploy_duration_ms":  m.DeployDurationMs,
		"total_duration_ms":   m.TotalDurationMs,
		"worker_name":         extras.WorkerName,
		"build_log_key":       nullableString(extras.BuildLogKey),
		"deploy_log_key":      nullableString(extras.DeployLogKey),
	}
	_, err := s.db.NamedExecContext(ctx, q, args)
	if err != nil {
		return apperr.StoreFailure("mark completed", err)
	}
	return nil
}

// MarkFailed records the terminal failed state with the error message and
// expiry, along with whatever log keys archival managed to produce.
func (s *Store) MarkFailed(ctx context.Context, id string, message string, completedAt time.Time, extras jobmodel.CompletionExtras) error {
	const q = `
UPDATE jobs SET
  status = 'failed',
  completed_at = :completed_at,
  expires_at = :expires_at,
  error_message = :error_message,
  worker_name = :worker_name,
  build_log_key = :build_log_key,
  deploy_log_key = :deploy_log_key
WHERE id = :id`

	args := map[string]any{
		"id":             id,
		"completed_at":   completedAt,
		"expires_at":     extras.ExpiresAt,
		"error_message":  message,
		"worker_name":    nullableString(extras.WorkerName),
		"build_log_key":  nullableString(extras.BuildLogKey),
		"deploy_log_key": nullableString(extras.DeployLogKey),
	}
	_, err := s.db.NamedExecContext(ctx, q, args)
	if err != nil {
		return apperr.StoreFailure("mark failed", err)
	}
	return nil
}

// GetJobLogKeys returns the build/deploy log object keys for a job.
func (s *Store) GetJobLogKeys(ctx context.Context, id string) (buildKey, deployKey *string, err error) {
	var row struct {
		BuildLogKey  *string `db:"build_log_key"`
		DeployLogKey *string `db:"deploy_log_key"`
	}
	dbErr := s.db.GetContext(ctx, &row, `SELECT build_log_key, deploy_log_key FROM jobs WHERE id = $1`, id)
	if dbErr == sql.ErrNoRows {
		return nil, nil, apperr.NotFound(fmt.Sprintf("job %s not found", id))
	}
	if dbErr != nil {
		return nil, nil, apperr.StoreFailure("get log keys", dbErr)
	}
	return row.BuildLogKey, row.DeployLogKey, nil
}

// ExpireJob clears external resource references and transitions to expired.
func (s *Store) ExpireJob(ctx context.Context, id string) error {
	const q = `
UPDATE jobs SET status = 'expired', worker_name = NULL, build_log_key = NULL, deploy_log_key = NULL
WHERE id = $1`
	return s.exec(ctx, q, id)
}

// JobsDueForSweep selects up to limit completed/failed jobs whose
// expires_at has passed.
func (s *Store) JobsDueForSweep(ctx context.Context, limit int) ([]jobmodel.Job, error) {
	var jobs []jobmodel.Job
	err := s.db.SelectContext(ctx, &jobs, `
SELECT * FROM jobs
WHERE status IN ('completed', 'failed') AND expires_at <= now()
ORDER BY expires_at ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, apperr.StoreFailure("select jobs due for sweep", err)
	}
	return jobs, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.StoreFailure("store exec", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
