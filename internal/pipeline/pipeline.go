// Package pipeline implements the job pipeline (C7): a single forward
// sequence per job driven by one asynchronous task per POST /api/jobs
// request, producing a stream of progress events and mutating the job
// store and log archive as it goes.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/deploy"
	"github.com/c360studio/nimbusd/internal/framework"
	"github.com/c360studio/nimbusd/internal/jobmodel"
	"github.com/c360studio/nimbusd/internal/llmclient"
	"github.com/c360studio/nimbusd/internal/logarchive"
	"github.com/c360studio/nimbusd/internal/metrics"
	"github.com/c360studio/nimbusd/internal/sandbox"
)

// Store is the subset of jobstore.Store the pipeline depends on.
type Store interface {
	CreateJob(ctx context.Context, job *jobmodel.Job) error
	MarkRunning(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id string, completedAt time.Time, deployedURL string, m jobmodel.Metrics, extras jobmodel.CompletionExtras) error
	MarkFailed(ctx context.Context, id string, message string, completedAt time.Time, extras jobmodel.CompletionExtras) error
}

// Archive is the subset of logarchive.Archive the pipeline depends on.
type Archive interface {
	Put(ctx context.Context, key string, content []byte) error
}

// EmitFunc streams one SSE event; the HTTP surface serializes this under a
// single writer.
type EmitFunc func(jobmodel.Event)

// Pipeline wires C3-C6 together with C1/C2, holding no state between calls.
type Pipeline struct {
	Store        Store
	Archive      Archive
	LLM          *llmclient.Client
	Frameworks   *framework.Registry
	SandboxDriver *sandbox.Driver
	Deploy       deploy.Credentials
	DefaultModel string
	Retention    time.Duration
	Logger       *slog.Logger

	systemPromptBase string
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

const defaultSystemPromptBase = "You generate a complete, buildable web project as a JSON object: " +
	`{"files": [{"path": "relative/path", "content": "file contents"}, ...]}. ` +
	"Paths are project-relative, never absolute. Do not include any prose outside the JSON object."

// ValidatePrompt implements the Accept stage's body validation, usable by
// the HTTP surface before it commits to returning an SSE stream.
func ValidatePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return apperr.BadRequest("prompt must be a non-empty string")
	}
	return nil
}

// Run executes the full pipeline for one job: accept, mark running,
// generate, build, deploy, archive, finalize, teardown. It emits progress
// events via emit and returns the final job id (even on failure, so the
// caller can log it) and any pipeline-level error.
func (p *Pipeline) Run(ctx context.Context, prompt, model string, emit EmitFunc) (string, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}
	if model == "" {
		model = p.DefaultModel
	}

	job := &jobmodel.Job{
		ID:        "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Prompt:    prompt,
		Model:     model,
		Status:    jobmodel.StatusPending,
		CreatedAt: timeNow(),
	}

	if err := p.Store.CreateJob(ctx, job); err != nil {
		emit(jobmodel.EventErrorMsg(err.Error()))
		return job.ID, err
	}
	emit(jobmodel.EventJobCreated(job.ID))

	startedAt := timeNow()
	if err := p.Store.MarkRunning(ctx, job.ID, startedAt); err != nil {
		emit(jobmodel.EventErrorMsg(err.Error()))
		return job.ID, err
	}

	result, sb, pipelineErr := p.runStages(ctx, job, emit)

	var failureBuildKey, failureDeployKey string
	if pipelineErr != nil && sb != nil {
		// Best-effort archival of whatever logs were produced before the
		// failure, while the sandbox is still alive to read them from.
		failureBuildKey, failureDeployKey = p.archivePartial(ctx, job.ID, sb)
	}

	// Teardown always runs, on every exit path, whether the pipeline
	// succeeded or failed.
	if sb != nil {
		if err := sb.Destroy(context.WithoutCancel(ctx)); err != nil {
			p.logger().Warn("sandbox teardown failed", "job_id", job.ID, "error", err)
		}
	}

	if pipelineErr != nil {
		p.finalizeFailure(ctx, job, startedAt, pipelineErr, failureBuildKey, failureDeployKey, emit)
		return job.ID, pipelineErr
	}

	p.finalizeSuccess(ctx, job, startedAt, result, emit)
	return job.ID, nil
}

// archivePartial best-effort archives whatever build/deploy logs exist on
// a sandbox that did not reach a successful deploy; a failure during
// archival is only logged and must not overwrite the original pipeline
// error surfaced to the client.
func (p *Pipeline) archivePartial(ctx context.Context, jobID string, sb sandbox.Sandbox) (buildKey, deployKey string) {
	if log, err := sb.ReadFile(ctx, "/root/app/.nimbus/build.log"); err == nil && len(log) > 0 {
		key := logarchive.Key(jobID, "build")
		if err := p.Archive.Put(ctx, key, log); err != nil {
			p.logger().Warn("archive partial build log failed", "job_id", jobID, "error", err)
		} else {
			buildKey = key
		}
	}
	if log, err := sb.ReadFile(ctx, "/root/app/.nimbus/deploy.log"); err == nil && len(log) > 0 {
		key := logarchive.Key(jobID, "deploy")
		if err := p.Archive.Put(ctx, key, []byte(deploy.Sanitize(string(log)))); err != nil {
			p.logger().Warn("archive partial deploy log failed", "job_id", jobID, "error", err)
		} else {
			deployKey = key
		}
	}
	return buildKey, deployKey
}

// stageResult accumulates everything finalize needs from the generate,
// build, and deploy stages.
type stageResult struct {
	fileCount        int
	linesOfCode      int
	llmResult        *llmclient.Result
	buildResult      *sandbox.BuildResult
	deployResult     *deploy.Result
	buildLogTail     string
	deployLogTail    string
	buildLogKey      string
	deployLogKey     string
	deployDurationMs int
}

// runStages runs stages 3-6 (Generate, Build, Deploy, Archive) and returns
// whatever sandbox was provisioned (possibly nil) so the caller can always
// tear it down, plus the terminal error if any stage failed.
func (p *Pipeline) runStages(ctx context.Context, job *jobmodel.Job, emit EmitFunc) (*stageResult, sandbox.Sandbox, error) {
	res := &stageResult{}

	emit(jobmodel.EventGenerating())
	generateStart := timeNow()
	systemPrompt := p.buildSystemPrompt(job.Prompt)
	llmRes, err := p.LLM.Complete(ctx, llmclient.Request{
		Model:        job.Model,
		SystemPrompt: systemPrompt,
		UserPrompt:   job.Prompt,
	})
	metrics.StageDuration.WithLabelValues("generate").Observe(timeNow().Sub(generateStart).Seconds())
	if err != nil {
		return res, nil, err
	}
	res.llmResult = llmRes
	emit(jobmodel.EventGenerated(len(llmRes.Files)))

	explicit := framework.ParseNimbusConfig(llmRes.Files)
	resolution := p.Frameworks.ResolveFramework(llmRes.Files, explicit)
	normalizedFiles, cfg := framework.Normalize(llmRes.Files, resolution)

	res.fileCount = len(normalizedFiles)
	res.linesOfCode = countLines(normalizedFiles)

	buildStart := timeNow()
	sb, buildRes, err := p.SandboxDriver.Build(ctx, sandbox.BuildRequest{
		JobID:  job.ID,
		Files:  normalizedFiles,
		Config: cfg,
	}, sandbox.EmitFunc(emit))
	metrics.StageDuration.WithLabelValues("build").Observe(timeNow().Sub(buildStart).Seconds())
	if err != nil {
		if appErr, ok := asAppErr(err); ok {
			res.buildLogTail = appErr.LogTail
		}
		return res, sb, err
	}
	res.buildResult = buildRes

	emit(jobmodel.EventDeploying())
	deployStart := timeNow()
	deployRes, err := deploy.Deploy(ctx, sb, p.Deploy)
	deployDone := timeNow()
	metrics.StageDuration.WithLabelValues("deploy").Observe(deployDone.Sub(deployStart).Seconds())
	if err != nil {
		if appErr, ok := asAppErr(err); ok {
			res.deployLogTail = appErr.LogTail
		}
		return res, sb, err
	}
	res.deployResult = deployRes
	res.deployDurationMs = int(deployDone.Sub(deployStart).Milliseconds())
	emit(jobmodel.EventDeployed(deployRes.DeployedURL))

	res.buildLogKey, res.deployLogKey = p.archive(ctx, job.ID, sb, deployRes)

	return res, sb, nil
}

// archive is best-effort: failures do not fail the job, only get logged.
func (p *Pipeline) archive(ctx context.Context, jobID string, sb sandbox.Sandbox, deployRes *deploy.Result) (buildKey, deployKey string) {
	if buildLog, err := sb.ReadFile(ctx, "/root/app/.nimbus/build.log"); err == nil {
		key := logarchive.Key(jobID, "build")
		if err := p.Archive.Put(ctx, key, buildLog); err != nil {
			p.logger().Warn("archive build log failed", "job_id", jobID, "error", err)
		} else {
			buildKey = key
		}
	}

	deployLog := deploy.Sanitize(deployRes.DeployLog)
	key := logarchive.Key(jobID, "deploy")
	if err := p.Archive.Put(ctx, key, []byte(deployLog)); err != nil {
		p.logger().Warn("archive deploy log failed", "job_id", jobID, "error", err)
	} else {
		deployKey = key
	}

	return buildKey, deployKey
}

func (p *Pipeline) finalizeSuccess(ctx context.Context, job *jobmodel.Job, startedAt time.Time, res *stageResult, emit EmitFunc) {
	completedAt := timeNow()
	expiresAt := completedAt.Add(p.Retention)

	m := jobmodel.Metrics{
		FileCount:        res.fileCount,
		LinesOfCode:      res.linesOfCode,
		PromptTokens:     res.llmResult.PromptTokens,
		CompletionTokens: res.llmResult.CompletionTokens,
		TotalTokens:      res.llmResult.TotalTokens,
		Cost:             res.llmResult.Cost,
		LLMLatencyMs:     res.llmResult.LatencyMs,
		InstallDurationMs: res.buildResult.InstallDurationMs,
		BuildDurationMs:   res.buildResult.BuildDurationMs,
		DeployDurationMs:  res.deployDurationMs,
		TotalDurationMs:   int(completedAt.Sub(startedAt).Milliseconds()),
	}

	extras := jobmodel.CompletionExtras{
		ExpiresAt:    expiresAt,
		WorkerName:   jobmodel.WorkerName(job.ID),
		BuildLogKey:  res.buildLogKey,
		DeployLogKey: res.deployLogKey,
	}

	if err := p.Store.MarkCompleted(ctx, job.ID, completedAt, res.deployResult.DeployedURL, m, extras); err != nil {
		// A store failure during the final write must not overwrite the
		// outward success signal already computed; log only.
		p.logger().Error("mark completed failed", "job_id", job.ID, "error", err)
	}

	emit(jobmodel.EventComplete(res.deployResult.DeployedURL, res.deployResult.DeployedURL, m))
	metrics.JobsTotal.WithLabelValues(string(jobmodel.StatusCompleted)).Inc()
}

func (p *Pipeline) finalizeFailure(ctx context.Context, job *jobmodel.Job, startedAt time.Time, pipelineErr error, buildLogKey, deployLogKey string, emit EmitFunc) {
	completedAt := timeNow()
	expiresAt := completedAt.Add(p.Retention)

	message := pipelineErr.Error()

	extras := jobmodel.CompletionExtras{ExpiresAt: expiresAt, BuildLogKey: buildLogKey, DeployLogKey: deployLogKey}
	// A store failure during this final write is logged but must not
	// overwrite the outward error message already decided above.
	if err := p.Store.MarkFailed(ctx, job.ID, message, completedAt, extras); err != nil {
		p.logger().Error("mark failed failed", "job_id", job.ID, "error", err)
	}

	emit(jobmodel.EventErrorMsg(message))
	metrics.JobsTotal.WithLabelValues(string(jobmodel.StatusFailed)).Inc()
}

func (p *Pipeline) buildSystemPrompt(prompt string) string {
	rules := p.Frameworks.SynthesizePromptRules(prompt)
	return defaultSystemPromptBase + "\n\n" + rules
}

func countLines(files []jobmodel.GeneratedFile) int {
	total := 0
	for _, f := range files {
		total += strings.Count(f.Content, "\n")
	}
	return total
}

func asAppErr(err error) (*apperr.Error, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if ae, ok := e.(*apperr.Error); ok {
			return ae, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			return nil, false
		}
		e = u.Unwrap()
	}
	return nil, false
}

// timeNow is the only place pipeline reads the wall clock, kept as a var so
// tests can substitute a deterministic clock.
var timeNow = func() time.Time { return time.Now().UTC() }
