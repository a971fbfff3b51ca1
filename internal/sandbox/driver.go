package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

// Driver provisions a sandbox, materializes a project tree, installs and
// builds it, verifies artifacts, and writes the deployment descriptor. It
// holds no per-job state between calls; each BuildRequest gets a fresh
// Sandbox from Provisioner.
type Driver struct {
	Provisioner Provisioner
	Logger      *slog.Logger
}

// BuildRequest bundles everything the driver needs for one job.
type BuildRequest struct {
	JobID  string
	Files  []jobmodel.GeneratedFile
	Config jobmodel.NimbusConfig
}

// BuildResult is returned on success; the sandbox remains alive (teardown is
// the pipeline's responsibility, run on every exit path including deploy).
type BuildResult struct {
	Sandbox           Sandbox
	InstallDurationMs int
	BuildDurationMs   int
}

// EmitFunc streams progress events to the pipeline's SSE sink.
type EmitFunc func(jobmodel.Event)

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Build runs the full sandbox pipeline: scaffold, write, install, build,
// verify artifacts, write the deploy descriptor. It always returns the
// provisioned Sandbox once provisioning itself succeeds (even on a later
// stage's failure) so the caller can destroy it on every exit path; sb is
// nil only if provisioning itself failed.
func (d *Driver) Build(ctx context.Context, req BuildRequest, emit EmitFunc) (Sandbox, *BuildResult, error) {
	sb, err := d.Provisioner.Provision(ctx, req.JobID)
	if err != nil {
		return nil, nil, apperr.BuildFailure(fmt.Sprintf("provision sandbox: %v", err), "", "")
	}

	emit(jobmodel.EventScaffolding())
	if err := d.scaffold(ctx, sb, req.JobID, req.Config); err != nil {
		return sb, nil, apperr.BuildFailure(err.Error(), sb.ID(), "")
	}

	emit(jobmodel.EventWriting())
	if err := d.writeFiles(ctx, sb, req.Files); err != nil {
		return sb, nil, apperr.BuildFailure(err.Error(), sb.ID(), "")
	}

	hasPkgJSON := hasFile(req.Files, "package.json")

	installMs := 0
	if hasPkgJSON {
		emit(jobmodel.EventInstalling())
		elapsed, err := d.install(ctx, sb, emit)
		if err != nil {
			return sb, nil, err
		}
		installMs = elapsed
	}

	buildMs := 0
	if hasPkgJSON && hasBuildScript(req.Files) {
		emit(jobmodel.EventBuilding())
		elapsed, err := d.build(ctx, sb, req.Config, emit)
		if err != nil {
			return sb, nil, err
		}
		buildMs = elapsed
	}

	if err := d.verifyAndWriteDescriptor(ctx, sb, req); err != nil {
		return sb, nil, apperr.BuildFailure(err.Error(), sb.ID(), "")
	}

	return sb, &BuildResult{Sandbox: sb, InstallDurationMs: installMs, BuildDurationMs: buildMs}, nil
}

func hasFile(files []jobmodel.GeneratedFile, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}

func hasBuildScript(files []jobmodel.GeneratedFile) bool {
	for _, f := range files {
		if f.Path != "package.json" {
			continue
		}
		var pkg struct {
			Scripts map[string]string `json:"scripts"`
		}
		if err := json.Unmarshal([]byte(f.Content), &pkg); err != nil {
			return false
		}
		_, ok := pkg.Scripts["build"]
		return ok
	}
	return false
}

// scaffold creates /root/app and /root/app/.nimbus, and for the
// next-on-workers target pre-writes a wrangler config referencing the
// OpenNext output paths (the only pre-build descriptor this driver ever
// writes).
func (d *Driver) scaffold(ctx context.Context, sb Sandbox, jobID string, cfg jobmodel.NimbusConfig) error {
	if _, err := sb.Exec(ctx, "mkdir -p /root/app/.nimbus", 10*time.Second); err != nil {
		return fmt.Errorf("scaffold: %w", err)
	}

	if cfg.Framework == "next" && cfg.Target == "workers" {
		wrangler := nextWranglerConfig(jobmodel.WorkerName(jobID))
		if err := sb.WriteFile(ctx, "wrangler.toml", []byte(wrangler)); err != nil {
			return fmt.Errorf("write wrangler.toml: %w", err)
		}
		if err := sb.WriteFile(ctx, "wrangler.nimbus.toml", []byte(wrangler)); err != nil {
			return fmt.Errorf("write wrangler.nimbus.toml: %w", err)
		}
	}
	return nil
}

func (d *Driver) writeFiles(ctx context.Context, sb Sandbox, files []jobmodel.GeneratedFile) error {
	for _, f := range files {
		if err := sb.WriteFile(ctx, f.Path, []byte(f.Content)); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// install runs `bun install --no-save`, redirecting to .nimbus/install.log,
// with a heartbeat and log-tail streamer running concurrently and stopped
// at stage end.
func (d *Driver) install(ctx context.Context, sb Sandbox, emit EmitFunc) (int, error) {
	start := time.Now()

	hb := startHeartbeat(ctx, func() { emit(jobmodel.EventInstalling()) })
	streamer := newLogStreamer(sb, "/root/app/.nimbus/install.log", "install", func(phase, msg string) {
		emit(jobmodel.EventLog(phase, msg))
	})
	go streamer.run(ctx)
	defer func() {
		hb.Stop()
		streamer.Stop()
	}()

	cmd := "bun install --no-save > /root/app/.nimbus/install.log 2>&1"
	result, err := sb.Exec(ctx, cmd, InstallTimeout)
	if err != nil {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/install.log")
		return 0, apperr.BuildFailure(fmt.Sprintf("install: %v\n--- install log (tail) ---\n%s", err, tail), sb.ID(), tail)
	}
	if result.ExitCode != 0 {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/install.log")
		return 0, apperr.BuildFailure(fmt.Sprintf("install exited %d\n--- install log (tail) ---\n%s", result.ExitCode, tail), sb.ID(), tail)
	}

	return int(time.Since(start).Milliseconds()), nil
}

// build runs the framework-appropriate build command(s), redirecting to
// .nimbus/build.log, with the same heartbeat/streamer pattern as install.
func (d *Driver) build(ctx context.Context, sb Sandbox, cfg jobmodel.NimbusConfig, emit EmitFunc) (int, error) {
	start := time.Now()

	hb := startHeartbeat(ctx, func() { emit(jobmodel.EventBuilding()) })
	streamer := newLogStreamer(sb, "/root/app/.nimbus/build.log", "build", func(phase, msg string) {
		emit(jobmodel.EventLog(phase, msg))
	})
	go streamer.run(ctx)
	defer func() {
		hb.Stop()
		streamer.Stop()
	}()

	if cfg.Framework == "next" && cfg.Target == "workers" {
		return d.buildNextOnWorkers(ctx, sb)
	}

	cmd := "CI=true bun run build > /root/app/.nimbus/build.log 2>&1"
	result, err := sb.Exec(ctx, cmd, NonNextBuildTimeout)
	if err != nil || result.ExitCode != 0 {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/build.log")
		msg := buildErrMsg(err, result, tail)
		return 0, apperr.BuildFailure(msg, sb.ID(), tail)
	}

	return int(time.Since(start).Milliseconds()), nil
}

func (d *Driver) buildNextOnWorkers(ctx context.Context, sb Sandbox) (int, error) {
	start := time.Now()

	nextCmd := "bunx next build > /root/app/.nimbus/build.log 2>&1"
	result, err := sb.Exec(ctx, nextCmd, NextBuildTimeout)
	if err != nil || result.ExitCode != 0 {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/build.log")
		return 0, apperr.BuildFailure(buildErrMsg(err, result, tail), sb.ID(), tail)
	}

	exists, err := sb.FileExists(ctx, ".next/standalone")
	if err != nil || !exists {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/build.log")
		return 0, apperr.BuildFailure("next build did not produce a standalone manifest", sb.ID(), tail)
	}

	openNextCmd := "bunx opennextjs-cloudflare build --skipNextBuild --skipWranglerConfigCheck --noMinify >> /root/app/.nimbus/build.log 2>&1"
	result, err = sb.Exec(ctx, openNextCmd, OpenNextBuildTimeout)
	if err != nil || result.ExitCode != 0 {
		tail, _ := readTail(ctx, sb, "/root/app/.nimbus/build.log")
		return 0, apperr.BuildFailure(buildErrMsg(err, result, tail), sb.ID(), tail)
	}

	return int(time.Since(start).Milliseconds()), nil
}

func buildErrMsg(err error, result ExecResult, tail string) string {
	if err != nil {
		return fmt.Sprintf("build: %v\n--- build log (tail) ---\n%s", err, tail)
	}
	return fmt.Sprintf("build exited %d\n--- build log (tail) ---\n%s", result.ExitCode, tail)
}

func nextWranglerConfig(name string) string {
	return fmt.Sprintf(`name = %q
main = ".open-next/worker.js"
compatibility_date = "2024-09-23"
compatibility_flags = ["nodejs_compat"]

[assets]
directory = ".open-next/assets"
binding = "ASSETS"
`, name)
}
