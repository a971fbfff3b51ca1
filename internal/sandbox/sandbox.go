// Package sandbox implements the sandbox build driver (C5): provisioning a
// disposable environment, materializing a project tree, running install and
// build with timeouts and heartbeats, tailing logs, and synthesizing the
// edge-worker deployment descriptor the deploy driver consumes.
package sandbox

import (
	"context"
	"time"
)

// ExecResult is the outcome of one command execution inside a sandbox.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Sandbox is the external collaborator contract: exec, writeFile, destroy.
// The driver must not assume incremental stdout delivery from Exec;
// interactive progress comes only from tailing log files the driver itself
// redirects into.
type Sandbox interface {
	ID() string
	Exec(ctx context.Context, cmd string, timeout time.Duration) (ExecResult, error)
	WriteFile(ctx context.Context, path string, contents []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	FileExists(ctx context.Context, path string) (bool, error)
	Destroy(ctx context.Context) error
}

// Provisioner creates a fresh Sandbox for one job.
type Provisioner interface {
	Provision(ctx context.Context, jobID string) (Sandbox, error)
}
