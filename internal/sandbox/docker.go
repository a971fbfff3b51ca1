package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerProvisioner provisions one container per job using the Docker
// Engine API. This adapts a dependency the predecessor codebase already
// carried indirectly (pulled in via testcontainers-go for test-time NATS
// bootstrapping) into a direct, exercised dependency: the sandbox contract
// the spec treats as an external black box.
type DockerProvisioner struct {
	cli   *client.Client
	image string
}

// NewDockerProvisioner builds a provisioner from the ambient Docker host
// configuration (DOCKER_HOST, etc., via client.FromEnv) and the sandbox
// base image to run (must have bun/node preinstalled for install/build).
func NewDockerProvisioner(image string) (*DockerProvisioner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerProvisioner{cli: cli, image: image}, nil
}

func (p *DockerProvisioner) Provision(ctx context.Context, jobID string) (Sandbox, error) {
	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:      p.image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: "/root/app",
		Labels:     map[string]string{"nimbusd.job_id": jobID},
	}, nil, nil, nil, "nimbus-sandbox-"+jobID)
	if err != nil {
		return nil, fmt.Errorf("create sandbox container: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	return &dockerSandbox{cli: p.cli, containerID: resp.ID}, nil
}

type dockerSandbox struct {
	cli         *client.Client
	containerID string
}

func (s *dockerSandbox) ID() string { return s.containerID }

func (s *dockerSandbox) Exec(ctx context.Context, cmd string, timeout time.Duration) (ExecResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", cmd},
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := s.cli.ContainerExecCreate(execCtx, s.containerID, execCfg)
	if err != nil {
		return ExecResult{}, fmt.Errorf("create exec: %w", err)
	}

	attach, err := s.cli.ContainerExecAttach(execCtx, created.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("attach exec: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&stdout, attach.Reader)
		done <- copyErr
	}()

	select {
	case <-execCtx.Done():
		return ExecResult{}, fmt.Errorf("exec timed out after %s: %s", timeout, cmd)
	case err := <-done:
		if err != nil {
			return ExecResult{}, fmt.Errorf("read exec output: %w", err)
		}
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return ExecResult{}, fmt.Errorf("inspect exec: %w", err)
	}

	return ExecResult{ExitCode: inspect.ExitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (s *dockerSandbox) WriteFile(ctx context.Context, path string, contents []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: path, Mode: 0o644, Size: int64(len(contents))}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header for %s: %w", path, err)
	}
	if _, err := tw.Write(contents); err != nil {
		return fmt.Errorf("tar write %s: %w", path, err)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return s.cli.CopyToContainer(ctx, s.containerID, "/root/app", &buf, container.CopyToContainerOptions{})
}

func (s *dockerSandbox) ReadFile(ctx context.Context, path string) ([]byte, error) {
	result, err := s.Exec(ctx, "cat "+shellQuote(path), 10*time.Second)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("read %s: exit %d", path, result.ExitCode)
	}
	return []byte(result.Stdout), nil
}

func (s *dockerSandbox) FileExists(ctx context.Context, path string) (bool, error) {
	result, err := s.Exec(ctx, "test -e "+shellQuote(path), 10*time.Second)
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

func (s *dockerSandbox) Destroy(ctx context.Context) error {
	timeout := 5
	_ = s.cli.ContainerStop(ctx, s.containerID, container.StopOptions{Timeout: &timeout})
	return s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{Force: true})
}

func shellQuote(s string) string {
	return "'" + s + "'"
}
