package sandbox

import (
	"context"
	"time"
)

// fakeSandbox implements Sandbox entirely in memory for testing driver logic
// that doesn't need a real container.
type fakeSandbox struct {
	id    string
	files map[string][]byte
	execs []string
}

func newFakeSandbox(id string) *fakeSandbox {
	return &fakeSandbox{id: id, files: make(map[string][]byte)}
}

func (f *fakeSandbox) ID() string { return f.id }

func (f *fakeSandbox) Exec(_ context.Context, cmd string, _ time.Duration) (ExecResult, error) {
	f.execs = append(f.execs, cmd)
	return ExecResult{ExitCode: 0}, nil
}

func (f *fakeSandbox) WriteFile(_ context.Context, path string, contents []byte) error {
	f.files[path] = append([]byte(nil), contents...)
	return nil
}

func (f *fakeSandbox) ReadFile(_ context.Context, path string) ([]byte, error) {
	return f.files[path], nil
}

func (f *fakeSandbox) FileExists(_ context.Context, path string) (bool, error) {
	_, ok := f.files[path]
	return ok, nil
}

func (f *fakeSandbox) Destroy(_ context.Context) error { return nil }
