package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/nimbusd/internal/framework"
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

var staticCandidateDirs = []string{"dist", "build", ".output", "out"}

// verifyAndWriteDescriptor verifies the expected build artifacts exist for
// the resolved framework/target and writes the final wrangler.nimbus.toml
// deployment descriptor.
func (d *Driver) verifyAndWriteDescriptor(ctx context.Context, sb Sandbox, req BuildRequest) error {
	cfg := req.Config

	switch {
	case cfg.Framework == "next" && cfg.Target == "workers":
		return d.verifyNextOnWorkers(ctx, sb, req.JobID)
	case cfg.Target == "workers":
		return d.verifyWorkersNonNext(ctx, sb, req.JobID, cfg)
	default:
		return d.verifyStatic(ctx, sb, req.JobID, cfg, req.Files)
	}
}

func (d *Driver) verifyNextOnWorkers(ctx context.Context, sb Sandbox, jobID string) error {
	workerOK, err := sb.FileExists(ctx, ".open-next/worker.js")
	if err != nil || !workerOK {
		return fmt.Errorf("missing .open-next/worker.js")
	}
	assetsOK, err := sb.FileExists(ctx, ".open-next/assets")
	if err != nil || !assetsOK {
		return fmt.Errorf("missing .open-next/assets")
	}

	descriptor := wranglerDescriptor(jobmodel.WorkerName(jobID), ".open-next/worker.js", ".open-next/assets")
	return sb.WriteFile(ctx, "wrangler.nimbus.toml", []byte(descriptor))
}

func (d *Driver) verifyWorkersNonNext(ctx context.Context, sb Sandbox, jobID string, cfg jobmodel.NimbusConfig) error {
	if cfg.WorkerEntry == "" {
		return fmt.Errorf("workers target requires config.workerEntry")
	}
	ok, err := sb.FileExists(ctx, cfg.WorkerEntry)
	if err != nil || !ok {
		return fmt.Errorf("missing worker entry %s", cfg.WorkerEntry)
	}

	if cfg.AssetsDir != "" {
		ok, err := sb.FileExists(ctx, cfg.AssetsDir)
		if err != nil || !ok {
			return fmt.Errorf("missing assets dir %s", cfg.AssetsDir)
		}
		if err := ensureAssetsIgnore(ctx, sb, cfg.AssetsDir); err != nil {
			return err
		}
	}

	descriptor := wranglerDescriptor(jobmodel.WorkerName(jobID), cfg.WorkerEntry, cfg.AssetsDir)
	return sb.WriteFile(ctx, "wrangler.nimbus.toml", []byte(descriptor))
}

func (d *Driver) verifyStatic(ctx context.Context, sb Sandbox, jobID string, cfg jobmodel.NimbusConfig, files []jobmodel.GeneratedFile) error {
	assetsDir := cfg.AssetsDir
	if assetsDir == "" {
		candidates := append([]string{}, staticCandidateDirs...)
		for _, dir := range candidates {
			if ok, _ := sb.FileExists(ctx, dir); ok {
				assetsDir = dir
				break
			}
		}
	}
	if assetsDir == "" {
		return fmt.Errorf("no static assets directory found")
	}

	workerEntry := cfg.WorkerEntry
	if workerEntry == "" {
		for _, candidate := range []string{"worker.js", "worker.ts"} {
			if hasFile(files, candidate) {
				workerEntry = candidate
				break
			}
		}
	}
	if workerEntry == "" {
		workerEntry = "_nimbus_worker.js"
		if err := sb.WriteFile(ctx, workerEntry, []byte(passthroughWorker)); err != nil {
			return fmt.Errorf("write passthrough worker: %w", err)
		}
	}

	descriptor := wranglerDescriptor(jobmodel.WorkerName(jobID), workerEntry, assetsDir)
	return sb.WriteFile(ctx, "wrangler.nimbus.toml", []byte(descriptor))
}

// ensureAssetsIgnore ensures <assetsDir>/.assetsignore lists _worker.js when
// an embedded _worker.js directory is present, so the assets layer does not
// shadow the worker entry.
func ensureAssetsIgnore(ctx context.Context, sb Sandbox, assetsDir string) error {
	hasEmbeddedWorker, err := sb.FileExists(ctx, assetsDir+"/_worker.js")
	if err != nil || !hasEmbeddedWorker {
		return nil
	}

	path := assetsDir + "/.assetsignore"
	existing, _ := sb.ReadFile(ctx, path)
	if strings.Contains(string(existing), framework.WorkersAssetsIgnoreEntry) {
		return nil
	}
	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += framework.WorkersAssetsIgnoreEntry + "\n"
	return sb.WriteFile(ctx, path, []byte(content))
}

const passthroughWorker = `export default {
  async fetch(request, env) {
    return env.ASSETS.fetch(request);
  },
};
`

func wranglerDescriptor(name, main, assetsDir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name = %q\n", name)
	fmt.Fprintf(&b, "main = %q\n", main)
	b.WriteString("compatibility_date = \"2024-09-23\"\n")
	if assetsDir != "" {
		b.WriteString("\n[assets]\n")
		fmt.Fprintf(&b, "directory = %q\n", assetsDir)
		b.WriteString("binding = \"ASSETS\"\n")
	}
	return b.String()
}
