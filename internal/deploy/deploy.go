// Package deploy implements the deploy driver (C6): inside an already-built
// sandbox, invoke the edge-worker deploy tool against the generated
// wrangler config and parse the resulting URL.
package deploy

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/c360studio/nimbusd/internal/apperr"
	"github.com/c360studio/nimbusd/internal/sandbox"
)

const (
	DeployTimeout = 120 * time.Second
	deployLogPath = "/root/app/.nimbus/deploy.log"
)

// Credentials bundles the Cloudflare credentials exported into the
// sandbox's deploy command environment.
type Credentials struct {
	APIToken  string
	AccountID string
}

// Result is {deployedUrl, deployLog} per the spec's return contract.
type Result struct {
	DeployedURL string
	DeployLog   string
}

var deployedURLPattern = regexp.MustCompile(`https://[A-Za-z0-9.-]+\.workers\.dev`)

// Deploy runs wrangler deploy inside sb using the already-written
// wrangler.nimbus.toml, redirecting output to .nimbus/deploy.log, and
// parses the resulting workers.dev URL. On nonzero exit or an unparseable
// URL it raises a DeployFailure carrying the sanitized log.
func Deploy(ctx context.Context, sb sandbox.Sandbox, creds Credentials) (*Result, error) {
	if creds.APIToken == "" || creds.AccountID == "" {
		return nil, apperr.ConfigMissing("cloudflare credentials not configured")
	}

	cmd := fmt.Sprintf(
		"CLOUDFLARE_API_TOKEN=%q CLOUDFLARE_ACCOUNT_ID=%q bunx wrangler deploy --config wrangler.nimbus.toml > %s 2>&1",
		creds.APIToken, creds.AccountID, deployLogPath,
	)

	result, err := sb.Exec(ctx, cmd, DeployTimeout)
	rawLog := readDeployLog(ctx, sb)
	sanitized := Sanitize(rawLog)

	if err != nil {
		return nil, apperr.DeployFailure(fmt.Sprintf("deploy: %v", err), sanitized)
	}
	if result.ExitCode != 0 {
		return nil, apperr.DeployFailure(fmt.Sprintf("deploy exited %d", result.ExitCode), sanitized)
	}

	url := deployedURLPattern.FindString(sanitized)
	if url == "" {
		return nil, apperr.DeployFailure("deploy succeeded but no workers.dev URL found in output", sanitized)
	}

	return &Result{DeployedURL: url, DeployLog: sanitized}, nil
}

func readDeployLog(ctx context.Context, sb sandbox.Sandbox) string {
	content, err := sb.ReadFile(ctx, deployLogPath)
	if err != nil {
		return ""
	}
	return string(content)
}

var credentialPattern = regexp.MustCompile(`(CLOUDFLARE_API_TOKEN|CLOUDFLARE_ACCOUNT_ID)="[^"]*"`)

// Sanitize replaces credential values in a deploy log line with
// "[REDACTED]" before the log reaches any error surface or the archive.
func Sanitize(log string) string {
	return credentialPattern.ReplaceAllString(log, `$1="[REDACTED]"`)
}

// DeleteWorker calls the Cloudflare API to remove a deployed worker by
// name, used by the cleanup sweeper. A 404 is treated as success: the
// worker is already gone, which is the desired end state either way.
func DeleteWorker(ctx context.Context, creds Credentials, workerName string) error {
	if creds.APIToken == "" || creds.AccountID == "" {
		return apperr.ConfigMissing("cloudflare credentials not configured")
	}

	url := fmt.Sprintf(
		"https://api.cloudflare.com/client/v4/accounts/%s/workers/scripts/%s",
		creds.AccountID, workerName,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return apperr.DeployFailure(fmt.Sprintf("build delete request: %v", err), "")
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return apperr.DeployFailure(fmt.Sprintf("delete worker %s: %v", workerName, err), "")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusOK {
		return nil
	}
	return apperr.DeployFailure(fmt.Sprintf("delete worker %s: cloudflare returned %d", workerName, resp.StatusCode), "")
}
