package deploy

import (
	"context"
	"testing"

	"github.com/c360studio/nimbusd/internal/apperr"
)

func TestSanitize_RedactsToken(t *testing.T) {
	log := `running: CLOUDFLARE_API_TOKEN="sk-live-12345" CLOUDFLARE_ACCOUNT_ID="acct-9" wrangler deploy`
	got := Sanitize(log)
	want := `running: CLOUDFLARE_API_TOKEN="[REDACTED]" CLOUDFLARE_ACCOUNT_ID="[REDACTED]" wrangler deploy`
	if got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitize_NoCredentialsUnchanged(t *testing.T) {
	log := "Uploaded worker, no issues found.\nDeployed to https://my-app.workers.dev"
	if got := Sanitize(log); got != log {
		t.Fatalf("Sanitize() altered a log with no credentials: %q", got)
	}
}

func TestDeployedURLPattern_Matches(t *testing.T) {
	log := "Published my-app (1.23 sec)\nhttps://my-app.workers.dev\nCurrent Version ID: abc"
	url := deployedURLPattern.FindString(log)
	if url != "https://my-app.workers.dev" {
		t.Fatalf("deployedURLPattern match = %q", url)
	}
}

func TestDeployedURLPattern_NoMatch(t *testing.T) {
	log := "deploy failed: authentication error"
	if url := deployedURLPattern.FindString(log); url != "" {
		t.Fatalf("expected no match, got %q", url)
	}
}

func TestDeleteWorker_MissingCredentialsReturnsConfigMissing(t *testing.T) {
	err := DeleteWorker(context.Background(), Credentials{}, "nimbus-abc123")
	if !apperr.Is(err, apperr.KindConfigMissing) {
		t.Fatalf("DeleteWorker() with no credentials should return a config_missing error, got %v", err)
	}
}

func TestDeploy_MissingCredentialsReturnsConfigMissing(t *testing.T) {
	_, err := Deploy(context.Background(), nil, Credentials{})
	if !apperr.Is(err, apperr.KindConfigMissing) {
		t.Fatalf("Deploy() with no credentials should return a config_missing error, got %v", err)
	}
}
