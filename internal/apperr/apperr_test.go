package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf_ClassifiesKnownKind(t *testing.T) {
	err := NotFound("job x not found")
	if Of(err) != KindNotFound {
		t.Fatalf("Of() = %v, want %v", Of(err), KindNotFound)
	}
}

func TestOf_DefaultsToStoreFailureForUnknown(t *testing.T) {
	if Of(errors.New("boom")) != KindStoreFailure {
		t.Fatalf("Of() should default to KindStoreFailure for unrecognized errors")
	}
}

func TestOf_UnwrapsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", BadRequest("bad body"))
	if Of(wrapped) != KindBadRequest {
		t.Fatalf("Of() should see through fmt.Errorf wrapping, got %v", Of(wrapped))
	}
}

func TestIs(t *testing.T) {
	err := BuildFailure("install failed", "sandbox-1", "tail output")
	if !Is(err, KindBuildFailure) {
		t.Fatal("Is() should report true for matching kind")
	}
	if Is(err, KindDeployFailure) {
		t.Fatal("Is() should report false for non-matching kind")
	}
}

func TestBuildFailure_CarriesDiagnostics(t *testing.T) {
	err := BuildFailure("npm install exited 1", "sandbox-42", "last 200 lines")
	if err.SandboxID != "sandbox-42" {
		t.Errorf("SandboxID = %q", err.SandboxID)
	}
	if err.LogTail != "last 200 lines" {
		t.Errorf("LogTail = %q", err.LogTail)
	}
	if err.Kind != KindBuildFailure {
		t.Errorf("Kind = %v", err.Kind)
	}
}

func TestError_MessageFallsBackToCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreFailure("", cause)
	if err.Error() != "store_failure: connection refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
