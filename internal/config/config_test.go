package config

import (
	"testing"
	"time"
)

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	cfg := Default()
	cfg.NATSURL = "nats://x"
	cfg.AuthToken = "tok"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when DatabaseURL is empty")
	}
}

func TestValidate_RequiresAuthToken(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://x"
	cfg.NATSURL = "nats://x"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when AuthToken is empty")
	}
}

func TestValidate_PassesWithRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://x"
	cfg.NATSURL = "nats://x"
	cfg.AuthToken = "tok"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestMerge_OverlaysNonZeroFieldsOnly(t *testing.T) {
	base := Default()
	override := Config{DatabaseURL: "postgres://override"}

	merged := base.Merge(override)

	if merged.DatabaseURL != "postgres://override" {
		t.Fatalf("DatabaseURL = %q, want overridden", merged.DatabaseURL)
	}
	if merged.ListenAddr != base.ListenAddr {
		t.Fatalf("ListenAddr = %q, want unchanged default %q", merged.ListenAddr, base.ListenAddr)
	}
	if merged.SweepInterval != base.SweepInterval {
		t.Fatalf("SweepInterval = %v, want unchanged default %v", merged.SweepInterval, base.SweepInterval)
	}
}

func TestMerge_ZeroDurationDoesNotOverride(t *testing.T) {
	base := Default()
	base.JobRetention = 48 * time.Hour

	merged := base.Merge(Config{})
	if merged.JobRetention != 48*time.Hour {
		t.Fatalf("JobRetention = %v, want unchanged 48h", merged.JobRetention)
	}
}
