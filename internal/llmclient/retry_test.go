package llmclient

import "testing"

func TestCalculateBackoff_GrowsWithAttempt(t *testing.T) {
	cfg := RetryConfig{BackoffBase: 1_000_000_000, BackoffMultiplier: 2, MaxBackoff: 1_000_000_000_000}

	first := calculateBackoff(cfg, 1)
	third := calculateBackoff(cfg, 3)

	// Jitter is +/-25%, so compare against the unjittered floor of attempt 3
	// (base * multiplier^2 * 0.75) against attempt 1's jittered ceiling
	// (base * 1.25) to confirm the exponential growth dominates the jitter.
	if third < first {
		t.Fatalf("calculateBackoff(attempt=3) = %v should exceed calculateBackoff(attempt=1) = %v", third, first)
	}
}

func TestCalculateBackoff_CapsAtMaxBackoff(t *testing.T) {
	cfg := RetryConfig{BackoffBase: 1_000_000_000, BackoffMultiplier: 10, MaxBackoff: 5_000_000_000}

	got := calculateBackoff(cfg, 10)
	// +/-25% jitter on top of the cap.
	ceiling := cfg.MaxBackoff + cfg.MaxBackoff/4
	if got > ceiling {
		t.Fatalf("calculateBackoff() = %v, want <= %v (capped MaxBackoff plus jitter)", got, ceiling)
	}
}
