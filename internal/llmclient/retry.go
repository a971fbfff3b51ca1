package llmclient

import (
	"math/rand"
	"time"
)

// RetryConfig controls the exponential backoff applied between transient
// failures of the primary chat-completions call.
type RetryConfig struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// DefaultRetryConfig mirrors the predecessor codebase's tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// calculateBackoff returns the delay before retry attempt n (1-indexed),
// exponential with +/-25% jitter, capped at MaxBackoff.
func calculateBackoff(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.BackoffBase)
	for i := 1; i < attempt; i++ {
		backoff *= cfg.BackoffMultiplier
	}
	if d := time.Duration(backoff); d > cfg.MaxBackoff {
		backoff = float64(cfg.MaxBackoff)
	}
	jitter := backoff * 0.25 * (2*rand.Float64() - 1)
	return time.Duration(backoff + jitter)
}
