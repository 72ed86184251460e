package ai

import "time"

// RetryConfig bounds the retry envelope around a completion.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Delay after the first failed attempt
	MaxDelay    time.Duration // Upper bound for any single delay
}

// DefaultRetryConfig returns 3 attempts with delays of 1s, 2s, 4s, ... capped
// at 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// BackoffDelay returns min(BaseDelay * 2^attempt, MaxDelay) for a zero-based
// attempt index.
func BackoffDelay(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if cfg.BaseDelay <= 0 {
		return 0
	}

	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		// Stop doubling once past the cap; also guards against overflow.
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			break
		}
		if delay >= time.Duration(1<<62) {
			break
		}
		delay *= 2
	}

	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}
