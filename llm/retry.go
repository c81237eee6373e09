package llm

import (
	"math/rand/v2"
	"time"
)

// RetryConfig bounds per-endpoint retry behavior.
type RetryConfig struct {
	// MaxAttempts is the attempt budget per endpoint, including the
	// first try.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier grows the delay on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry defaults for LLM requests.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// backoff computes the delay before the given retry with +/-25% jitter
// to spread synchronized retries.
func (c RetryConfig) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	d := time.Duration(float64(c.BackoffBase) * multiplier)
	if d > c.MaxBackoff {
		d = c.MaxBackoff
	}

	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}
