package crawler

import (
	"context"
	"errors"
	"time"
)

// FixedRetryPolicy retries failed batches after a constant delay until
// maxAttempts consecutive failures have occurred. A maxAttempts of zero
// retries forever.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy with the given cap and delay.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// ShouldRetry decides whether the error is retryable. attempt counts
// consecutive failures, starting at 1.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInterrupted) {
		return false
	}
	if errors.Is(err, ErrEndOfData) {
		return false
	}
	if p.maxAttempts > 0 && attempt >= p.maxAttempts {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
