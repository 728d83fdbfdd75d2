// Package retry provides a small, provider-agnostic retry policy for
// external calls. Callers decide which errors are worth retrying; everything
// else fails fast on the first attempt.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries for a single external call. The zero value performs
// exactly one attempt.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the initial backoff interval; it doubles each attempt.
	BaseDelay time.Duration
	// Retryable reports whether an error is transient. A nil predicate
	// treats every error as fatal.
	Retryable func(error) bool
}

// Do runs op, retrying with exponential backoff while the error is
// retryable and attempts remain. It returns the last error observed.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := p.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
