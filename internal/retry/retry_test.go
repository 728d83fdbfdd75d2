package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func transientOnly(err error) bool { return errors.Is(err, errTransient) }

func TestDo_SucceedsAfterRetries(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: transientOnly}

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Retryable: transientOnly}

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

func TestDo_FatalErrorFailsFast(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, Retryable: transientOnly}

	fatal := errors.New("boom")
	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return fatal
	})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts, "non-retryable errors must not be retried")
}

func TestDo_NilPredicateTreatsErrorsAsFatal(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Millisecond}

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return errTransient
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ZeroValueRunsOnce(t *testing.T) {
	var p Policy

	attempts := 0
	err := p.Do(context.Background(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellationStopsRetries(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, Retryable: transientOnly}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		attempts++
		return errTransient
	})

	require.Error(t, err)
	assert.Less(t, attempts, 10)
}
