package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := fastRetry("embedding", 4).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("timeout: %w", domain.ErrTemporary)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_Exhaustion(t *testing.T) {
	attempts := 0
	err := fastRetry("generation", 3).Do(context.Background(), func(context.Context) error {
		attempts++
		return &domain.RateLimitError{Service: "openai"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var transient *domain.TransientServiceError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, "generation", transient.Service)
	assert.Equal(t, 3, transient.Attempts)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, domain.IsRetryable(err))
}

func TestRetryPolicy_NonRetryableReturnsImmediately(t *testing.T) {
	attempts := 0
	err := fastRetry("embedding", 5).Do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("status 401: %w", domain.ErrUnauthorized)
	})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, attempts)

	var transient *domain.TransientServiceError
	assert.False(t, errors.As(err, &transient))
}

func TestRetryPolicy_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := fastRetry("generation", 5).Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return domain.ErrTemporary
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := fastRetry("index", 0).Do(context.Background(), func(context.Context) error {
		attempts++
		return domain.ErrTemporary
	})

	assert.Equal(t, 1, attempts)
	var transient *domain.TransientServiceError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, 1, transient.Attempts)
}

func TestRetryPolicy_HonoursRetryAfter(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := fastRetry("embedding", 2).Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &domain.RateLimitError{Service: "openai", RetryAfter: 30 * time.Millisecond}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastRetry("generation", 3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", domain.ErrTemporary
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestNewRetryPolicy(t *testing.T) {
	s := domain.DefaultAppSettings().Retry
	p := NewRetryPolicy("embedding", s)

	assert.Equal(t, "embedding", p.Service)
	assert.Equal(t, s.MaxAttempts, p.MaxAttempts)
	assert.Equal(t, s.BaseDelay, p.BaseDelay)
	assert.Equal(t, s.MaxDelay, p.MaxDelay)
	assert.InDelta(t, s.Jitter, p.Jitter, 1e-9)
}
