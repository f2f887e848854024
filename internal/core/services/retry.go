package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// maxRetryAfter caps a provider supplied Retry-After hint.
const maxRetryAfter = time.Minute

// RetryPolicy is a bounded exponential backoff for one collaborator.
// Only errors classified retryable by domain.IsRetryable are retried.
type RetryPolicy struct {
	Service     string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64

	metrics *metrics.Metrics
}

// NewRetryPolicy builds a policy for service from settings.
func NewRetryPolicy(service string, s domain.RetrySettings) RetryPolicy {
	return RetryPolicy{
		Service:     service,
		MaxAttempts: s.MaxAttempts,
		BaseDelay:   s.BaseDelay,
		MaxDelay:    s.MaxDelay,
		Jitter:      s.Jitter,
	}
}

// WithMetrics returns a copy that counts retries.
func (p RetryPolicy) WithMetrics(m *metrics.Metrics) RetryPolicy {
	p.metrics = m
	return p
}

// hintedBackOff waits at least as long as the last Retry-After hint.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > next {
		next = h.hint
	}
	h.hint = 0
	return next
}

func (p RetryPolicy) backOff(ctx context.Context) (backoff.BackOffContext, *hintedBackOff) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = 100 * time.Millisecond
	}
	exp.MaxInterval = p.MaxDelay
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.RandomizationFactor = p.Jitter
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	hinted := &hintedBackOff{BackOff: exp}
	return backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(attempts-1)), ctx), hinted
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx ends. Exhaustion yields a
// *domain.TransientServiceError wrapping the last error.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	bo, hinted := p.backOff(ctx)

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(err)
		}
		if !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		if hint := domain.RetryAfter(err); hint > 0 {
			hinted.hint = min(hint, maxRetryAfter)
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		p.metrics.Retry(p.Service)
		logger.Debug("%s: attempt %d failed (%v), retrying in %s", p.Service, attempts, err, wait.Round(time.Millisecond))
	})
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(err, ctxErr) {
			return err
		}
		return fmt.Errorf("%s: %w (last error: %v)", p.Service, ctxErr, err)
	}
	if domain.IsRetryable(err) {
		return &domain.TransientServiceError{Service: p.Service, Attempts: attempts, Err: err}
	}
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
