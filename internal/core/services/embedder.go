package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// DefaultBatchSize is used when no batch size is configured.
const DefaultBatchSize = 100

// BatchEmbedder fronts an EmbeddingService with batching, throttling,
// retries and output validation. Vectors are returned in input order.
type BatchEmbedder struct {
	svc       driven.EmbeddingService
	batchSize int
	requests  *rate.Limiter
	tokens    *rate.Limiter
	retry     RetryPolicy
	metrics   *metrics.Metrics
}

// EmbedderOption configures a BatchEmbedder.
type EmbedderOption func(*BatchEmbedder)

// WithBatchSize sets the maximum number of texts per request.
func WithBatchSize(n int) EmbedderOption {
	return func(b *BatchEmbedder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithRateLimits throttles requests and estimated tokens per minute.
// Non-positive values disable the corresponding limit.
func WithRateLimits(requestsPerMinute, tokensPerMinute int) EmbedderOption {
	return func(b *BatchEmbedder) {
		b.requests = perMinute(requestsPerMinute)
		b.tokens = perMinute(tokensPerMinute)
	}
}

// WithEmbedRetry sets the retry policy for embedding calls.
func WithEmbedRetry(p RetryPolicy) EmbedderOption {
	return func(b *BatchEmbedder) {
		b.retry = p
	}
}

// WithEmbedMetrics records embedding calls.
func WithEmbedMetrics(m *metrics.Metrics) EmbedderOption {
	return func(b *BatchEmbedder) {
		b.metrics = m
	}
}

func perMinute(n int) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(float64(n)/60), max(1, n/60))
}

// NewBatchEmbedder wraps svc.
func NewBatchEmbedder(svc driven.EmbeddingService, opts ...EmbedderOption) *BatchEmbedder {
	b := &BatchEmbedder{
		svc:       svc,
		batchSize: DefaultBatchSize,
		requests:  perMinute(0),
		tokens:    perMinute(0),
		retry:     NewRetryPolicy("embedding", domain.DefaultAppSettings().Retry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dimensions returns the vector size of the wrapped service.
func (b *BatchEmbedder) Dimensions() int {
	return b.svc.Dimensions()
}

// ModelName returns the wrapped model name.
func (b *BatchEmbedder) ModelName() string {
	return b.svc.ModelName()
}

// EmbedQuery embeds a single query text.
func (b *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedTexts embeds texts in batches of at most the configured size.
func (b *BatchEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		vecs, err := b.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := DoValue(ctx, b.retry, func(ctx context.Context) ([][]float32, error) {
		if err := b.wait(ctx, texts); err != nil {
			return nil, err
		}
		vecs, err := b.svc.EmbedBatch(ctx, texts)
		b.metrics.EmbedRequest(len(texts), err)
		return vecs, err
	})
	if errors.Is(err, domain.ErrBatchTooLarge) && len(texts) > 1 {
		half := len(texts) / 2
		logger.Debug("embedding batch of %d rejected as too large, splitting", len(texts))
		left, err := b.embedBatch(ctx, texts[:half])
		if err != nil {
			return nil, err
		}
		right, err := b.embedBatch(ctx, texts[half:])
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}
	if err != nil {
		return nil, err
	}
	if err := b.validate(texts, vecs); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (b *BatchEmbedder) validate(texts []string, vecs [][]float32) error {
	if len(vecs) != len(texts) {
		return fmt.Errorf("embedding: %w: got %d vectors for %d texts", domain.ErrMalformed, len(vecs), len(texts))
	}
	want := b.svc.Dimensions()
	if want <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != want {
			return &domain.ConfigurationError{
				Op:  "embedding",
				Err: fmt.Errorf("%w: vector %d has %d dimensions, expected %d", domain.ErrDimensionMismatch, i, len(v), want),
			}
		}
	}
	return nil
}

// wait blocks until both limiters admit the request.
func (b *BatchEmbedder) wait(ctx context.Context, texts []string) error {
	if err := b.requests.Wait(ctx); err != nil {
		return err
	}
	if b.tokens.Limit() == rate.Inf {
		return nil
	}
	n := 0
	for _, t := range texts {
		n += domain.EstimateTokens(t)
	}
	burst := b.tokens.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := b.tokens.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
