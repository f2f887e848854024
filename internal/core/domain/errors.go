package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown source, normaliser or processor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Configuration errors.

	// ErrInvalidOverlap indicates the chunk overlap is not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("overlap must be smaller than max chunk size")

	// ErrInvalidChunkSize indicates a non-positive maximum chunk size.
	ErrInvalidChunkSize = errors.New("max chunk size must be positive")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidBudget indicates a token budget that leaves no room for context.
	ErrInvalidBudget = errors.New("token budget too small")

	// ErrUnauthorized indicates rejected credentials for an external service.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the generation service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// Service errors.

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrTemporary indicates a timeout or server-side failure worth retrying.
	ErrTemporary = errors.New("temporary service failure")

	// ErrBatchTooLarge indicates the embedding service rejected the batch size.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrMalformed indicates the service rejected or returned a malformed payload.
	ErrMalformed = errors.New("malformed request or response")

	// Data errors.

	// ErrEmptyDocument indicates a document with no text.
	ErrEmptyDocument = errors.New("empty document")

	// ErrUndecodableText indicates document content is not valid UTF-8 text.
	ErrUndecodableText = errors.New("text is not valid UTF-8")

	// ErrMissingIdentity indicates a raw document without repository or path.
	ErrMissingIdentity = errors.New("document has no repository or path")

	// ErrConnectorClosed indicates the document source has been closed.
	ErrConnectorClosed = errors.New("connector closed")
)

// ConfigurationError is a fatal misconfiguration. It is surfaced
// immediately and never retried.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransientServiceError reports a collaborator failure that exhausted its
// retry policy.
type TransientServiceError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// RateLimitError is returned by service adapters when the provider throttles
// the caller. RetryAfter is zero when the provider gave no hint.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Service, e.RetryAfter)
	}
	return e.Service + ": rate limited"
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// DataError marks one document as unusable. Bulk ingestion skips and
// reports it without aborting the batch.
type DataError struct {
	Document string
	Err      error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error in %s: %v", e.Document, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// ChunkingError is returned by the chunker. It wraps either
// ErrInvalidOverlap / ErrInvalidChunkSize (configuration) or
// ErrUndecodableText (encoding). Neither is retryable.
type ChunkingError struct {
	Document string
	Err      error
}

func (e *ChunkingError) Error() string {
	if e.Document == "" {
		return "chunking: " + e.Err.Error()
	}
	return fmt.Sprintf("chunking %s: %v", e.Document, e.Err)
}

func (e *ChunkingError) Unwrap() error { return e.Err }

// StageError names the pipeline stage a query failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err is a fatal configuration error.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return true
	}
	return errors.Is(err, ErrInvalidOverlap) ||
		errors.Is(err, ErrInvalidChunkSize) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrUnauthorized)
}

// IsDataError reports whether err concerns a single bad document.
func IsDataError(err error) bool {
	var dataErr *DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrUndecodableText) ||
		errors.Is(err, ErrMissingIdentity)
}

// IsRetryable reports whether another attempt may succeed.
// Errors that already exhausted a retry policy are not retryable.
func IsRetryable(err error) bool {
	var exhausted *TransientServiceError
	if errors.As(err, &exhausted) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTemporary)
}

// RetryAfter extracts a provider supplied retry hint from err.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
