package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// EmbedBatch returns vectors in input order, one per text, all of
// Dimensions() length. Implementations classify failures with the domain
// taxonomy so callers can react:
//
//   - domain.RateLimitError / domain.ErrTemporary: retry with backoff
//   - domain.ErrBatchTooLarge: split the batch and retry
//   - domain.ErrUnauthorized / domain.ErrMalformed: fatal
//
// Batching and throttling are the caller's responsibility.
//
// Implementations include OpenAI, Ollama and the offline hashing embedder.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one request.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	// It must match the VectorIndex dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
