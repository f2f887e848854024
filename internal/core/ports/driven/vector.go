package driven

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// VectorIndex stores index records and answers nearest-neighbour queries.
//
// Upsert is idempotent by record ID, so at-least-once delivery is safe.
// Queries are best-effort consistent: a record upserted immediately before
// a query may or may not appear. A vector whose length differs from
// Dimensions() fails with domain.ErrDimensionMismatch and is never retried.
type VectorIndex interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// DeleteDocument removes every record of a document.
	DeleteDocument(ctx context.Context, key domain.DocumentKey) error

	// Query returns up to topK records ordered by descending cosine
	// similarity, restricted to records matching filter.
	Query(ctx context.Context, vector []float32, topK int, filter domain.MetadataFilter) ([]domain.SearchResult, error)

	// Dimensions returns the configured vector size.
	Dimensions() int

	// Stats summarises the index contents.
	Stats(ctx context.Context) (domain.IndexStats, error)

	// Close releases resources.
	Close() error
}

// DocumentReplacer is implemented by indexes that can swap a document's
// records atomically. Callers fall back to DeleteDocument then Upsert.
type DocumentReplacer interface {
	ReplaceDocument(ctx context.Context, key domain.DocumentKey, records []domain.IndexRecord) error
}
