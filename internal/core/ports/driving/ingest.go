package driving

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// IngestService feeds documents through chunking, embedding and indexing.
type IngestService interface {
	// Ingest consumes every document of a source. Bad documents are skipped
	// and reported; only configuration errors abort the run.
	Ingest(ctx context.Context, source driven.DocumentSource) (*domain.IngestReport, error)

	// IngestDocuments indexes already normalised documents.
	IngestDocuments(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error)

	// Watch re-ingests changed documents until ctx is cancelled. Each
	// processed change is reported through onOutcome, which may be nil.
	Watch(ctx context.Context, source driven.WatchableSource, onOutcome func(domain.DocumentOutcome)) error

	// Remove deletes one document's records.
	Remove(ctx context.Context, key domain.DocumentKey) error
}

// StatsService reports on index contents.
type StatsService interface {
	// Stats returns index statistics.
	Stats(ctx context.Context) (domain.IndexStats, error)
}
