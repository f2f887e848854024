package driven

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// PostProcessor produces or refines a document's chunks.
// PostProcessors are chained in a pipeline (chunking, symbol annotation).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and the chunks so far.
	// A chunker receives nil and returns new chunks. Annotating processors
	// receive and return the chunk list.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
