package driven

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// DocumentSource yields raw documents for ingestion. The core only
// consumes the stream and never initiates individual fetches.
// Each source type (github, filesystem) implements this interface.
type DocumentSource interface {
	// Type returns the source type identifier.
	Type() string

	// Validate checks the source is reachable and configured.
	// For GitHub this makes a repository lookup, for filesystem it checks
	// the root exists.
	Validate(ctx context.Context) error

	// Fetch streams every document of the source. Both channels are closed
	// when the stream ends. Errors on the error channel concern single
	// documents unless the document channel closes right after.
	Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Close releases resources.
	Close() error
}

// WatchableSource is implemented by sources that can push changes.
type WatchableSource interface {
	DocumentSource

	// Watch streams changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)
}
