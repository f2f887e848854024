package driving

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// SearchService retrieves ranked chunks for a query without generation.
type SearchService interface {
	// Search embeds the query and returns at most opts.TopK results ordered
	// by descending score, ties broken by lower chunk ordinal. Fewer results
	// than requested is not an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
