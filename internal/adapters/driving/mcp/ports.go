package mcp

import (
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides similarity search over the index.
	Search driving.SearchService

	// RAG answers questions. The ask tool is only offered when set.
	RAG driving.RAGService

	// Stats summarises the index for the stats resources.
	Stats driving.StatsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
