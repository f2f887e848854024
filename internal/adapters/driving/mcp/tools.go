package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// defaultLimit is used when a search call gives no limit.
const defaultLimit = 5

// FilterInput restricts results by exact metadata match.
type FilterInput struct {
	Repository string `json:"repository,omitempty" jsonschema:"only results from this repository, e.g. acme/api"`
	Language   string `json:"language,omitempty" jsonschema:"only results in this language, e.g. go or markdown"`
	FileType   string `json:"file_type,omitempty" jsonschema:"only results with this extension, e.g. .md"`
}

func (f FilterInput) toDomain() domain.MetadataFilter {
	return domain.MetadataFilter{
		Repository: f.Repository,
		Language:   f.Language,
		FileType:   f.FileType,
	}
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"what to look for in the indexed documentation"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	FilterInput
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	Repository string  `json:"repository"`
	Path       string  `json:"path"`
	SourceURL  string  `json:"source_url,omitempty"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed documentation"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"chunks to retrieve (default from configuration)"`
	FilterInput
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	NoContext bool             `json:"no_context,omitempty"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput names one source of an answer.
type CitationOutput struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	SourceURL  string `json:"source_url,omitempty"`
}

// StatsInput is the input schema for the stats tool. It takes no arguments.
type StatsInput struct{}

// StatsOutput is the output schema for the stats tool.
type StatsOutput struct {
	Records      int            `json:"records"`
	Documents    int            `json:"documents"`
	Dimensions   int            `json:"dimensions"`
	Repositories map[string]int `json:"repositories"`
	Languages    map[string]int `json:"languages"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Find documentation and code chunks similar to a query",
	}, s.handleSearch)

	if s.ports.Stats != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "stats",
			Description: "Report how many chunks, documents and repositories are indexed",
		}, s.handleStats)
	}

	if s.ports.RAG != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question from the indexed documentation, with citations",
		}, s.handleAsk)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	opts := domain.SearchOptions{TopK: limit, Filter: input.toDomain()}
	results, err := s.ports.Search.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		md := results[i].Chunk.Metadata
		output.Results[i] = SearchResultOutput{
			ChunkID:    results[i].ChunkID,
			Repository: md.Repository,
			Path:       md.Path,
			SourceURL:  md.SourceURL,
			Score:      results[i].Score,
			Content:    results[i].Chunk.Text,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation. A missing LLM still yields
// the retrieved sources so the caller can read them itself.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	req := domain.QueryRequest{
		Question: input.Question,
		TopK:     input.TopK,
		Filter:   input.toDomain(),
	}

	ans, err := s.ports.RAG.Ask(ctx, req, nil)
	if err != nil && (ans == nil || !errors.Is(err, domain.ErrLLMUnavailable)) {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		Answer:    ans.Text,
		NoContext: ans.NoContext,
		Citations: make([]CitationOutput, len(ans.Citations)),
	}
	if err != nil {
		output.Answer = "No LLM is configured. The sources below matched the question."
	}
	for i, c := range ans.Citations {
		output.Citations[i] = CitationOutput{Repository: c.Repository, Path: c.Path, SourceURL: c.SourceURL}
	}

	return nil, output, nil
}

// handleStats handles the stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Stats.Stats(ctx)
	if err != nil {
		return nil, StatsOutput{}, err
	}
	return nil, StatsOutput{
		Records:      stats.Records,
		Documents:    stats.Documents,
		Dimensions:   stats.Dimensions,
		Repositories: stats.Repositories,
		Languages:    stats.Languages,
	}, nil
}
