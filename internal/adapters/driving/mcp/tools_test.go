package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{
				{
					ChunkID: "acme/api:docs/auth.md#0",
					Score:   0.95,
					Chunk: domain.Chunk{
						Text: "Tokens expire after an hour.",
						Metadata: domain.ChunkMetadata{
							Repository: "acme/api",
							Path:       "docs/auth.md",
							SourceURL:  "https://github.com/acme/api/blob/main/docs/auth.md",
						},
					},
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "token expiry", Limit: 3, FilterInput: FilterInput{Repository: "acme/api"}}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "acme/api:docs/auth.md#0", output.Results[0].ChunkID)
		assert.Equal(t, "docs/auth.md", output.Results[0].Path)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, "Tokens expire after an hour.", output.Results[0].Content)
		assert.Equal(t, 3, mockSearch.lastOpts.TopK)
		assert.Equal(t, "acme/api", mockSearch.lastOpts.Filter.Repository)
	})

	t.Run("default limit", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, defaultLimit, mockSearch.lastOpts.TopK)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()
	citations := []domain.Citation{{Repository: "acme/api", Path: "docs/auth.md"}}

	t.Run("returns answer with citations", func(t *testing.T) {
		rag := &mockRAGService{answer: &domain.Answer{
			Text:      "Tokens expire after an hour [1].",
			State:     domain.StateAnswered,
			Citations: citations,
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, RAG: rag})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "When do tokens expire?", TopK: 4})

		require.NoError(t, err)
		assert.Equal(t, "Tokens expire after an hour [1].", output.Answer)
		require.Len(t, output.Citations, 1)
		assert.Equal(t, "docs/auth.md", output.Citations[0].Path)
		assert.Equal(t, 4, rag.lastReq.TopK)
	})

	t.Run("missing llm still returns sources", func(t *testing.T) {
		rag := &mockRAGService{
			answer: &domain.Answer{State: domain.StateFailed, FailedStage: domain.StageGeneration, Citations: citations},
			err:    &domain.StageError{Stage: domain.StageGeneration, Err: domain.ErrLLMUnavailable},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, RAG: rag})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "q"})

		require.NoError(t, err)
		assert.Contains(t, output.Answer, "No LLM")
		assert.Len(t, output.Citations, 1)
	})

	t.Run("other failures are returned", func(t *testing.T) {
		rag := &mockRAGService{
			answer: &domain.Answer{State: domain.StateFailed, FailedStage: domain.StageRetrieval},
			err:    &domain.StageError{Stage: domain.StageRetrieval, Err: domain.ErrEmbeddingUnavailable},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, RAG: rag})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "q"})

		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestServer_handleStats(t *testing.T) {
	stats := &mockStatsService{stats: domain.IndexStats{
		Records:   9,
		Documents: 2,
		Languages: map[string]int{"go": 9},
	}}
	server, err := NewServer(&Ports{Search: &mockSearchService{}, Stats: stats})
	require.NoError(t, err)

	_, output, err := server.handleStats(context.Background(), nil, StatsInput{})

	require.NoError(t, err)
	assert.Equal(t, 9, output.Records)
	assert.Equal(t, 2, output.Documents)
	assert.Equal(t, map[string]int{"go": 9}, output.Languages)

	stats.err = errors.New("index closed")
	_, _, err = server.handleStats(context.Background(), nil, StatsInput{})
	assert.Error(t, err)
}
