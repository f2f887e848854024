package mcp

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

// mockRAGService is a mock implementation of driving.RAGService.
type mockRAGService struct {
	answer *domain.Answer
	err    error

	lastReq domain.QueryRequest
}

func (m *mockRAGService) Ask(_ context.Context, req domain.QueryRequest, _ *domain.Conversation) (*domain.Answer, error) {
	m.lastReq = req
	return m.answer, m.err
}

// mockStatsService is a mock implementation of driving.StatsService.
type mockStatsService struct {
	stats domain.IndexStats
	err   error
}

func (m *mockStatsService) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}
