package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchService retrieves ranked chunks by vector similarity.
type SearchService struct {
	embedder    QueryEmbedder
	index       driven.VectorIndex
	defaultTopK int
	overFetch   int
	overlap     int
	metrics     *metrics.Metrics
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

// WithDefaultTopK sets the result count used when a request asks for none.
func WithDefaultTopK(k int) SearchOption {
	return func(s *SearchService) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// WithOverFetch sets how many candidates per requested result are fetched
// from the index before deduplication.
func WithOverFetch(factor int) SearchOption {
	return func(s *SearchService) {
		if factor >= 1 {
			s.overFetch = factor
		}
	}
}

// WithDedupOverlap sets the span tolerance under which two chunks of the
// same document count as duplicates. It should equal the chunk overlap.
func WithDedupOverlap(overlap int) SearchOption {
	return func(s *SearchService) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSearchMetrics records retrieval sizes and durations.
func WithSearchMetrics(m *metrics.Metrics) SearchOption {
	return func(s *SearchService) {
		s.metrics = m
	}
}

// NewSearchService creates a retriever over index.
func NewSearchService(embedder QueryEmbedder, index driven.VectorIndex, opts ...SearchOption) *SearchService {
	d := domain.DefaultAppSettings()
	s := &SearchService{
		embedder:    embedder,
		index:       index,
		defaultTopK: d.Retrieval.TopK,
		overFetch:   d.Retrieval.OverFetch,
		overlap:     d.Chunking.Overlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds the query and returns the best matching chunks.
func (s *SearchService) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveStage(string(domain.StageRetrieval), time.Since(start))
	}()

	topK := opts.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	fetch := topK * s.overFetch
	logger.Debug("TopK: %d, fetching %d candidates, filter %+v", topK, fetch, opts.Filter)

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := s.index.Query(ctx, vector, fetch, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	logger.Debug("Index returned %d candidates", len(candidates))

	results := rank(candidates, opts.Filter, s.overlap)
	if len(results) > topK {
		results = results[:topK]
	}

	s.metrics.Retrieved(len(results))
	logger.Info("Retrieved %d results", len(results))
	return results, nil
}

// rank filters, orders and deduplicates candidates. Ordering is by score
// descending, then chunk ordinal, then chunk ID so equal inputs always
// rank the same.
func rank(candidates []domain.SearchResult, filter domain.MetadataFilter, overlap int) []domain.SearchResult {
	filtered := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if filter.Matches(c.Chunk.Metadata) {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.Ordinal != b.Chunk.Ordinal {
			return a.Chunk.Ordinal < b.Chunk.Ordinal
		}
		return a.ChunkID < b.ChunkID
	})

	kept := make([]domain.SearchResult, 0, len(filtered))
	for _, c := range filtered {
		if !duplicatesAny(c, kept, overlap) {
			kept = append(kept, c)
		}
	}
	return kept
}

// duplicatesAny reports whether c repeats an already kept result: the
// same chunk, or a chunk of the same document whose span differs from it
// by at most overlap bytes at either end.
func duplicatesAny(c domain.SearchResult, kept []domain.SearchResult, overlap int) bool {
	for _, k := range kept {
		if k.ChunkID == c.ChunkID {
			return true
		}
		if k.Chunk.Document != c.Chunk.Document {
			continue
		}
		if abs(k.Chunk.Span.Start-c.Chunk.Span.Start) <= overlap && abs(k.Chunk.Span.End-c.Chunk.Span.End) <= overlap {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
