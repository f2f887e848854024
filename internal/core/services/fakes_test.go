package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Each vector starts with the length of its text.
type mockEmbeddingService struct {
	mu      sync.Mutex
	dims    int
	calls   [][]string
	batchFn func(call int, texts []string) ([][]float32, error)
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.batchFn != nil {
		return m.batchFn(call, texts)
	}
	return vectorsFor(texts, m.dims), nil
}

func (m *mockEmbeddingService) Dimensions() int              { return m.dims }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

func (m *mockEmbeddingService) callSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.calls))
	for i, c := range m.calls {
		sizes[i] = len(c)
	}
	return sizes
}

func vectorsFor(texts []string, dims int) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out
}

// mockVectorIndex is an in-memory driven.VectorIndex. Query returns the
// configured results, or every stored record with score 1.
type mockVectorIndex struct {
	mu        sync.Mutex
	records   map[string]domain.IndexRecord
	results   []domain.SearchResult
	queryErr  error
	upsertErr error

	lastTopK   int
	lastFilter domain.MetadataFilter
	deletes    int
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{records: make(map[string]domain.IndexRecord)}
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *mockVectorIndex) DeleteDocument(_ context.Context, key domain.DocumentKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	for id, r := range m.records {
		if r.Chunk.Document == key {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, topK int, filter domain.MetadataFilter) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTopK = topK
	m.lastFilter = filter
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.results != nil {
		return m.results, nil
	}
	out := make([]domain.SearchResult, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, domain.SearchResult{ChunkID: r.ID, Score: 1, Chunk: r.Chunk})
	}
	return out, nil
}

func (m *mockVectorIndex) Dimensions() int { return 3 }

func (m *mockVectorIndex) Stats(_ context.Context) (domain.IndexStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make(map[domain.DocumentKey]bool)
	for _, r := range m.records {
		docs[r.Chunk.Document] = true
	}
	return domain.IndexStats{Records: len(m.records), Documents: len(docs), Dimensions: 3}, nil
}

func (m *mockVectorIndex) Close() error { return nil }

// recordsOf returns the stored ordinals of a document, sorted.
func (m *mockVectorIndex) recordsOf(key domain.DocumentKey) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ords []int
	for _, r := range m.records {
		if r.Chunk.Document == key {
			ords = append(ords, r.Chunk.Ordinal)
		}
	}
	sort.Ints(ords)
	return ords
}

// replacingIndex adds atomic replacement to mockVectorIndex.
type replacingIndex struct {
	*mockVectorIndex
	replaces int
}

func (r *replacingIndex) ReplaceDocument(ctx context.Context, key domain.DocumentKey, records []domain.IndexRecord) error {
	r.replaces++
	if err := r.DeleteDocument(ctx, key); err != nil {
		return err
	}
	return r.Upsert(ctx, records)
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	responses []string
	errs      []error
	calls     int
	messages  []driven.ChatMessage
	opts      driven.ChatOptions
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature})
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	i := m.calls
	m.calls++
	m.messages = messages
	m.opts = opts
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	if len(m.responses) > 0 {
		return m.responses[len(m.responses)-1], nil
	}
	return "answer", nil
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockSearchService implements driving.SearchService for testing.
type mockSearchService struct {
	results []domain.SearchResult
	err     error
	calls   int
	query   string
	opts    domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.calls++
	m.query = query
	m.opts = opts
	return m.results, m.err
}

// result builds a search result for a chunk of repo/path.
func result(repo, path string, ordinal, start, end int, score float64, text string) domain.SearchResult {
	key := domain.DocumentKey{Repository: repo, Path: path}
	doc := domain.NewDocument(key, text)
	id := fmt.Sprintf("%s#%d", key, ordinal)
	return domain.SearchResult{
		ChunkID: id,
		Score:   score,
		Chunk: domain.Chunk{
			ID:       id,
			Document: key,
			Ordinal:  ordinal,
			Span:     domain.Span{Start: start, End: end},
			Text:     text,
			Metadata: domain.NewChunkMetadata(doc),
		},
	}
}

// fastRetry retries quickly for tests.
func fastRetry(service string, attempts int) RetryPolicy {
	return RetryPolicy{
		Service:     service,
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}
