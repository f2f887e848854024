package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/postprocessors"
)

// mockSource implements driven.WatchableSource for testing.
type mockSource struct {
	docs        []domain.RawDocument
	errs        []error
	validateErr error
	changes     []domain.RawDocumentChange
}

func (m *mockSource) Type() string { return "mock" }

func (m *mockSource) Validate(_ context.Context) error { return m.validateErr }

func (m *mockSource) Fetch(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	go func() {
		defer close(docs)
		defer close(errs)
		for _, err := range m.errs {
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		}
		for _, d := range m.docs {
			select {
			case docs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return docs, errs
}

func (m *mockSource) Watch(_ context.Context) (<-chan domain.RawDocumentChange, error) {
	ch := make(chan domain.RawDocumentChange, len(m.changes))
	for _, c := range m.changes {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (m *mockSource) Close() error { return nil }

var _ driven.WatchableSource = (*mockSource)(nil)

// mockNormaliserRegistry returns the raw content as text.
type mockNormaliserRegistry struct{}

func (mockNormaliserRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw.MIMEType == "application/octet-stream" {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return &driven.NormaliseResult{Text: string(raw.Content)}, nil
}

func (mockNormaliserRegistry) Register(driven.Normaliser) {}

func (mockNormaliserRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

// mockTextEmbedder fails for texts containing a marker.
type mockTextEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTextEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	for _, t := range texts {
		switch {
		case strings.Contains(t, "RATELIMIT"):
			return nil, &domain.TransientServiceError{Service: "embedding", Attempts: 4, Err: domain.ErrRateLimited}
		case strings.Contains(t, "WRONGDIM"):
			return nil, &domain.ConfigurationError{Op: "embedding", Err: domain.ErrDimensionMismatch}
		}
	}
	return vectorsFor(texts, 3), nil
}

func raw(repo, path, text string) domain.RawDocument {
	return domain.RawDocument{
		Source:   "mock",
		URI:      repo + "/" + path,
		MIMEType: "text/plain",
		Content:  []byte(text),
		Metadata: map[string]any{
			domain.MetaRepository: repo,
			domain.MetaPath:       path,
			domain.MetaSourceURL:  "https://example.com/" + repo + "/" + path,
		},
	}
}

func testPipeline(t *testing.T) driven.PostProcessorPipeline {
	t.Helper()
	cfg := domain.PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {"max_size": 40, "overlap": 5, "lookback": 10},
		},
	}
	p, err := postprocessors.Build(postprocessors.NewDefaultRegistry(), cfg)
	require.NoError(t, err)
	return p
}

func newTestIngest(t *testing.T, index driven.VectorIndex, opts ...IngestOption) *IngestService {
	t.Helper()
	opts = append([]IngestOption{WithIndexRetry(fastRetry("index", 2))}, opts...)
	return NewIngestService(mockNormaliserRegistry{}, testPipeline(t), &mockTextEmbedder{}, index, opts...)
}

func outcomeOf(report *domain.IngestReport, doc string) domain.DocumentOutcome {
	for _, o := range report.Outcomes {
		if o.Document == doc {
			return o
		}
	}
	return domain.DocumentOutcome{}
}

func TestIngestService_IndexesDocuments(t *testing.T) {
	index := newMockVectorIndex()
	source := &mockSource{docs: []domain.RawDocument{
		raw("facebook/react", "docs/hooks.md", "Hooks let you use state. The useEffect hook runs after render."),
		raw("vercel/next.js", "docs/data.md", "The useSWR hook fetches data."),
		raw("acme/api", "hook.go", "package api\n\nfunc hook() {}\n"),
	}}

	report, err := newTestIngest(t, index, WithWorkers(2)).Ingest(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Count(domain.OutcomeIndexed))
	stats, _ := index.Stats(context.Background())
	assert.Equal(t, report.Chunks(), stats.Records)
	assert.Equal(t, 3, stats.Documents)

	for _, r := range index.records {
		assert.Equal(t, "https://example.com/"+r.Chunk.Metadata.Repository+"/"+r.Chunk.Metadata.Path, r.Chunk.Metadata.SourceURL)
	}
}

func TestIngestService_ReingestReplacesRecords(t *testing.T) {
	index := &replacingIndex{mockVectorIndex: newMockVectorIndex()}
	service := newTestIngest(t, index)
	key := domain.DocumentKey{Repository: "acme/docs", Path: "guide.md"}
	long := strings.Repeat("Sentence about hooks. ", 12)

	_, err := service.Ingest(context.Background(), &mockSource{docs: []domain.RawDocument{raw("acme/docs", "guide.md", long)}})
	require.NoError(t, err)
	first := index.recordsOf(key)
	require.Greater(t, len(first), 2)

	_, err = service.Ingest(context.Background(), &mockSource{docs: []domain.RawDocument{raw("acme/docs", "guide.md", long)}})
	require.NoError(t, err)
	assert.Equal(t, first, index.recordsOf(key))

	_, err = service.Ingest(context.Background(), &mockSource{docs: []domain.RawDocument{raw("acme/docs", "guide.md", "Short now.")}})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, index.recordsOf(key))
	assert.Equal(t, 3, index.replaces)
}

func TestIngestService_DeleteThenUpsertWithoutReplacer(t *testing.T) {
	index := newMockVectorIndex()
	service := newTestIngest(t, index)
	key := domain.DocumentKey{Repository: "acme/docs", Path: "a.md"}

	for _, text := range []string{strings.Repeat("word ", 40), "tiny"} {
		_, err := service.Ingest(context.Background(), &mockSource{docs: []domain.RawDocument{raw("acme/docs", "a.md", text)}})
		require.NoError(t, err)
	}

	assert.Equal(t, []int{0}, index.recordsOf(key))
	assert.Equal(t, 2, index.deletes)
}

func TestIngestService_SkipsBadDocuments(t *testing.T) {
	index := newMockVectorIndex()
	noPath := raw("acme/docs", "", "text")
	binary := raw("acme/docs", "blob.bin", "data")
	binary.MIMEType = "application/octet-stream"
	source := &mockSource{docs: []domain.RawDocument{
		raw("acme/docs", "good.md", "Good document."),
		noPath,
		raw("acme/docs", "empty.md", "  \n\t"),
		raw("acme/docs", "latin1.txt", "caf\xe9"),
		binary,
	}}

	report, err := newTestIngest(t, index).Ingest(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.OutcomeIndexed))
	assert.Equal(t, 4, report.Count(domain.OutcomeSkipped))
	assert.Contains(t, outcomeOf(report, "acme/docs:empty.md").Reason, "empty document")
	assert.Contains(t, outcomeOf(report, "acme/docs:latin1.txt").Reason, "not valid UTF-8")
}

func TestIngestService_TransientFailureDoesNotAbort(t *testing.T) {
	index := newMockVectorIndex()
	source := &mockSource{docs: []domain.RawDocument{
		raw("acme/docs", "a.md", "RATELIMIT here"),
		raw("acme/docs", "b.md", "fine"),
	}}

	report, err := newTestIngest(t, index).Ingest(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcomeOf(report, "acme/docs:a.md").Status)
	assert.Equal(t, domain.OutcomeIndexed, outcomeOf(report, "acme/docs:b.md").Status)
}

func TestIngestService_ConfigurationErrorAborts(t *testing.T) {
	docs := []domain.RawDocument{raw("acme/docs", "bad.md", "WRONGDIM")}
	for i := 0; i < 20; i++ {
		docs = append(docs, raw("acme/docs", fmt.Sprintf("doc%d.md", i), "fine"))
	}

	_, err := newTestIngest(t, newMockVectorIndex(), WithWorkers(1)).Ingest(context.Background(), &mockSource{docs: docs})

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.True(t, domain.IsConfiguration(err))
}

func TestIngestService_SourceErrorsAreReported(t *testing.T) {
	source := &mockSource{
		errs: []error{errors.New("fetch tree: 502")},
		docs: []domain.RawDocument{raw("acme/docs", "a.md", "fine")},
	}

	report, err := newTestIngest(t, newMockVectorIndex()).Ingest(context.Background(), source)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(domain.OutcomeFailed))
	assert.Equal(t, 1, report.Count(domain.OutcomeIndexed))
}

func TestIngestService_ValidateFails(t *testing.T) {
	source := &mockSource{validateErr: domain.ErrUnauthorized}

	_, err := newTestIngest(t, newMockVectorIndex()).Ingest(context.Background(), source)

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "validate source")
}

func TestIngestService_MaxFileSize(t *testing.T) {
	source := &mockSource{docs: []domain.RawDocument{raw("acme/docs", "big.md", strings.Repeat("x", 100))}}

	report, err := newTestIngest(t, newMockVectorIndex(), WithMaxFileSize(50)).Ingest(context.Background(), source)

	require.NoError(t, err)
	o := outcomeOf(report, "acme/docs:big.md")
	assert.Equal(t, domain.OutcomeSkipped, o.Status)
	assert.Contains(t, o.Reason, "exceeds limit 50")
}

func TestIngestService_IndexWriteRetried(t *testing.T) {
	index := newMockVectorIndex()
	index.upsertErr = domain.ErrTemporary
	source := &mockSource{docs: []domain.RawDocument{raw("acme/docs", "a.md", "fine")}}

	report, err := newTestIngest(t, index).Ingest(context.Background(), source)

	require.NoError(t, err)
	o := outcomeOf(report, "acme/docs:a.md")
	assert.Equal(t, domain.OutcomeFailed, o.Status)
	assert.Contains(t, o.Reason, "index failed after 2 attempts")
}

func TestIngestService_IngestDocuments(t *testing.T) {
	index := newMockVectorIndex()
	docs := []domain.Document{
		domain.NewDocument(domain.DocumentKey{Repository: "r", Path: "a.md"}, "alpha"),
		domain.NewDocument(domain.DocumentKey{Repository: "r", Path: "b.md"}, "beta"),
		domain.NewDocument(domain.DocumentKey{Repository: "r"}, "no path"),
	}

	report, err := newTestIngest(t, index).IngestDocuments(context.Background(), docs)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(domain.OutcomeIndexed))
	assert.Equal(t, 1, report.Count(domain.OutcomeSkipped))
	assert.Len(t, index.records, 2)
}

func TestIngestService_WatchAndRemove(t *testing.T) {
	index := newMockVectorIndex()
	service := newTestIngest(t, index)
	gone := raw("acme/docs", "old.md", "")
	gone.Content = nil

	_, err := service.IngestDocuments(context.Background(), []domain.Document{
		domain.NewDocument(domain.DocumentKey{Repository: "acme/docs", Path: "old.md"}, "stale"),
	})
	require.NoError(t, err)

	source := &mockSource{changes: []domain.RawDocumentChange{
		{Type: domain.ChangeCreated, Document: raw("acme/docs", "new.md", "fresh")},
		{Type: domain.ChangeDeleted, Document: gone},
	}}
	var outcomes []domain.DocumentOutcome
	err = service.Watch(context.Background(), source, func(o domain.DocumentOutcome) {
		outcomes = append(outcomes, o)
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.OutcomeIndexed, outcomes[0].Status)
	assert.Equal(t, domain.OutcomeRemoved, outcomes[1].Status)
	assert.Empty(t, index.recordsOf(domain.DocumentKey{Repository: "acme/docs", Path: "old.md"}))
	assert.Equal(t, []int{0}, index.recordsOf(domain.DocumentKey{Repository: "acme/docs", Path: "new.md"}))

	assert.ErrorIs(t, service.Remove(context.Background(), domain.DocumentKey{}), domain.ErrMissingIdentity)
}

func TestKeyLocks(t *testing.T) {
	locks := newKeyLocks()
	key := domain.DocumentKey{Repository: "r", Path: "a.md"}
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock(key)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, locks.locks)
}
