package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/devrag-cli/internal/connectors"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

type mockSearchService struct {
	results []domain.SearchResult
	err     error

	lastQuery string
	lastOpts  domain.SearchOptions
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQuery = query
	m.lastOpts = opts
	return m.results, m.err
}

type mockRAGService struct {
	answer *domain.Answer
	err    error

	requests []domain.QueryRequest
	convs    []*domain.Conversation
}

func (m *mockRAGService) Ask(_ context.Context, req domain.QueryRequest, conv *domain.Conversation) (*domain.Answer, error) {
	m.requests = append(m.requests, req)
	m.convs = append(m.convs, conv)
	if m.err == nil && conv != nil && m.answer != nil {
		conv.Append(domain.Turn{Question: req.Question, Answer: m.answer.Text, Citations: m.answer.Citations})
	}
	return m.answer, m.err
}

type mockIngestService struct {
	report *domain.IngestReport
	err    error

	sources []driven.DocumentSource
}

func (m *mockIngestService) Ingest(_ context.Context, source driven.DocumentSource) (*domain.IngestReport, error) {
	m.sources = append(m.sources, source)
	return m.report, m.err
}

func (m *mockIngestService) IngestDocuments(_ context.Context, _ []domain.Document) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Watch(_ context.Context, _ driven.WatchableSource, onOutcome func(domain.DocumentOutcome)) error {
	onOutcome(domain.DocumentOutcome{Document: "docs:guide.md", Status: domain.OutcomeIndexed, Chunks: 2})
	return nil
}

func (m *mockIngestService) Remove(_ context.Context, _ domain.DocumentKey) error {
	return m.err
}

type mockStatsService struct {
	stats domain.IndexStats
	err   error
}

func (m *mockStatsService) Stats(_ context.Context) (domain.IndexStats, error) {
	return m.stats, m.err
}

type mockSettingsService struct {
	settings domain.AppSettings
	values   map[string]string
	setErr   error

	validateErr    error
	validateLLMErr error
	embedErr       error
	llmErr         error
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), values: map[string]string{}}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	return &m.settings, nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockSettingsService) List() map[string]string {
	return m.values
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) ValidateLLM() error {
	return m.validateLLMErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig() error {
	return m.embedErr
}

func (m *mockSettingsService) ValidateLLMConfig() error {
	return m.llmErr
}

// mockSource is a document source that yields nothing.
type mockSource struct {
	target string
	closed bool
}

func (s *mockSource) Type() string {
	return "mock"
}

func (s *mockSource) Validate(context.Context) error {
	return nil
}

func (s *mockSource) Close() error {
	s.closed = true
	return nil
}

func (s *mockSource) Fetch(context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error)
	close(docs)
	close(errs)
	return docs, errs
}

// mockWatchableSource adds Watch to mockSource.
type mockWatchableSource struct {
	mockSource
}

func (s *mockWatchableSource) Watch(context.Context) (<-chan domain.RawDocumentChange, error) {
	ch := make(chan domain.RawDocumentChange)
	close(ch)
	return ch, nil
}

type testServices struct {
	search   *mockSearchService
	rag      *mockRAGService
	ingest   *mockIngestService
	stats    *mockStatsService
	settings *mockSettingsService

	targets []string
	opts    []connectors.Options
	sources []driven.DocumentSource
	watch   bool
}

// setupTestServices swaps every service for a mock and restores the
// originals when the test ends. Flags are reset to their defaults.
func setupTestServices(t *testing.T) (*testServices, *bytes.Buffer) {
	t.Helper()

	ts := &testServices{
		search:   &mockSearchService{},
		rag:      &mockRAGService{},
		ingest:   &mockIngestService{report: &domain.IngestReport{}},
		stats:    &mockStatsService{},
		settings: newMockSettingsService(),
	}

	origSearch, origRAG, origIngest := searchService, ragService, ingestService
	origStats, origSettings := statsService, settingsService
	origFactory, origBootstrap, origToken := sourceFactory, bootstrap, githubToken
	origVersion := version

	searchService = ts.search
	ragService = ts.rag
	ingestService = ts.ingest
	statsService = ts.stats
	settingsService = ts.settings
	bootstrap = nil
	githubToken = ""
	sourceFactory = func(_ context.Context, target string, opts connectors.Options) (driven.DocumentSource, error) {
		ts.targets = append(ts.targets, target)
		ts.opts = append(ts.opts, opts)
		var src driven.DocumentSource = &mockSource{target: target}
		if ts.watch {
			src = &mockWatchableSource{mockSource{target: target}}
		}
		ts.sources = append(ts.sources, src)
		return src, nil
	}

	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	t.Cleanup(func() {
		searchService, ragService, ingestService = origSearch, origRAG, origIngest
		statsService, settingsService = origStats, origSettings
		sourceFactory, bootstrap, githubToken = origFactory, origBootstrap, origToken
		version = origVersion
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	})

	return ts, buf
}

// resetFlags restores every flag of cmd and its children to its default,
// since cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}
