package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// TextEmbedder embeds chunk texts in order.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService normalises, chunks, embeds and indexes documents.
//
// Documents are processed concurrently by a bounded worker pool. Work on
// the same document key is serialised so a re-ingestion never interleaves
// with another write for that document.
type IngestService struct {
	registry    driven.NormaliserRegistry
	pipeline    driven.PostProcessorPipeline
	embedder    TextEmbedder
	index       driven.VectorIndex
	workers     int
	maxFileSize int
	retry       RetryPolicy
	metrics     *metrics.Metrics
	locks       *keyLocks
}

// IngestOption configures an IngestService.
type IngestOption func(*IngestService)

// WithWorkers sets the number of documents processed concurrently.
func WithWorkers(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileSize skips raw documents larger than n bytes. Zero disables
// the check.
func WithMaxFileSize(n int) IngestOption {
	return func(s *IngestService) {
		s.maxFileSize = n
	}
}

// WithIndexRetry sets the retry policy for index writes.
func WithIndexRetry(p RetryPolicy) IngestOption {
	return func(s *IngestService) {
		s.retry = p
	}
}

// WithIngestMetrics records document outcomes.
func WithIngestMetrics(m *metrics.Metrics) IngestOption {
	return func(s *IngestService) {
		s.metrics = m
	}
}

// NewIngestService creates an ingestion service.
func NewIngestService(
	registry driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder TextEmbedder,
	index driven.VectorIndex,
	opts ...IngestOption,
) *IngestService {
	d := domain.DefaultAppSettings()
	s := &IngestService{
		registry:    registry,
		pipeline:    pipeline,
		embedder:    embedder,
		index:       index,
		workers:     d.Ingest.Workers,
		maxFileSize: d.Ingest.MaxFileSize,
		retry:       NewRetryPolicy("index", d.Retry),
		locks:       newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest consumes every document of source.
func (s *IngestService) Ingest(ctx context.Context, source driven.DocumentSource) (*domain.IngestReport, error) {
	logger.Section("Ingest " + source.Type())
	defer logger.Timed("ingest")()

	if err := source.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate source: %w", err)
	}

	report := &domain.IngestReport{}
	var mu sync.Mutex
	record := func(o domain.DocumentOutcome) {
		mu.Lock()
		report.Add(o)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	docs, errs := source.Fetch(gctx)
	for docs != nil || errs != nil {
		select {
		case raw, ok := <-docs:
			if !ok {
				docs = nil
				continue
			}
			g.Go(func() error {
				outcome, err := s.ingestRaw(gctx, raw)
				if err != nil {
					return err
				}
				record(outcome)
				return nil
			})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if gctx.Err() != nil {
				continue
			}
			logger.Warn("Source error: %v", err)
			record(domain.DocumentOutcome{Document: source.Type(), Status: domain.OutcomeFailed, Reason: err.Error()})
		case <-gctx.Done():
			docs, errs = nil, nil
		}
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	logger.Info("Ingested %d documents (%d chunks), skipped %d, failed %d",
		report.Count(domain.OutcomeIndexed), report.Chunks(),
		report.Count(domain.OutcomeSkipped), report.Count(domain.OutcomeFailed))
	return report, nil
}

// IngestDocuments indexes already normalised documents.
func (s *IngestService) IngestDocuments(ctx context.Context, docs []domain.Document) (*domain.IngestReport, error) {
	outcomes := make([]domain.DocumentOutcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range docs {
		g.Go(func() error {
			doc := docs[i]
			if doc.Key.IsZero() {
				outcomes[i] = s.outcome(doc.Key.String(), domain.OutcomeSkipped, 0, 0, domain.ErrMissingIdentity.Error())
				return nil
			}
			unlock := s.locks.lock(doc.Key)
			defer unlock()

			outcome, err := s.indexDocument(gctx, doc)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	err := g.Wait()

	report := &domain.IngestReport{}
	for _, o := range outcomes {
		if o.Status != "" {
			report.Add(o)
		}
	}
	return report, err
}

// Watch re-ingests changed documents until ctx ends.
func (s *IngestService) Watch(ctx context.Context, source driven.WatchableSource, onOutcome func(domain.DocumentOutcome)) error {
	changes, err := source.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch %s: %w", source.Type(), err)
	}
	logger.Info("Watching %s for changes", source.Type())

	for change := range changes {
		var outcome domain.DocumentOutcome
		if change.Type == domain.ChangeDeleted {
			outcome, err = s.removeRaw(ctx, change.Document)
		} else {
			outcome, err = s.ingestRaw(ctx, change.Document)
		}
		if err != nil {
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
		logger.Debug("%s %s: %s", change.Type, outcome.Document, outcome.Status)
		if onOutcome != nil {
			onOutcome(outcome)
		}
	}
	return nil
}

// Remove deletes a document's records.
func (s *IngestService) Remove(ctx context.Context, key domain.DocumentKey) error {
	if key.IsZero() {
		return fmt.Errorf("remove: %w", domain.ErrMissingIdentity)
	}
	unlock := s.locks.lock(key)
	defer unlock()

	return s.retry.Do(ctx, func(ctx context.Context) error {
		return s.index.DeleteDocument(ctx, key)
	})
}

func (s *IngestService) removeRaw(ctx context.Context, raw domain.RawDocument) (domain.DocumentOutcome, error) {
	key, err := raw.Key()
	if err != nil {
		return s.outcome(raw.URI, domain.OutcomeSkipped, 0, 0, err.Error()), nil
	}
	if err := s.Remove(ctx, key); err != nil {
		return s.classify(key.String(), err)
	}
	return s.outcome(key.String(), domain.OutcomeRemoved, 0, 0, ""), nil
}

// ingestRaw converts one raw document at the boundary into the fixed
// document schema and indexes it.
func (s *IngestService) ingestRaw(ctx context.Context, raw domain.RawDocument) (domain.DocumentOutcome, error) {
	key, err := raw.Key()
	if err != nil {
		return s.outcome(raw.URI, domain.OutcomeSkipped, 0, 0, err.Error()), nil
	}
	name := key.String()

	if s.maxFileSize > 0 && len(raw.Content) > s.maxFileSize {
		return s.outcome(name, domain.OutcomeSkipped, 0, 0,
			fmt.Sprintf("size %d exceeds limit %d", len(raw.Content), s.maxFileSize)), nil
	}

	unlock := s.locks.lock(key)
	defer unlock()

	res, err := s.registry.Normalise(ctx, &raw)
	if err != nil {
		if ctx.Err() == nil && !domain.IsConfiguration(err) {
			err = &domain.DataError{Document: name, Err: err}
		}
		return s.classify(name, err)
	}

	doc := domain.NewDocument(key, res.Text)
	if res.Title != "" {
		doc.Title = res.Title
	}
	doc.Tags = res.Tags
	doc.SourceURL = raw.MetaString(domain.MetaSourceURL)

	return s.indexDocument(ctx, doc)
}

func (s *IngestService) indexDocument(ctx context.Context, doc domain.Document) (domain.DocumentOutcome, error) {
	name := doc.Key.String()
	if strings.TrimSpace(doc.Text) == "" {
		return s.classify(name, &domain.DataError{Document: name, Err: domain.ErrEmptyDocument})
	}

	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return s.classify(name, err)
	}

	texts := make([]string, len(chunks))
	oversize := 0
	for i, c := range chunks {
		texts[i] = c.Text
		if c.Oversize {
			oversize++
		}
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return s.classify(name, fmt.Errorf("embed: %w", err))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexRecord{ID: c.ID, Vector: vectors[i], Chunk: c}
	}

	err = s.retry.Do(ctx, func(ctx context.Context) error {
		return s.replace(ctx, doc.Key, records)
	})
	if err != nil {
		return s.classify(name, fmt.Errorf("index: %w", err))
	}

	logger.Debug("Indexed %s: %d chunks (%d oversize)", name, len(chunks), oversize)
	return s.outcome(name, domain.OutcomeIndexed, len(chunks), oversize, ""), nil
}

// replace swaps a document's records, atomically when the index allows.
func (s *IngestService) replace(ctx context.Context, key domain.DocumentKey, records []domain.IndexRecord) error {
	if r, ok := s.index.(driven.DocumentReplacer); ok {
		return r.ReplaceDocument(ctx, key, records)
	}
	if err := s.index.DeleteDocument(ctx, key); err != nil {
		return fmt.Errorf("delete stale records: %w", err)
	}
	return s.index.Upsert(ctx, records)
}

// classify turns a per-document error into an outcome. Cancellation and
// configuration errors are returned to abort the whole run.
func (s *IngestService) classify(name string, err error) (domain.DocumentOutcome, error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.DocumentOutcome{}, err
	case domain.IsConfiguration(err):
		logger.Error("Aborting ingestion at %s: %v", name, err)
		return domain.DocumentOutcome{}, err
	case domain.IsDataError(err):
		logger.Warn("Skipping %s: %v", name, err)
		return s.outcome(name, domain.OutcomeSkipped, 0, 0, err.Error()), nil
	default:
		logger.Warn("Failed %s: %v", name, err)
		return s.outcome(name, domain.OutcomeFailed, 0, 0, err.Error()), nil
	}
}

func (s *IngestService) outcome(name string, status domain.OutcomeStatus, chunks, oversize int, reason string) domain.DocumentOutcome {
	s.metrics.Document(string(status), chunks, oversize)
	return domain.DocumentOutcome{
		Document: name,
		Status:   status,
		Chunks:   chunks,
		Oversize: oversize,
		Reason:   reason,
	}
}

// keyLocks hands out one mutex per document key, dropping it once no
// goroutine holds or waits for it.
type keyLocks struct {
	mu    sync.Mutex
	locks map[domain.DocumentKey]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[domain.DocumentKey]*keyLock)}
}

func (k *keyLocks) lock(key domain.DocumentKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
