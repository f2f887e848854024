package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interfaces.
var (
	_ driven.VectorIndex      = (*VectorIndex)(nil)
	_ driven.DocumentReplacer = (*VectorIndex)(nil)
)

// VectorIndex is a brute-force in-memory vector index. Every query scores
// all matching records, so it suits tests and small corpora.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	records    map[string]domain.IndexRecord
	byDocument map[domain.DocumentKey]map[string]struct{}
}

// NewVectorIndex creates an empty index for vectors of the given size.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		records:    make(map[string]domain.IndexRecord),
		byDocument: make(map[domain.DocumentKey]map[string]struct{}),
	}
}

// Upsert inserts or replaces records by ID. The whole batch is rejected
// if any vector has the wrong size.
func (v *VectorIndex) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vecmath.CheckRecords("memory index upsert", records, v.dimensions); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.upsertLocked(records)
	return nil
}

// DeleteDocument removes every record of a document.
func (v *VectorIndex) DeleteDocument(ctx context.Context, key domain.DocumentKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleteLocked(key)
	return nil
}

// ReplaceDocument swaps a document's records under one lock, so queries
// never observe a half-replaced document.
func (v *VectorIndex) ReplaceDocument(ctx context.Context, key domain.DocumentKey, records []domain.IndexRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vecmath.CheckRecords("memory index replace", records, v.dimensions); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleteLocked(key)
	v.upsertLocked(records)
	return nil
}

func (v *VectorIndex) upsertLocked(records []domain.IndexRecord) {
	for _, r := range records {
		if old, ok := v.records[r.ID]; ok && old.Chunk.Document != r.Chunk.Document {
			delete(v.byDocument[old.Chunk.Document], r.ID)
		}
		r.Vector = append([]float32(nil), r.Vector...)
		v.records[r.ID] = r

		ids, ok := v.byDocument[r.Chunk.Document]
		if !ok {
			ids = make(map[string]struct{})
			v.byDocument[r.Chunk.Document] = ids
		}
		ids[r.ID] = struct{}{}
	}
}

func (v *VectorIndex) deleteLocked(key domain.DocumentKey) {
	for id := range v.byDocument[key] {
		delete(v.records, id)
	}
	delete(v.byDocument, key)
}

// Query scores every record that matches the filter.
func (v *VectorIndex) Query(
	ctx context.Context,
	vector []float32,
	topK int,
	filter domain.MetadataFilter,
) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := vecmath.CheckDimensions("memory index query", vector, v.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	results := make([]domain.SearchResult, 0, len(v.records))
	for id, r := range v.records {
		if !filter.Matches(r.Chunk.Metadata) {
			continue
		}
		results = append(results, domain.SearchResult{
			ChunkID: id,
			Score:   vecmath.Cosine(vector, r.Vector),
			Chunk:   r.Chunk,
		})
	}
	v.mu.RUnlock()

	return vecmath.Rank(results, topK), nil
}

// Dimensions returns the configured vector size.
func (v *VectorIndex) Dimensions() int {
	return v.dimensions
}

// Stats summarises the index contents.
func (v *VectorIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexStats{}, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	stats := domain.IndexStats{
		Records:      len(v.records),
		Documents:    len(v.byDocument),
		Dimensions:   v.dimensions,
		Repositories: make(map[string]int),
		Languages:    make(map[string]int),
	}
	for _, r := range v.records {
		stats.Repositories[r.Chunk.Metadata.Repository]++
		if r.Chunk.Metadata.Language != "" {
			stats.Languages[r.Chunk.Metadata.Language]++
		}
	}
	return stats, nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}
