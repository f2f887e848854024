package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// setupTestStore creates a SQLite index in a temporary directory.
func setupTestStore(t *testing.T, dims int) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "index.db"), dims)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testRecord(repo, path string, ordinal int, vec ...float32) domain.IndexRecord {
	key := domain.DocumentKey{Repository: repo, Path: path}
	id := fmt.Sprintf("%s#%d", key, ordinal)
	return domain.IndexRecord{
		ID:     id,
		Vector: vec,
		Chunk: domain.Chunk{
			ID:       id,
			Document: key,
			Ordinal:  ordinal,
			Span:     domain.Span{Start: ordinal * 10, End: ordinal*10 + 12},
			Overlap:  2,
			Text:     fmt.Sprintf("text %d", ordinal),
			Metadata: domain.ChunkMetadata{
				Repository:  repo,
				Path:        path,
				Language:    "go",
				ContentType: domain.ContentTypeCode,
				FileType:    ".go",
				SourceURL:   "https://github.com/" + repo + "/blob/main/" + path,
			},
		},
	}
}

func TestNewStore_Migrates(t *testing.T) {
	store := setupTestStore(t, 3)

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
	assert.Equal(t, 3, store.Dimensions())
}

func TestNewStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	store, err := NewStore(path, 2)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{testRecord("acme/api", "a.go", 0, 1, 0)}))
	require.NoError(t, store.Close())

	t.Run("same dimensions keeps data", func(t *testing.T) {
		again, err := NewStore(path, 2)
		require.NoError(t, err)
		defer again.Close()

		stats, err := again.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Records)
	})

	t.Run("different dimensions fails", func(t *testing.T) {
		_, err := NewStore(path, 4)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.True(t, domain.IsConfiguration(err))
	})
}

func TestNewStore_InvalidDimensions(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "index.db"), 0)
	assert.True(t, domain.IsConfiguration(err))
}

func TestStore_UpsertAndQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	rec := testRecord("acme/api", "user.go", 1, 1, 0)
	rec.Chunk.Oversize = true
	rec.Chunk.Metadata.Functions = []string{"GetUser"}
	rec.Chunk.Metadata.Imports = []string{"context"}
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{rec}))

	results, err := store.Query(ctx, []float32{2, 0}, 5, domain.MetadataFilter{})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, rec.Chunk, results[0].Chunk)
}

func TestStore_QueryRanksAndLimits(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	var records []domain.IndexRecord
	for i := range 20 {
		records = append(records, testRecord("acme/api", "a.go", i, 1, float32(i)))
	}
	require.NoError(t, store.Upsert(ctx, records))

	results, err := store.Query(ctx, []float32{1, 0}, 3, domain.MetadataFilter{})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{results[0].Chunk.Ordinal, results[1].Chunk.Ordinal, results[2].Chunk.Ordinal})
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestStore_QueryFilter(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	md := testRecord("acme/docs", "guide.md", 0, 1, 0)
	md.Chunk.Metadata.Language = "markdown"
	md.Chunk.Metadata.ContentType = domain.ContentTypeMarkdown
	md.Chunk.Metadata.FileType = ".md"
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{
		testRecord("acme/api", "a.go", 0, 1, 0),
		md,
	}))

	tests := []struct {
		name   string
		filter domain.MetadataFilter
		want   []string
	}{
		{"no filter", domain.MetadataFilter{}, []string{"a.go", "guide.md"}},
		{"repository", domain.MetadataFilter{Repository: "acme/docs"}, []string{"guide.md"}},
		{"language", domain.MetadataFilter{Language: "go"}, []string{"a.go"}},
		{"file type", domain.MetadataFilter{FileType: ".md"}, []string{"guide.md"}},
		{"content type", domain.MetadataFilter{ContentType: domain.ContentTypeCode}, []string{"a.go"}},
		{"combined miss", domain.MetadataFilter{Repository: "acme/docs", Language: "go"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.Query(ctx, []float32{1, 0}, 10, tt.filter)
			require.NoError(t, err)

			var paths []string
			for _, r := range results {
				paths = append(paths, r.Chunk.Metadata.Path)
			}
			assert.Equal(t, tt.want, paths)
		})
	}
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	rec := testRecord("acme/api", "a.go", 0, 1, 0)

	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{rec}))
	rec.Chunk.Text = "updated"
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{rec}))

	results, err := store.Query(ctx, []float32{1, 0}, 5, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "updated", results[0].Chunk.Text)
}

func TestStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 3)

	err := store.Upsert(ctx, []domain.IndexRecord{testRecord("acme/api", "a.go", 0, 1, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = store.Query(ctx, []float32{1, 0}, 5, domain.MetadataFilter{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestStore_ReplaceDocument(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	key := domain.DocumentKey{Repository: "acme/api", Path: "a.go"}
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{
		testRecord("acme/api", "a.go", 0, 1, 0),
		testRecord("acme/api", "a.go", 1, 1, 0),
		testRecord("acme/api", "a.go", 2, 1, 0),
		testRecord("acme/api", "b.go", 0, 1, 0),
	}))

	require.NoError(t, store.ReplaceDocument(ctx, key, []domain.IndexRecord{
		testRecord("acme/api", "a.go", 0, 0, 1),
	}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Records)

	t.Run("failed replace keeps old records", func(t *testing.T) {
		err := store.ReplaceDocument(ctx, key, []domain.IndexRecord{testRecord("acme/api", "a.go", 0, 1)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Records)
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{
		testRecord("acme/api", "a.go", 0, 1, 0),
		testRecord("acme/api", "b.go", 0, 1, 0),
	}))

	require.NoError(t, store.DeleteDocument(ctx, domain.DocumentKey{Repository: "acme/api", Path: "a.go"}))
	require.NoError(t, store.DeleteDocument(ctx, domain.DocumentKey{Repository: "acme/api", Path: "missing.go"}))

	results, err := store.Query(ctx, []float32{1, 0}, 5, domain.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.go", results[0].Chunk.Metadata.Path)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t, 2)
	readme := testRecord("acme/docs", "README.md", 0, 1, 0)
	readme.Chunk.Metadata.Language = ""
	require.NoError(t, store.Upsert(ctx, []domain.IndexRecord{
		testRecord("acme/api", "a.go", 0, 1, 0),
		testRecord("acme/api", "a.go", 1, 1, 0),
		readme,
	}))

	stats, err := store.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.Dimensions)
	assert.Equal(t, map[string]int{"acme/api": 2, "acme/docs": 1}, stats.Repositories)
	assert.Equal(t, map[string]int{"go": 2}, stats.Languages)
}

func TestFilterClause(t *testing.T) {
	where, args := filterClause(domain.MetadataFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = filterClause(domain.MetadataFilter{Repository: "acme/api", FileType: ".go"})
	assert.Equal(t, " WHERE repository = ? AND file_type = ?", where)
	assert.Equal(t, []any{"acme/api", ".go"}, args)
}
