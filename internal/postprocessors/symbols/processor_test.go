package symbols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/postprocessors/chunker"
)

const goSource = `package store

import "context"

type Store struct{}

func (s *Store) Get(ctx context.Context) error {
	return nil
}

func (s *Store) Put(ctx context.Context) error {
	return nil
}
`

func TestProcessor_AnnotatesChunks(t *testing.T) {
	doc := domain.NewDocument(domain.DocumentKey{Repository: "acme/store", Path: "store.go"}, goSource)
	chunks, err := chunker.Split(doc, 1000, 100)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	out, err := New().Process(context.Background(), &doc, chunks)

	require.NoError(t, err)
	assert.Equal(t, []string{"Get", "Put"}, out[0].Metadata.Functions)
	assert.Equal(t, []string{"Store"}, out[0].Metadata.Classes)
	assert.Equal(t, []string{"context"}, out[0].Metadata.Imports)
}

func TestProcessor_PerChunkSymbols(t *testing.T) {
	doc := domain.NewDocument(domain.DocumentKey{Repository: "acme/store", Path: "store.go"}, goSource)
	chunks, err := chunker.Split(doc, 90, 10)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	out, err := New().Process(context.Background(), &doc, chunks)
	require.NoError(t, err)

	var all []string
	for _, c := range out {
		all = append(all, c.Metadata.Functions...)
	}
	assert.Contains(t, all, "Get")
	assert.Contains(t, all, "Put")
	assert.Empty(t, out[0].Metadata.Functions)
}

func TestProcessor_MaxPerKind(t *testing.T) {
	doc := domain.NewDocument(domain.DocumentKey{Repository: "acme/store", Path: "store.go"}, goSource)
	chunks, err := chunker.Split(doc, 1000, 100)
	require.NoError(t, err)

	out, err := New(WithMaxPerKind(1)).Process(context.Background(), &doc, chunks)

	require.NoError(t, err)
	assert.Equal(t, []string{"Get"}, out[0].Metadata.Functions)
}

func TestProcessor_SkipsProse(t *testing.T) {
	doc := domain.NewDocument(domain.DocumentKey{Repository: "acme/docs", Path: "README.md"}, "def not_code(): pass")
	chunks, err := chunker.Split(doc, 1000, 100)
	require.NoError(t, err)

	out, err := New().Process(context.Background(), &doc, chunks)

	require.NoError(t, err)
	assert.Empty(t, out[0].Metadata.Functions)
}

func TestProcessor_Name(t *testing.T) {
	assert.Equal(t, "symbols", New().Name())
}
