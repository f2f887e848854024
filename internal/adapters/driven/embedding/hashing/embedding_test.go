package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbed_Deterministic(t *testing.T) {
	svc := NewEmbeddingService(0)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "How do I configure the retry policy?")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "How do I configure the retry policy?")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestEmbed_LexicalSimilarity(t *testing.T) {
	svc := NewEmbeddingService(256)
	ctx := context.Background()

	query, _ := svc.Embed(ctx, "configure retry backoff")
	related, _ := svc.Embed(ctx, "The retry backoff is configured with max attempts")
	unrelated, _ := svc.Embed(ctx, "Rendering markdown tables in the browser")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestEmbed_Empty(t *testing.T) {
	vec, err := NewEmbeddingService(8).Embed(context.Background(), "  ...  ")

	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vec)
}

func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbeddingService(8).EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedBatch(t *testing.T) {
	svc := NewEmbeddingService(16)
	vecs, err := svc.EmbedBatch(context.Background(), []string{"alpha", "beta"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	single, _ := svc.Embed(context.Background(), "beta")
	assert.Equal(t, single, vecs[1])
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"func", "new_client", "ctx", "err"}, Tokenize("func New_Client(ctx) err"))
	assert.Empty(t, Tokenize("!!"))
}

func TestAccessors(t *testing.T) {
	svc := NewEmbeddingService(32)
	assert.Equal(t, 32, svc.Dimensions())
	assert.Equal(t, "hashing-v1", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
