package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("retrieval.top_k", 7))
	require.NoError(t, store.Set("embedding.batch_size", int64(64)))
	require.NoError(t, store.Set("context.token_budget", float64(3000)))
	require.NoError(t, store.Set("llm.temperature", 0.3))
	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))
	require.NoError(t, store.Set("watch", true))
	require.NoError(t, store.Set("pipeline.processors", []any{"chunker", 3, "symbols"}))

	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.Equal(t, 64, store.GetInt("embedding.batch_size"))
	assert.Equal(t, 3000, store.GetInt("context.token_budget"))
	assert.InDelta(t, 0.3, store.GetFloat("llm.temperature"), 1e-9)
	assert.InDelta(t, 7.0, store.GetFloat("retrieval.top_k"), 1e-9)
	assert.Equal(t, "gpt-4o-mini", store.GetString("llm.model"))
	assert.True(t, store.GetBool("watch"))
	assert.Equal(t, []string{"chunker", "symbols"}, store.GetStringSlice("pipeline.processors"))
}

func TestConfigStore_MissingAndWrongTypes(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("llm.model", "x"))

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "", store.GetString("missing"))
	assert.Equal(t, 0, store.GetInt("llm.model"))
	assert.Equal(t, 0.0, store.GetFloat("llm.model"))
	assert.False(t, store.GetBool("llm.model"))
	assert.Nil(t, store.GetStringSlice("missing"))
	assert.Nil(t, store.GetStringSlice("llm.temperature"))
}

func TestConfigStore_NestedSeedIsFlattened(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"llm": map[string]any{
			"provider": "ollama",
			"options":  map[string]any{"num_ctx": 8192},
		},
		"index.backend": "memory",
	})
	require.NoError(t, store.Set("chunking", map[string]any{"max_size": 800}))

	assert.Equal(t, []string{"chunking.max_size", "index.backend", "llm.options.num_ctx", "llm.provider"}, store.Keys())
	assert.Equal(t, "ollama", store.GetString("llm.provider"))
	assert.Equal(t, 8192, store.GetInt("llm.options.num_ctx"))
	assert.Equal(t, 800, store.GetInt("chunking.max_size"))
	_, ok := store.Get("llm")
	assert.False(t, ok)
}

func TestConfigStore_StringValuesAreCoerced(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"retrieval.top_k":     "7",
		"llm.temperature":     "0.25",
		"ingest.watch":        "true",
		"pipeline.processors": "chunker, symbols",
		"chunking.max_size":   1.5,
	})

	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.InDelta(t, 0.25, store.GetFloat("llm.temperature"), 1e-9)
	assert.True(t, store.GetBool("ingest.watch"))
	assert.Equal(t, []string{"chunker", "symbols"}, store.GetStringSlice("pipeline.processors"))
	assert.Equal(t, 0, store.GetInt("chunking.max_size"), "fractional values are not ints")
}

func TestConfigStore_KeysSorted(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("b", 1))
	require.NoError(t, store.Set("a", 2))

	assert.Equal(t, []string{"a", "b"}, store.Keys())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("shared", n)
			_ = store.GetInt("shared")
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []string{"shared"}, store.Keys())
}
