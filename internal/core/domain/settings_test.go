package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		provider AIProvider
		want     bool
	}{
		{AIProviderOllama, true},
		{AIProviderOpenAI, true},
		{AIProviderAnthropic, true},
		{AIProviderHashing, true},
		{AIProvider("cohere"), false},
		{AIProvider(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_Traits(t *testing.T) {
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.False(t, AIProviderHashing.RequiresAPIKey())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.Equal(t, "Feature hashing (offline)", AIProviderHashing.Description())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderHashing}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}.IsConfigured())
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderAnthropic}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderHashing}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 1000, s.Chunking.MaxSize)
	assert.Equal(t, 200, s.Chunking.Overlap)
	assert.Equal(t, 5, s.Retrieval.TopK)
	assert.Equal(t, 4000, s.Context.TokenBudget)
	assert.Equal(t, IndexBackendSQLite, s.Index.Backend)
	assert.Equal(t, []string{"chunker", "symbols"}, s.Pipeline.Processors)
	require.NoError(t, s.Validate())
}

func TestAppSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppSettings)
		target error
	}{
		{"overlap equals max", func(s *AppSettings) { s.Chunking.Overlap = s.Chunking.MaxSize }, ErrInvalidOverlap},
		{"zero max", func(s *AppSettings) { s.Chunking.MaxSize = 0 }, ErrInvalidChunkSize},
		{"budget below answer", func(s *AppSettings) { s.Context.TokenBudget = 500 }, ErrInvalidBudget},
		{"bad backend", func(s *AppSettings) { s.Index.Backend = "faiss" }, ErrUnsupportedType},
		{"no attempts", func(s *AppSettings) { s.Retry.MaxAttempts = 0 }, ErrInvalidInput},
		{"no over-fetch", func(s *AppSettings) { s.Retrieval.OverFetch = 0 }, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultAppSettings()
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, IsConfiguration(err))
		})
	}
}

func TestPipelineConfig_GetProcessorConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.Equal(t, 1000, cfg.GetProcessorConfig("chunker")["max_size"])
	assert.Nil(t, cfg.GetProcessorConfig("missing"))

	empty := PipelineConfig{}
	assert.Nil(t, empty.GetProcessorConfig("chunker"))
}
