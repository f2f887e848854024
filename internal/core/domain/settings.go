package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API (generation only).
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderHashing is the offline feature-hashing embedder (embeddings only).
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderHashing:
		return "Feature hashing (offline)"
	default:
		return unknownDescription
	}
}

// IndexBackend selects the vector index implementation.
type IndexBackend string

// Available index backends.
const (
	IndexBackendSQLite   IndexBackend = "sqlite"
	IndexBackendMemory   IndexBackend = "memory"
	IndexBackendPgVector IndexBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendSQLite, IndexBackendMemory, IndexBackendPgVector:
		return true
	default:
		return false
	}
}

// EmbeddingSettings holds embedding gateway configuration.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string
	APIKey  string

	// Dimensions overrides the model's native dimension when non-zero.
	Dimensions int

	// BatchSize is the maximum number of texts per request.
	BatchSize int

	// RequestsPerMinute and TokensPerMinute throttle calls to the provider.
	RequestsPerMinute int
	TokensPerMinute   int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds generation service configuration.
type LLMSettings struct {
	Provider    AIProvider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderHashing {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// IndexSettings holds vector index configuration.
type IndexSettings struct {
	Backend IndexBackend

	// Path is the SQLite database file.
	Path string

	// DSN is the PostgreSQL connection string for pgvector.
	DSN string

	// Table is the pgvector table name.
	Table string
}

// ChunkingSettings holds chunker configuration. Sizes count characters.
type ChunkingSettings struct {
	MaxSize  int
	Overlap  int
	Lookback int
}

// RetrievalSettings holds retriever configuration.
type RetrievalSettings struct {
	TopK      int
	OverFetch int
}

// ContextSettings holds context assembly configuration.
type ContextSettings struct {
	// TokenBudget is the total prompt budget.
	TokenBudget int

	// AnswerTokens is reserved for the generated answer.
	AnswerTokens int
}

// IngestSettings holds ingestion pipeline configuration.
type IngestSettings struct {
	Workers     int
	MaxFileSize int
	MaxFiles    int
}

// RetrySettings parameterises the bounded retry policy.
type RetrySettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// GitHubSettings holds GitHub source configuration.
type GitHubSettings struct {
	Token string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Index     IndexSettings
	Chunking  ChunkingSettings
	Retrieval RetrievalSettings
	Context   ContextSettings
	Ingest    IngestSettings
	Retry     RetrySettings
	GitHub    GitHubSettings
	Pipeline  PipelineConfig
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:          AIProviderOpenAI,
			Model:             "text-embedding-3-small",
			BatchSize:         100,
			RequestsPerMinute: 3000,
			TokensPerMinute:   1_000_000,
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Index: IndexSettings{
			Backend: IndexBackendSQLite,
			Table:   "devrag_chunks",
		},
		Chunking: ChunkingSettings{
			MaxSize:  1000,
			Overlap:  200,
			Lookback: 200,
		},
		Retrieval: RetrievalSettings{
			TopK:      5,
			OverFetch: 2,
		},
		Context: ContextSettings{
			TokenBudget:  4000,
			AnswerTokens: 1000,
		},
		Ingest: IngestSettings{
			Workers:     4,
			MaxFileSize: 50_000,
			MaxFiles:    100,
		},
		Retry: RetrySettings{
			MaxAttempts: 4,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
			Jitter:      0.2,
		},
		Pipeline: DefaultPipelineConfig(),
	}
}

// Validate checks cross-field constraints. Failures are ConfigurationErrors.
func (s AppSettings) Validate() error {
	if s.Chunking.MaxSize <= 0 {
		return &ConfigurationError{Op: "chunking.max_size", Err: ErrInvalidChunkSize}
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.MaxSize {
		return &ConfigurationError{
			Op:  "chunking.overlap",
			Err: fmt.Errorf("%w (overlap %d, max %d)", ErrInvalidOverlap, s.Chunking.Overlap, s.Chunking.MaxSize),
		}
	}
	if s.Context.TokenBudget <= s.Context.AnswerTokens {
		return &ConfigurationError{
			Op:  "context.token_budget",
			Err: fmt.Errorf("%w: budget %d must exceed answer tokens %d", ErrInvalidBudget, s.Context.TokenBudget, s.Context.AnswerTokens),
		}
	}
	if s.Retrieval.OverFetch < 1 {
		return &ConfigurationError{Op: "retrieval.over_fetch", Err: fmt.Errorf("%w: must be at least 1", ErrInvalidInput)}
	}
	if !s.Index.Backend.IsValid() {
		return &ConfigurationError{Op: "index.backend", Err: fmt.Errorf("%w: %q", ErrUnsupportedType, s.Index.Backend)}
	}
	if s.Retry.MaxAttempts < 1 {
		return &ConfigurationError{Op: "retry.max_attempts", Err: fmt.Errorf("%w: must be at least 1", ErrInvalidInput)}
	}
	return nil
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderHashing: "hashing-v1",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-3.5-turbo",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"hashing-v1":             256,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so processors can be added without
// modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration keyed by name.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig chunks with the default sizes and then annotates
// chunks with code symbols.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker", "symbols"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"max_size": 1000,
				"overlap":  200,
				"lookback": 200,
			},
			"symbols": {
				"max_per_kind": 10,
			},
		},
	}
}
