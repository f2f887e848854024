package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedRPM        = "embedding.requests_per_minute"
	keyEmbedTPM        = "embedding.tokens_per_minute"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMTemperature  = "llm.temperature"
	keyLLMMaxTokens    = "llm.max_tokens"
	keyIndexBackend    = "index.backend"
	keyIndexPath       = "index.path"
	keyIndexDSN        = "index.dsn"
	keyIndexTable      = "index.table"
	keyChunkMaxSize    = "chunking.max_size"
	keyChunkOverlap    = "chunking.overlap"
	keyChunkLookback   = "chunking.lookback"
	keyRetrievalTopK   = "retrieval.top_k"
	keyRetrievalFetch  = "retrieval.over_fetch"
	keyContextBudget   = "context.token_budget"
	keyContextAnswer   = "context.answer_tokens"
	keyIngestWorkers   = "ingest.workers"
	keyIngestMaxSize   = "ingest.max_file_size"
	keyIngestMaxFiles  = "ingest.max_files"
	keyRetryAttempts   = "retry.max_attempts"
	keyRetryBaseDelay  = "retry.base_delay"
	keyRetryMaxDelay   = "retry.max_delay"
	keyRetryJitter     = "retry.jitter"
	keyGitHubToken     = "github.token"
	keyPipelineProcs   = "pipeline.processors"
	pipelineKeyPrefix  = "pipeline."
	keyPipelineChunker = "chunker"
)

// Environment variables that override file values.
//
//nolint:gosec // G101: variable names, not credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGitHubToken  = "GITHUB_TOKEN"
	EnvPgDSN        = "DEVRAG_PG_DSN"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
	kindDuration
	kindList
)

// knownKeys lists every settable key with its type.
var knownKeys = map[string]valueKind{
	keyEmbedProvider:  kindString,
	keyEmbedModel:     kindString,
	keyEmbedBaseURL:   kindString,
	keyEmbedAPIKey:    kindString,
	keyEmbedDims:      kindInt,
	keyEmbedBatchSize: kindInt,
	keyEmbedRPM:       kindInt,
	keyEmbedTPM:       kindInt,
	keyLLMProvider:    kindString,
	keyLLMModel:       kindString,
	keyLLMBaseURL:     kindString,
	keyLLMAPIKey:      kindString,
	keyLLMTemperature: kindFloat,
	keyLLMMaxTokens:   kindInt,
	keyIndexBackend:   kindString,
	keyIndexPath:      kindString,
	keyIndexDSN:       kindString,
	keyIndexTable:     kindString,
	keyChunkMaxSize:   kindInt,
	keyChunkOverlap:   kindInt,
	keyChunkLookback:  kindInt,
	keyRetrievalTopK:  kindInt,
	keyRetrievalFetch: kindInt,
	keyContextBudget:  kindInt,
	keyContextAnswer:  kindInt,
	keyIngestWorkers:  kindInt,
	keyIngestMaxSize:  kindInt,
	keyIngestMaxFiles: kindInt,
	keyRetryAttempts:  kindInt,
	keyRetryBaseDelay: kindDuration,
	keyRetryMaxDelay:  kindDuration,
	keyRetryJitter:    kindFloat,
	keyGitHubToken:    kindString,
	keyPipelineProcs:  kindList,
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnvLookup replaces os.Getenv for environment overrides.
func WithEnvLookup(getenv func(string) string) SettingsOption {
	return func(s *SettingsService) {
		s.getenv = getenv
	}
}

// NewSettingsService creates a new settings service.
func NewSettingsService(
	configStore driven.ConfigStore,
	aiValidator driven.AIConfigValidator,
	opts ...SettingsOption,
) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves current application settings. Unset keys take defaults and
// credentials from the environment win over the file.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:             s.configStore.GetString(keyEmbedModel),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL),
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.configStore.GetInt(keyEmbedDims),
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerMinute: s.getInt(keyEmbedRPM, d.Embedding.RequestsPerMinute),
			TokensPerMinute:   s.getInt(keyEmbedTPM, d.Embedding.TokensPerMinute),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:       s.configStore.GetString(keyLLMModel),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
		},
		Index: domain.IndexSettings{
			Backend: domain.IndexBackend(s.getString(keyIndexBackend, string(d.Index.Backend))),
			Path:    s.getString(keyIndexPath, d.Index.Path),
			DSN:     s.configStore.GetString(keyIndexDSN),
			Table:   s.getString(keyIndexTable, d.Index.Table),
		},
		Chunking: domain.ChunkingSettings{
			MaxSize:  s.getInt(keyChunkMaxSize, d.Chunking.MaxSize),
			Overlap:  s.getIntAllowZero(keyChunkOverlap, d.Chunking.Overlap),
			Lookback: s.getIntAllowZero(keyChunkLookback, d.Chunking.Lookback),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:      s.getInt(keyRetrievalTopK, d.Retrieval.TopK),
			OverFetch: s.getInt(keyRetrievalFetch, d.Retrieval.OverFetch),
		},
		Context: domain.ContextSettings{
			TokenBudget:  s.getInt(keyContextBudget, d.Context.TokenBudget),
			AnswerTokens: s.getIntAllowZero(keyContextAnswer, d.Context.AnswerTokens),
		},
		Ingest: domain.IngestSettings{
			Workers:     s.getInt(keyIngestWorkers, d.Ingest.Workers),
			MaxFileSize: s.getInt(keyIngestMaxSize, d.Ingest.MaxFileSize),
			MaxFiles:    s.getIntAllowZero(keyIngestMaxFiles, d.Ingest.MaxFiles),
		},
		Retry: domain.RetrySettings{
			MaxAttempts: s.getInt(keyRetryAttempts, d.Retry.MaxAttempts),
			BaseDelay:   s.getDuration(keyRetryBaseDelay, d.Retry.BaseDelay),
			MaxDelay:    s.getDuration(keyRetryMaxDelay, d.Retry.MaxDelay),
			Jitter:      s.getFloat(keyRetryJitter, d.Retry.Jitter),
		},
		GitHub: domain.GitHubSettings{
			Token: s.configStore.GetString(keyGitHubToken),
		},
	}

	if settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}

	s.applyEnv(settings)
	settings.Pipeline = s.GetPipelineConfig(settings.Chunking)

	return settings, nil
}

// applyEnv overlays credentials from the environment.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	keyFor := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderOpenAI:
			return s.getenv(EnvOpenAIKey)
		case domain.AIProviderAnthropic:
			return s.getenv(EnvAnthropicKey)
		default:
			return ""
		}
	}
	if v := keyFor(settings.Embedding.Provider); v != "" {
		settings.Embedding.APIKey = v
	}
	if v := keyFor(settings.LLM.Provider); v != "" {
		settings.LLM.APIKey = v
	}
	if v := s.getenv(EnvGitHubToken); v != "" {
		settings.GitHub.Token = v
	}
	if v := s.getenv(EnvPgDSN); v != "" {
		settings.Index.DSN = v
	}
}

// Set parses value according to the key's type and persists it.
// Keys under pipeline.<processor>. accept integers or strings.
func (s *SettingsService) Set(key, value string) error {
	key = strings.TrimSpace(key)
	kind, ok := knownKeys[key]
	if !ok {
		if !strings.HasPrefix(key, pipelineKeyPrefix) || strings.Count(key, ".") != 2 {
			return &domain.ConfigurationError{Op: key, Err: fmt.Errorf("%w: unknown key", domain.ErrInvalidInput)}
		}
		if n, err := strconv.Atoi(value); err == nil {
			return s.configStore.Set(key, n)
		}
		return s.configStore.Set(key, value)
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return &domain.ConfigurationError{Op: key, Err: fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInput, value)}
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return &domain.ConfigurationError{Op: key, Err: fmt.Errorf("%w: %q is not a number", domain.ErrInvalidInput, value)}
		}
		parsed = f
	case kindDuration:
		if _, err := time.ParseDuration(strings.TrimSpace(value)); err != nil {
			return &domain.ConfigurationError{Op: key, Err: fmt.Errorf("%w: %q is not a duration", domain.ErrInvalidInput, value)}
		}
		parsed = strings.TrimSpace(value)
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		parsed = items
	default:
		parsed = value
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// List returns every explicitly configured key. Secrets are masked.
func (s *SettingsService) List() map[string]string {
	out := make(map[string]string)
	for _, key := range s.configStore.Keys() {
		val, _ := s.configStore.Get(key)
		str := formatValue(val)
		if IsSecretKey(key) {
			str = MaskSecret(str)
		}
		out[key] = str
	}
	return out
}

// SortedKeys returns the keys of a List result in order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(val any) string {
	switch v := val.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(v, ",")
	default:
		return fmt.Sprint(v)
	}
}

// IsSecretKey reports whether values under key are masked in listings.
func IsSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key") || strings.HasSuffix(key, ".token") || strings.HasSuffix(key, ".dsn")
}

// MaskSecret hides all but the last four characters.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

// Validate checks the current settings. Failures are ConfigurationErrors.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	emb := settings.Embedding
	if !emb.Provider.IsValid() || emb.Provider == domain.AIProviderAnthropic {
		return &domain.ConfigurationError{
			Op:  keyEmbedProvider,
			Err: fmt.Errorf("%w: %q does not provide embeddings", domain.ErrUnsupportedType, emb.Provider),
		}
	}
	if emb.Provider.RequiresAPIKey() && emb.APIKey == "" {
		return &domain.ConfigurationError{
			Op:  keyEmbedAPIKey,
			Err: fmt.Errorf("%w: API key required for %s (set %s)", domain.ErrEmbeddingUnavailable, emb.Provider, EnvOpenAIKey),
		}
	}
	if settings.Index.Backend == domain.IndexBackendPgVector && settings.Index.DSN == "" {
		return &domain.ConfigurationError{
			Op:  keyIndexDSN,
			Err: fmt.Errorf("%w: pgvector needs a DSN (set %s)", domain.ErrVectorIndexUnavailable, EnvPgDSN),
		}
	}
	return nil
}

// ValidateLLM checks that generation is usable.
func (s *SettingsService) ValidateLLM() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return &domain.ConfigurationError{
			Op:  keyLLMProvider,
			Err: fmt.Errorf("%w: %s is not configured", domain.ErrLLMUnavailable, settings.LLM.Provider),
		}
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// The chunker takes its sizes from the chunking settings unless the
// pipeline.chunker.* keys override them.
func (s *SettingsService) GetPipelineConfig(chunking domain.ChunkingSettings) domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()

	if processors := s.configStore.GetStringSlice(keyPipelineProcs); len(processors) > 0 {
		cfg.Processors = processors
	}
	if cfg.ProcessorConfigs == nil {
		cfg.ProcessorConfigs = make(map[string]map[string]any)
	}

	chunker := cfg.ProcessorConfigs[keyPipelineChunker]
	if chunker == nil {
		chunker = make(map[string]any)
	}
	chunker["max_size"] = chunking.MaxSize
	chunker["overlap"] = chunking.Overlap
	chunker["lookback"] = chunking.Lookback
	cfg.ProcessorConfigs[keyPipelineChunker] = chunker

	for _, key := range s.configStore.Keys() {
		if !strings.HasPrefix(key, pipelineKeyPrefix) || key == keyPipelineProcs {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(key, pipelineKeyPrefix), ".", 2)
		if len(parts) != 2 {
			continue
		}
		val, _ := s.configStore.Get(key)
		proc := cfg.ProcessorConfigs[parts[0]]
		if proc == nil {
			proc = make(map[string]any)
			cfg.ProcessorConfigs[parts[0]] = proc
		}
		proc[parts[1]] = val
	}

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit zero as a value.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	// Invalid names are kept so Validate can report them.
	return domain.AIProvider(val)
}
