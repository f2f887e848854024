// Package ai provides factory functions for creating AI service adapters
// and the vector index they feed.
package ai

import (
	"context"
	"fmt"
	"time"

	hashingembed "github.com/custodia-labs/devrag-cli/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/devrag-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/devrag-cli/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/devrag-cli/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/devrag-cli/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/devrag-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// fixHint is appended to provider errors.
const fixHint = "Run 'devrag config list' to review and 'devrag config set' to fix"

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	LLMService       driven.LLMService
	VectorIndex      driven.VectorIndex
	Warnings         []string // Non-fatal issues that caused fallback.
	FellBack         bool     // True if generation is unavailable and only retrieval works.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// InitOptions selects what Initialise builds.
type InitOptions struct {
	// RequireLLM fails instead of falling back when generation is unavailable.
	RequireLLM bool

	// SkipLLM leaves LLMService nil without a warning.
	SkipLLM bool

	// SkipPing builds services without contacting providers.
	SkipPing bool
}

// Initialise builds the embedding service, the vector index sized to it
// and, unless skipped, the LLM service. An unusable embedding provider or
// index is fatal. An unusable LLM is recorded as a warning and FellBack is
// set, unless RequireLLM is true.
func Initialise(ctx context.Context, settings *domain.AppSettings, opts InitOptions) (*InitResult, error) {
	result := &InitResult{}

	embed := CreateAndValidateEmbeddingService
	if opts.SkipPing {
		embed = CreateEmbeddingService
	}
	svc, err := embed(&settings.Embedding)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, &domain.ConfigurationError{
			Op:  "embedding",
			Err: fmt.Errorf("%w: provider %q is not configured. %s", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider, fixHint),
		}
	}
	result.EmbeddingService = svc

	index, err := CreateVectorIndex(ctx, &settings.Index, svc.Dimensions())
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorIndex = index

	if opts.SkipLLM {
		return result, nil
	}

	createLLM := CreateAndValidateLLMService
	if opts.SkipPing {
		createLLM = CreateLLMService
	}
	llm, err := createLLM(&settings.LLM)
	switch {
	case err != nil && opts.RequireLLM:
		result.Close()
		return nil, err
	case err != nil:
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
	case llm == nil && opts.RequireLLM:
		result.Close()
		return nil, &domain.ConfigurationError{
			Op:  "llm",
			Err: fmt.Errorf("%w: provider %q is not configured. %s", domain.ErrLLMUnavailable, settings.LLM.Provider, fixHint),
		}
	case llm == nil:
		result.Warnings = append(result.Warnings, "LLM provider not configured, answers are unavailable")
		result.FellBack = true
	default:
		result.LLMService = llm
	}

	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, withHint(domain.ErrEmbeddingUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, withHint(domain.ErrEmbeddingUnavailable, fmt.Errorf("service unreachable (%w)", err))
	}

	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, withHint(domain.ErrLLMUnavailable, err)
	}

	if svc == nil {
		return nil, nil
	}

	// Validate connectivity.
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, withHint(domain.ErrLLMUnavailable, fmt.Errorf("service unreachable (%w)", err))
	}

	return svc, nil
}

// withHint keeps configuration errors classified as such while attaching
// the unavailable sentinel and the fix hint.
func withHint(sentinel, err error) error {
	wrapped := fmt.Errorf("%w: %w. %s", sentinel, err, fixHint)
	if domain.IsConfiguration(err) {
		return &domain.ConfigurationError{Op: "ai", Err: wrapped}
	}
	return wrapped
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// The settings service calls it when provider values change.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateLLMConfig validates an LLM configuration by creating a service and pinging it.
// The settings service calls it when provider values change.
func ValidateLLMConfig(settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Provider == domain.AIProviderAnthropic {
		// Anthropic does not support embeddings.
		return nil, &domain.ConfigurationError{
			Op:  "embedding",
			Err: fmt.Errorf("%w: anthropic does not support embeddings, use ollama, openai or hashing", domain.ErrUnsupportedType),
		}
	}
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderHashing:
		return hashingembed.NewEmbeddingService(settings.Dimensions), nil

	default:
		return nil, &domain.ConfigurationError{
			Op:  "embedding",
			Err: fmt.Errorf("%w: embedding provider %s", domain.ErrUnsupportedType, settings.Provider),
		}
	}
}

// CreateLLMService creates the appropriate LLM service based on settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, &domain.ConfigurationError{
			Op:  "llm",
			Err: fmt.Errorf("%w: LLM provider %s", domain.ErrUnsupportedType, settings.Provider),
		}
	}
}

// CreateVectorIndex opens the configured index backend for vectors of the
// given size.
func CreateVectorIndex(ctx context.Context, settings *domain.IndexSettings, dimensions int) (driven.VectorIndex, error) {
	backend := domain.IndexBackendSQLite
	if settings != nil && settings.Backend != "" {
		backend = settings.Backend
	}

	switch backend {
	case domain.IndexBackendMemory:
		return memory.NewVectorIndex(dimensions), nil

	case domain.IndexBackendSQLite:
		path := ""
		if settings != nil {
			path = settings.Path
		}
		return sqlite.NewStore(path, dimensions)

	case domain.IndexBackendPgVector:
		connectCtx, cancel := context.WithTimeout(ctx, 2*pingTimeout)
		defer cancel()
		return pgvector.New(connectCtx, pgvector.Config{
			DSN:        settings.DSN,
			Table:      settings.Table,
			Dimensions: dimensions,
		})

	default:
		return nil, &domain.ConfigurationError{
			Op:  "index",
			Err: fmt.Errorf("%w: index backend %s", domain.ErrUnsupportedType, backend),
		}
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

// createAnthropicLLM creates an Anthropic LLM service.
func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
