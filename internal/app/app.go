// Package app wires configuration, providers, the vector index and the
// core services into what the command line needs.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/devrag-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/services"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
	"github.com/custodia-labs/devrag-cli/internal/normalisers"
	"github.com/custodia-labs/devrag-cli/internal/postprocessors"
)

// Ensure Bootstrap matches the command line contract.
var _ cli.Bootstrap = Bootstrap

// Options adjust how services are built. The zero value is production.
type Options struct {
	// ConfigStore replaces the TOML store under the config directory.
	ConfigStore driven.ConfigStore

	// Getenv replaces os.Getenv for credential overrides.
	Getenv func(string) string

	// SkipPing builds providers without contacting them.
	SkipPing bool
}

// Bootstrap builds services for req with production options.
func Bootstrap(ctx context.Context, req cli.BootstrapRequest) (*cli.Services, func(), error) {
	return New(Options{})(ctx, req)
}

// New returns a Bootstrap using opts.
func New(opts Options) cli.Bootstrap {
	return func(ctx context.Context, req cli.BootstrapRequest) (*cli.Services, func(), error) {
		return build(ctx, req, opts)
	}
}

func build(ctx context.Context, req cli.BootstrapRequest, opts Options) (*cli.Services, func(), error) {
	store := opts.ConfigStore
	if store == nil {
		fs, err := file.NewConfigStore(req.ConfigPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open config: %w", err)
		}
		store = fs
	}

	var settingsOpts []services.SettingsOption
	if opts.Getenv != nil {
		settingsOpts = append(settingsOpts, services.WithEnvLookup(opts.Getenv))
	}
	settingsSvc := services.NewSettingsService(store, ai.NewConfigValidator(), settingsOpts...)

	out := &cli.Services{Settings: settingsSvc}
	if req.Needs == cli.NeedsSettings {
		return out, nil, nil
	}

	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, nil, err
	}
	applyOverrides(settings, req)
	out.GitHubToken = settings.GitHub.Token

	logger.Section("Bootstrap")
	done := logger.Timed("bootstrap")
	defer done()

	res, err := ai.Initialise(ctx, settings, ai.InitOptions{
		SkipLLM:  req.Needs != cli.NeedsLLM,
		SkipPing: opts.SkipPing,
	})
	if err != nil {
		return nil, nil, err
	}
	out.Warnings = append(out.Warnings, res.Warnings...)

	m := metrics.New(metrics.DefaultNamespace)
	out.Metrics = m

	embedder := services.NewBatchEmbedder(res.EmbeddingService,
		services.WithBatchSize(settings.Embedding.BatchSize),
		services.WithRateLimits(settings.Embedding.RequestsPerMinute, settings.Embedding.TokensPerMinute),
		services.WithEmbedRetry(services.NewRetryPolicy("embedding", settings.Retry).WithMetrics(m)),
		services.WithEmbedMetrics(m),
	)

	search := services.NewSearchService(embedder, res.VectorIndex,
		services.WithDefaultTopK(settings.Retrieval.TopK),
		services.WithOverFetch(settings.Retrieval.OverFetch),
		services.WithDedupOverlap(settings.Chunking.Overlap),
		services.WithSearchMetrics(m),
	)
	out.Search = search
	out.Stats = services.NewStatsService(res.VectorIndex)

	pipeline, err := postprocessors.Build(postprocessors.NewDefaultRegistry(), settings.Pipeline)
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	out.Ingest = services.NewIngestService(normalisers.NewDefaultRegistry(), pipeline, embedder, res.VectorIndex,
		services.WithWorkers(settings.Ingest.Workers),
		services.WithMaxFileSize(settings.Ingest.MaxFileSize),
		services.WithIndexRetry(services.NewRetryPolicy("index", settings.Retry).WithMetrics(m)),
		services.WithIngestMetrics(m),
	)

	if req.Needs == cli.NeedsLLM {
		prompts, err := file.NewPromptStore(promptDir(req.ConfigPath))
		if err != nil {
			logger.Warn("Prompt store unavailable, using built-in prompts: %v", err)
		}
		var promptStore driven.PromptStore
		if prompts != nil {
			promptStore = prompts
		}
		out.RAG = services.NewRAGService(search, res.LLMService, promptStore,
			services.WithRAGDefaults(*settings),
			services.WithGenerationRetry(services.NewRetryPolicy("generation", settings.Retry).WithMetrics(m)),
			services.WithRAGMetrics(m),
		)
	}

	return out, res.Close, nil
}

// applyOverrides folds command line overrides and the config directory
// into settings.
func applyOverrides(settings *domain.AppSettings, req cli.BootstrapRequest) {
	if req.Workers > 0 {
		settings.Ingest.Workers = req.Workers
	}
	if req.MaxFileSize > 0 {
		settings.Ingest.MaxFileSize = req.MaxFileSize
	}
	if settings.Index.Backend == domain.IndexBackendSQLite && settings.Index.Path == "" && req.ConfigPath != "" {
		settings.Index.Path = filepath.Join(req.ConfigPath, "index.db")
	}
}

func promptDir(configDir string) string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "prompts")
}
