// Package cli implements the devrag command line.
//
// Commands read their collaborators from package-level variables. Execute
// fills them through a Bootstrap before the selected command runs, so each
// command only pays for the services it declares it needs.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/connectors"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driving"
	"github.com/custodia-labs/devrag-cli/internal/logger"
	"github.com/custodia-labs/devrag-cli/internal/metrics"
)

// Needs declares what a command requires from the bootstrap.
type Needs string

// Needs values, from cheapest to most expensive.
const (
	NeedsSettings Needs = "settings"
	NeedsIndex    Needs = "index"
	NeedsLLM      Needs = "llm"
)

const needsAnnotation = "devrag.needs"

// SourceFactory builds a document source for an ingest target.
type SourceFactory func(ctx context.Context, target string, opts connectors.Options) (driven.DocumentSource, error)

// Services are the collaborators a bootstrap provides. Nil fields leave
// the current value in place.
type Services struct {
	Search   driving.SearchService
	RAG      driving.RAGService
	Ingest   driving.IngestService
	Stats    driving.StatsService
	Settings driving.SettingsService
	Metrics  *metrics.Metrics

	// GitHubToken is passed to GitHub sources when no flag overrides it.
	GitHubToken string

	// Warnings are shown before the command output.
	Warnings []string
}

// BootstrapRequest describes the command about to run.
type BootstrapRequest struct {
	ConfigPath string
	Needs      Needs

	// Workers and MaxFileSize override the configured ingest values when
	// positive.
	Workers     int
	MaxFileSize int
}

// Bootstrap builds services for a request. The returned function releases
// them and may be nil.
type Bootstrap func(ctx context.Context, req BootstrapRequest) (*Services, func(), error)

var (
	version = "dev"

	verbose    bool
	configPath string

	searchService   driving.SearchService
	ragService      driving.RAGService
	ingestService   driving.IngestService
	statsService    driving.StatsService
	settingsService driving.SettingsService
	appMetrics      *metrics.Metrics
	githubToken     string

	sourceFactory SourceFactory = connectors.New

	bootstrap Bootstrap
	release   func()
)

var rootCmd = &cobra.Command{
	Use:   "devrag",
	Short: "Ask questions about your developer documentation",
	Long: `devrag indexes documentation and source code from GitHub repositories
or local directories, then answers questions with cited context.

Ingest once, then search or ask:
  devrag ingest github:acme/api ./docs
  devrag search "retry policy"
  devrag query "How do I paginate the users endpoint?"`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config directory holding config.toml (default ~/.devrag)")
}

// Execute runs the command line with the given version and bootstrap.
func Execute(ctx context.Context, v string, b Bootstrap) error {
	version = v
	bootstrap = b
	defer func() {
		if release != nil {
			release()
			release = nil
		}
	}()
	return rootCmd.ExecuteContext(ctx)
}

func needsOf(cmd *cobra.Command) Needs {
	for c := cmd; c != nil; c = c.Parent() {
		if n, ok := c.Annotations[needsAnnotation]; ok {
			return Needs(n)
		}
	}
	return ""
}

func needs(n Needs) map[string]string {
	return map[string]string{needsAnnotation: string(n)}
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	logger.SetOutput(cmd.ErrOrStderr())

	n := needsOf(cmd)
	if n == "" || bootstrap == nil {
		return nil
	}

	req := BootstrapRequest{ConfigPath: configPath, Needs: n}
	if cmd.Name() == "ingest" {
		req.Workers = ingestWorkers
		req.MaxFileSize = ingestMaxSize
	}

	svc, done, err := bootstrap(cmd.Context(), req)
	if err != nil {
		return err
	}
	release = done
	apply(svc)

	for _, w := range svc.Warnings {
		cmd.PrintErrln(newStyles(cmd.ErrOrStderr()).Warning.Render("warning: " + w))
	}
	return nil
}

func apply(svc *Services) {
	if svc == nil {
		return
	}
	if svc.Search != nil {
		searchService = svc.Search
	}
	if svc.RAG != nil {
		ragService = svc.RAG
	}
	if svc.Ingest != nil {
		ingestService = svc.Ingest
	}
	if svc.Stats != nil {
		statsService = svc.Stats
	}
	if svc.Settings != nil {
		settingsService = svc.Settings
	}
	if svc.Metrics != nil {
		appMetrics = svc.Metrics
	}
	if svc.GitHubToken != "" {
		githubToken = svc.GitHubToken
	}
}

var errNotConfigured = errors.New("service not configured")
