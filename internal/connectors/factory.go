package connectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/devrag-cli/internal/connectors/filesystem"
	"github.com/custodia-labs/devrag-cli/internal/connectors/github"
	"github.com/custodia-labs/devrag-cli/internal/connectors/pathfilter"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Source type identifiers.
const (
	TypeGitHub     = "github"
	TypeFilesystem = "filesystem"
)

// Options configures a source built by New.
type Options struct {
	// Filter selects ingested paths. The zero value means pathfilter.Default.
	Filter *pathfilter.Filter

	// MaxFiles caps one fetch. Zero keeps the source default.
	MaxFiles int

	// Repository overrides the repository name of filesystem sources.
	Repository string

	// GitHubToken authenticates GitHub requests. Empty means anonymous.
	GitHubToken string

	// GitHubOptions are passed to the GitHub client.
	GitHubOptions []github.ClientOption
}

// New builds a source for target. A "github:owner/repo[@ref]" target or a
// github.com URL selects the GitHub source; anything else is a local path.
func New(ctx context.Context, target string, opts Options) (driven.DocumentSource, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, &domain.ConfigurationError{Op: "source", Err: fmt.Errorf("%w: empty target", domain.ErrInvalidInput)}
	}

	if repo, ok := GitHubTarget(target); ok {
		return NewGitHub(ctx, repo, opts)
	}
	return NewFilesystem(target, opts), nil
}

// GitHubTarget reports whether target names a GitHub repository and
// returns the repository reference without its prefix.
func GitHubTarget(target string) (string, bool) {
	switch {
	case strings.HasPrefix(target, "github:"):
		return strings.TrimPrefix(target, "github:"), true
	case strings.HasPrefix(target, "https://github.com/"),
		strings.HasPrefix(target, "http://github.com/"),
		strings.HasPrefix(target, "github.com/"):
		return target, true
	default:
		return "", false
	}
}

// NewGitHub builds a GitHub source for "owner/repo[@ref]".
func NewGitHub(ctx context.Context, repo string, opts Options) (*github.Connector, error) {
	cfg, err := github.ParseRepository(repo)
	if err != nil {
		return nil, err
	}
	if opts.Filter != nil {
		cfg.Filter = *opts.Filter
	}
	if opts.MaxFiles > 0 {
		cfg.MaxFiles = opts.MaxFiles
	}

	client, err := github.NewClient(ctx, opts.GitHubToken, opts.GitHubOptions...)
	if err != nil {
		return nil, err
	}
	return github.New(cfg, client), nil
}

// NewFilesystem builds a filesystem source rooted at path.
func NewFilesystem(path string, opts Options) *filesystem.Connector {
	fsOpts := []filesystem.Option{filesystem.WithMaxFiles(opts.MaxFiles)}
	if opts.Filter != nil {
		fsOpts = append(fsOpts, filesystem.WithFilter(*opts.Filter))
	}
	if opts.Repository != "" {
		fsOpts = append(fsOpts, filesystem.WithRepository(opts.Repository))
	}
	return filesystem.New(path, fsOpts...)
}
