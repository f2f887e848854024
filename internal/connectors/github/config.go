package github

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/devrag-cli/internal/connectors/pathfilter"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// DefaultMaxFiles caps how many files one fetch yields.
const DefaultMaxFiles = 100

// Config holds the parsed configuration for a GitHub source.
type Config struct {
	Owner string
	Repo  string

	// Ref is a branch, tag or commit. Empty means the default branch.
	Ref string

	// Filter selects which tree paths become documents.
	Filter pathfilter.Filter

	// MaxFiles stops the fetch after this many files. Zero disables the cap.
	MaxFiles int
}

// ParseRepository parses "owner/repo", "owner/repo@ref" or a github.com
// URL into a Config with default limits.
func ParseRepository(s string) (*Config, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://", "http://"} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimPrefix(s, "github.com/")

	var ref string
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s, ref = s[:i], s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, &domain.ConfigurationError{
			Op:  "github source",
			Err: fmt.Errorf("%w: got %q", ErrInvalidRepository, s),
		}
	}

	return &Config{
		Owner:    parts[0],
		Repo:     parts[1],
		Ref:      ref,
		Filter:   pathfilter.Default(),
		MaxFiles: DefaultMaxFiles,
	}, nil
}

// FullName returns "owner/repo", the repository half of every document key.
func (c *Config) FullName() string {
	return c.Owner + "/" + c.Repo
}

// Validate checks the configuration without network access.
func (c *Config) Validate() error {
	if c.Owner == "" || c.Repo == "" {
		return &domain.ConfigurationError{Op: "github source", Err: ErrInvalidRepository}
	}
	if c.MaxFiles < 0 {
		return &domain.ConfigurationError{
			Op:  "github source",
			Err: fmt.Errorf("%w: max files %d", domain.ErrInvalidInput, c.MaxFiles),
		}
	}
	return c.Filter.Validate()
}
