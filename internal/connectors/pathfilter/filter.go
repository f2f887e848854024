// Package pathfilter decides which repository paths are worth ingesting.
// Both the GitHub and filesystem sources share it so a repository yields
// the same document set whichever way it is read.
package pathfilter

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// DefaultMaxFileSize is the default per-file size cap in bytes.
const DefaultMaxFileSize = 50_000

// DefaultExtensions lists the documentation and source file types indexed
// when no explicit list is configured.
var DefaultExtensions = []string{
	".md", ".markdown", ".txt", ".rst",
	".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".rs", ".java",
	".c", ".cpp", ".h", ".cs", ".rb", ".php",
	".json", ".yaml", ".yml", ".toml", ".pdf",
}

// Filter selects paths by extension and doublestar globs.
//
// A pattern without a slash is matched against the base name, so "*.md"
// selects markdown at any depth. Patterns with a slash match the whole
// slash-separated path, e.g. "docs/**/*.md".
type Filter struct {
	// Include restricts paths to those matching at least one pattern.
	// Empty means every path is a candidate.
	Include []string

	// Exclude drops paths matching any pattern. Exclusion wins.
	Exclude []string

	// Extensions overrides DefaultExtensions when non-empty.
	Extensions []string

	// MaxFileSize skips larger files. Zero or negative disables the cap.
	MaxFileSize int64

	// IncludeHidden keeps paths with a dot-prefixed segment.
	IncludeHidden bool
}

// Default returns the filter used when a source sets nothing.
func Default() Filter {
	return Filter{MaxFileSize: DefaultMaxFileSize}
}

// Validate reports malformed glob patterns as a ConfigurationError.
func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return &domain.ConfigurationError{
				Op:  "path filter",
				Err: fmt.Errorf("%w: bad glob %q", domain.ErrInvalidInput, p),
			}
		}
	}
	return nil
}

// Match reports whether the slash-separated path should be ingested.
func (f Filter) Match(p string) bool {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return false
	}
	if !f.IncludeHidden && IsHidden(p) {
		return false
	}
	if !f.hasExtension(p) {
		return false
	}
	if len(f.Include) > 0 && !matchAny(f.Include, p) {
		return false
	}
	return !matchAny(f.Exclude, p)
}

// WithinSize reports whether a file of the given size passes the cap.
func (f Filter) WithinSize(size int64) bool {
	return f.MaxFileSize <= 0 || size <= f.MaxFileSize
}

func (f Filter) hasExtension(p string) bool {
	exts := f.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(normaliseExt(e), ext) {
			return true
		}
	}
	return false
}

// IsHidden reports whether any segment of the path starts with a dot.
func IsHidden(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if len(seg) > 1 && strings.HasPrefix(seg, ".") && seg != ".." {
			return true
		}
	}
	return false
}

// ParseList splits a comma-separated pattern or extension list.
func ParseList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func matchAny(patterns []string, p string) bool {
	base := path.Base(p)
	for _, pattern := range patterns {
		target := p
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

func normaliseExt(e string) string {
	e = strings.TrimSpace(e)
	if !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}
