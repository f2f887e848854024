package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Token estimation is a fixed, model-agnostic approximation: one token per
// four characters, rounded up. It can drift from a real tokenizer, so token
// budgets are approximate bounds.
const (
	CharsPerToken = 4

	// CitationOverheadTokens is charged once per included fragment for its
	// rendered source header.
	CitationOverheadTokens = 16
)

// EstimateTokens returns the approximate token count of s.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// Citation is a (repository, path) reference to retrieved text.
type Citation struct {
	Repository string
	Path       string
	SourceURL  string
}

// String returns "repository/path".
func (c Citation) String() string {
	if c.Repository == "" {
		return c.Path
	}
	return c.Repository + "/" + c.Path
}

// ContextFragment is one chunk selected into a context bundle.
type ContextFragment struct {
	ChunkID  string
	Citation Citation
	Ordinal  int
	Score    float64
	Text     string

	// Truncated is set only for the lone over-budget fallback fragment.
	Truncated bool
}

// ContextBundle is the ordered, token-budgeted context for one query.
type ContextBundle struct {
	Fragments []ContextFragment

	// Tokens is the estimated size including citation overhead.
	Tokens int

	// Budget is the token budget the bundle was assembled under.
	Budget int
}

// IsEmpty returns true if no fragment was selected.
func (b *ContextBundle) IsEmpty() bool {
	return b == nil || len(b.Fragments) == 0
}

// Citations returns the distinct citations in bundle order.
func (b *ContextBundle) Citations() []Citation {
	if b == nil {
		return nil
	}
	seen := make(map[Citation]bool, len(b.Fragments))
	out := make([]Citation, 0, len(b.Fragments))
	for _, f := range b.Fragments {
		if seen[f.Citation] {
			continue
		}
		seen[f.Citation] = true
		out = append(out, f.Citation)
	}
	return out
}

// Render formats the bundle as prompt context, one headed block per fragment.
func (b *ContextBundle) Render() string {
	if b.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	for i, f := range b.Fragments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "SOURCE %d: %s (chunk %d, relevance %.3f)\n", i+1, f.Citation, f.Ordinal, f.Score)
		sb.WriteString(f.Text)
	}
	return sb.String()
}
