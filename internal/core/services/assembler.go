package services

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/logger"
)

// ContextAssembler packs ranked results into a token-budgeted bundle.
//
// Results are taken greedily in rank order. Each costs its estimated text
// tokens plus domain.CitationOverheadTokens, and packing stops at the first
// result that does not fit. Chunks are never cut, with one exception: when
// the top result alone exceeds the budget it is truncated at whitespace
// and flagged, so a query with candidates always gets some context.
//
// The selected fragments are grouped by document. Groups are ordered by
// their best score and fragments within a group by chunk ordinal.
type ContextAssembler struct{}

// NewContextAssembler creates an assembler.
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// Assemble builds a bundle from results under budget tokens.
func (a *ContextAssembler) Assemble(results []domain.SearchResult, budget int) (*domain.ContextBundle, error) {
	if budget <= domain.CitationOverheadTokens {
		return nil, fmt.Errorf("assemble: %w: budget %d must exceed citation overhead %d",
			domain.ErrInvalidBudget, budget, domain.CitationOverheadTokens)
	}

	bundle := &domain.ContextBundle{Budget: budget}
	if len(results) == 0 {
		return bundle, nil
	}

	selected := make([]domain.ContextFragment, 0, len(results))
	for _, r := range results {
		cost := domain.EstimateTokens(r.Chunk.Text) + domain.CitationOverheadTokens
		if bundle.Tokens+cost > budget {
			break
		}
		selected = append(selected, fragment(r, r.Chunk.Text, false))
		bundle.Tokens += cost
	}

	if len(selected) == 0 {
		top := results[0]
		text := truncateAtWhitespace(top.Chunk.Text, (budget-domain.CitationOverheadTokens)*domain.CharsPerToken)
		selected = append(selected, fragment(top, text, true))
		bundle.Tokens = domain.EstimateTokens(text) + domain.CitationOverheadTokens
		logger.Debug("Top result exceeds budget %d, truncated to %d bytes", budget, len(text))
	}

	bundle.Fragments = groupBySource(selected)
	logger.Debug("Assembled %d of %d results, %d/%d tokens", len(bundle.Fragments), len(results), bundle.Tokens, budget)
	return bundle, nil
}

// BuildPrompt fills a template taking the rendered context and the
// question, in that order.
func (a *ContextAssembler) BuildPrompt(template string, bundle *domain.ContextBundle, question string) string {
	return fmt.Sprintf(template, bundle.Render(), question)
}

func fragment(r domain.SearchResult, text string, truncated bool) domain.ContextFragment {
	return domain.ContextFragment{
		ChunkID:   r.ChunkID,
		Citation:  r.Chunk.Citation(),
		Ordinal:   r.Chunk.Ordinal,
		Score:     r.Score,
		Text:      text,
		Truncated: truncated,
	}
}

// groupBySource orders fragments of one document together. Input is in
// rank order, so a document's first fragment carries its best score.
func groupBySource(fragments []domain.ContextFragment) []domain.ContextFragment {
	type group struct {
		best  float64
		first int
		items []domain.ContextFragment
	}
	groups := make(map[domain.Citation]*group)
	order := make([]*group, 0, len(fragments))
	for i, f := range fragments {
		g, ok := groups[f.Citation]
		if !ok {
			g = &group{best: f.Score, first: i}
			groups[f.Citation] = g
			order = append(order, g)
		}
		if f.Score > g.best {
			g.best = f.Score
		}
		g.items = append(g.items, f)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].best != order[j].best {
			return order[i].best > order[j].best
		}
		return order[i].first < order[j].first
	})

	out := make([]domain.ContextFragment, 0, len(fragments))
	for _, g := range order {
		sort.SliceStable(g.items, func(i, j int) bool {
			return g.items[i].Ordinal < g.items[j].Ordinal
		})
		out = append(out, g.items...)
	}
	return out
}

// truncateAtWhitespace returns the longest prefix of s of at most
// maxRunes runes that ends before a whitespace character. Without any
// whitespace in range it cuts at maxRunes.
func truncateAtWhitespace(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	limit := len(s)
	n := 0
	for i := range s {
		if n == maxRunes {
			limit = i
			break
		}
		n++
	}

	prefix := s[:limit]
	cut := strings.LastIndexFunc(prefix, unicode.IsSpace)
	if r, _ := utf8.DecodeRuneInString(s[limit:]); unicode.IsSpace(r) {
		cut = limit
	}
	if cut <= 0 {
		return prefix
	}
	if trimmed := strings.TrimRightFunc(prefix[:cut], unicode.IsSpace); trimmed != "" {
		return trimmed
	}
	return prefix
}
