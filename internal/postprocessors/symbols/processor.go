// Package symbols annotates code chunks with the functions, classes and
// imports declared inside them.
package symbols

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/codescan"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

var _ driven.PostProcessor = (*Processor)(nil)

// DefaultMaxPerKind caps the names recorded per kind and chunk.
const DefaultMaxPerKind = 10

// Processor fills ChunkMetadata symbol lists. Non-code documents and
// languages without a scanner pass through unchanged.
type Processor struct {
	maxPerKind int
}

// Option configures the processor.
type Option func(*Processor)

// WithMaxPerKind sets the per-kind cap. Zero or less disables the cap.
func WithMaxPerKind(n int) Option {
	return func(p *Processor) {
		p.maxPerKind = n
	}
}

// New creates a symbols processor.
func New(opts ...Option) *Processor {
	p := &Processor{maxPerKind: DefaultMaxPerKind}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "symbols"
}

// Process annotates chunks in place and returns them.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if doc == nil || !doc.IsCode() || len(chunks) == 0 {
		return chunks, nil
	}
	scanner, ok := codescan.For(doc.Language)
	if !ok {
		return chunks, nil
	}

	found := scanner.Scan(doc.Text)
	if len(found) == 0 {
		return chunks, nil
	}

	for i := range chunks {
		byKind := codescan.Within(found, chunks[i].Span, p.maxPerKind)
		chunks[i].Metadata.Functions = byKind[domain.SymbolFunction]
		chunks[i].Metadata.Classes = byKind[domain.SymbolClass]
		chunks[i].Metadata.Imports = byKind[domain.SymbolImport]
	}
	return chunks, nil
}
