package chunker

import (
	"context"
	"fmt"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document text into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	maxSize  int
	overlap  int
	lookback int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(p *Processor) {
		p.maxSize = size
	}
}

// WithOverlap sets the overlap between consecutive chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithLookback sets how far before the size limit a boundary is searched.
func WithLookback(lookback int) Option {
	return func(p *Processor) {
		if lookback >= 0 {
			p.lookback = lookback
		}
	}
}

// New creates a chunker processor. It fails with a ChunkingError when the
// size is not positive or the overlap is not smaller than the size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		maxSize:  DefaultMaxSize,
		overlap:  DefaultOverlap,
		lookback: DefaultLookback,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.maxSize <= 0 {
		return nil, &domain.ChunkingError{Err: fmt.Errorf("%w (got %d)", domain.ErrInvalidChunkSize, p.maxSize)}
	}
	if p.overlap < 0 || p.overlap >= p.maxSize {
		return nil, &domain.ChunkingError{
			Err: fmt.Errorf("%w (overlap %d, max %d)", domain.ErrInvalidOverlap, p.overlap, p.maxSize),
		}
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// MaxSize returns the configured maximum chunk size.
func (p *Processor) MaxSize() int {
	return p.maxSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document text into chunks.
// Input chunks are ignored; this processor creates new chunks.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.Split(doc)
}
