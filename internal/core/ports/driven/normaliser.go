package driven

import (
	"context"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// Normaliser transforms raw document bytes into text.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	// "*/*" marks a fallback for any type.
	SupportedMIMETypes() []string

	// SupportedSourceTypes returns source types for specialised handling.
	// Empty slice means all sources.
	SupportedSourceTypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Source-specific normalisers should return 90-100.
	// Generic MIME normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Chunking is handled afterwards by the PostProcessor pipeline.
type NormaliseResult struct {
	// Text is the extracted UTF-8 text.
	Text string

	// Title overrides the file name as display title when set.
	Title string

	// Tags are optional labels taken from the content.
	Tags []string
}
