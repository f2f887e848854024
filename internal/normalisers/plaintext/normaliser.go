package plaintext

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// bom is the UTF-8 byte order mark some editors prepend.
const bom = "\ufeff"

// Normaliser handles source code, configuration and plain text files.
// It is the fallback for any MIME type without a dedicated normaliser.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-rst",
		"text/yaml",
		"application/json",
		"application/xml",
		"*/*",
	}
}

// SupportedSourceTypes returns source types for specialised handling.
func (n *Normaliser) SupportedSourceTypes() []string {
	return nil // All sources
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the content as text. Text that is not valid UTF-8 is
// rejected as a data error so the document is skipped.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, &domain.DataError{Document: raw.URI, Err: domain.ErrUndecodableText}
	}

	return &driven.NormaliseResult{
		Text:  strings.TrimPrefix(string(raw.Content), bom),
		Title: raw.MetaString("title"),
	}, nil
}
