// Package pdf extracts text from PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/logger"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser extracts plain text from PDF files page by page.
type Normaliser struct{}

// New creates a new PDF normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// SupportedSourceTypes returns source types for specialised handling.
func (n *Normaliser) SupportedSourceTypes() []string {
	return nil // All sources
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the text of every page. Pages are separated by a
// "--- Page N ---" marker line. A PDF without extractable text (for
// example a scan) is an empty document.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (res *driven.NormaliseResult, err error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	// The parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, &domain.DataError{Document: raw.URI, Err: fmt.Errorf("parse pdf: %v", p)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, &domain.DataError{Document: raw.URI, Err: fmt.Errorf("open pdf: %w", err)}
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, pageErr := p.GetPlainText(nil)
		if pageErr != nil {
			logger.Debug("pdf %s: page %d: %v", raw.URI, i, pageErr)
			text = ""
		}
		pages = append(pages, text)
	}

	text := JoinPages(pages)
	if text == "" {
		return nil, &domain.DataError{Document: raw.URI, Err: domain.ErrEmptyDocument}
	}
	return &driven.NormaliseResult{Text: text, Title: raw.MetaString("title")}, nil
}

// JoinPages renders page texts with numbered separators, skipping pages
// without text.
func JoinPages(pages []string) string {
	var sb strings.Builder
	for i, p := range pages {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n", i+1)
		sb.WriteString(p)
	}
	return sb.String()
}
