package markdown

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
//
// The markdown itself is kept verbatim: code fences and headings carry
// meaning for developer questions. Only YAML front matter is removed and
// read for a title and tags.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// SupportedSourceTypes returns source types for specialised handling.
func (n *Normaliser) SupportedSourceTypes() []string {
	return nil // All sources
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// frontMatter holds the front matter fields that are used.
type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Normalise strips front matter and returns the markdown text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, &domain.DataError{Document: raw.URI, Err: domain.ErrUndecodableText}
	}

	content := strings.TrimPrefix(string(raw.Content), "\ufeff")
	meta, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, &domain.DataError{Document: raw.URI, Err: err}
	}

	title := meta.Title
	if title == "" {
		title = firstHeading(body)
	}

	return &driven.NormaliseResult{
		Text:  body,
		Title: title,
		Tags:  meta.Tags,
	}, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block.
// Content without front matter is returned unchanged.
func splitFrontMatter(content string) (frontMatter, string, error) {
	var meta frontMatter

	normalised := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalised, "---\n") {
		return meta, content, nil
	}
	rest := normalised[len("---\n"):]

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, content, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	// Drop the remainder of the closing delimiter line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return frontMatter{}, "", fmt.Errorf("parse front matter: %w", err)
	}
	return meta, strings.TrimLeft(body, "\n"), nil
}

// firstHeading returns the text of the first level one heading.
func firstHeading(content string) string {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "#"))
		}
	}
	return ""
}
