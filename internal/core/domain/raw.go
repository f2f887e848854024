package domain

import (
	"fmt"
	"strings"
)

// Well-known RawDocument metadata keys set by document sources.
const (
	MetaRepository = "repository"
	MetaPath       = "path"
	MetaSourceURL  = "source_url"
	MetaRef        = "ref"
	MetaSHA        = "sha"
)

// RawDocument represents opaque bytes fetched by a document source.
// It is the source's output before normalisation; its loosely typed
// metadata is converted into the fixed Document schema at the ingestion
// boundary.
type RawDocument struct {
	// Source names the document source type that produced this document.
	Source string

	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains source-specific key-value pairs.
	Metadata map[string]any
}

// Key extracts the document identity from metadata.
// It returns ErrMissingIdentity when either half is absent or not a string.
func (r RawDocument) Key() (DocumentKey, error) {
	repo, _ := r.Metadata[MetaRepository].(string)
	p, _ := r.Metadata[MetaPath].(string)
	key := DocumentKey{
		Repository: strings.TrimSpace(repo),
		Path:       strings.TrimPrefix(strings.TrimSpace(p), "/"),
	}
	if key.IsZero() {
		return key, &DataError{Document: r.URI, Err: ErrMissingIdentity}
	}
	return key, nil
}

// MetaString returns a string metadata value, or "" when absent or of
// another type.
func (r RawDocument) MetaString(key string) string {
	switch v := r.Metadata[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the change name.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RawDocumentChange represents a change event from a watching source.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document. For deletions only URI and
	// Metadata are populated.
	Document RawDocument
}
