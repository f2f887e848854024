package domain

import (
	"path"
	"strings"
)

// ContentType classifies a document for chunking and filtering.
type ContentType string

// Available content types.
const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeConfig   ContentType = "config"
	ContentTypeOther    ContentType = "other"
)

// IsValid returns true if the content type is recognised.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTypeCode, ContentTypeMarkdown, ContentTypeConfig, ContentTypeOther:
		return true
	default:
		return false
	}
}

// DocumentKey identifies a document across ingestions.
// Re-ingesting a document with the same key replaces its records.
type DocumentKey struct {
	Repository string
	Path       string
}

// String returns "repository:path".
func (k DocumentKey) String() string {
	return k.Repository + ":" + k.Path
}

// IsZero returns true if either half of the key is missing.
func (k DocumentKey) IsZero() bool {
	return k.Repository == "" || k.Path == ""
}

// Document is a fetched source file after normalisation.
// Documents are immutable once built.
type Document struct {
	// Key is the (repository, path) identity.
	Key DocumentKey

	// Title is a display title, defaulting to the file name.
	Title string

	// Text is the full UTF-8 text.
	Text string

	// ContentType is the coarse type used for chunking decisions.
	ContentType ContentType

	// Language is inferred from the file extension.
	Language string

	// Size is the length of Text in bytes.
	Size int

	// SourceURL links back to the original file when known.
	SourceURL string

	// Tags holds optional labels (for example from markdown front matter).
	Tags []string
}

// NewDocument builds a Document, inferring language and content type from
// the path.
func NewDocument(key DocumentKey, text string) Document {
	return Document{
		Key:         key,
		Title:       path.Base(key.Path),
		Text:        text,
		ContentType: InferContentType(key.Path),
		Language:    InferLanguage(key.Path),
		Size:        len(text),
	}
}

// FileName returns the base name of the document path.
func (d Document) FileName() string {
	return path.Base(d.Key.Path)
}

// FileType returns the lower-cased extension without the dot.
func (d Document) FileType() string {
	return FileTypeOf(d.Key.Path)
}

// IsCode returns true for source code documents.
func (d Document) IsCode() bool {
	return d.ContentType == ContentTypeCode
}

// FileTypeOf returns the lower-cased extension of p without the dot.
func FileTypeOf(p string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}
