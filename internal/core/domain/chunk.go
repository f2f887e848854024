package domain

// Span is a half-open byte range [Start, End) over a document's text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// SymbolKind classifies an extracted code symbol.
type SymbolKind string

// Symbol kinds reported by the structural scan.
const (
	SymbolFunction SymbolKind = "function"
	SymbolClass    SymbolKind = "class"
	SymbolImport   SymbolKind = "import"
)

// Symbol is a named declaration found in source code.
type Symbol struct {
	Name string
	Kind SymbolKind

	// Offset is the byte offset of the declaring line.
	Offset int
}

// ChunkMetadata is the fixed metadata snapshot stored with every chunk.
type ChunkMetadata struct {
	Repository  string
	Path        string
	Language    string
	ContentType ContentType
	FileType    string
	SourceURL   string

	// Functions, Classes and Imports are symbols found inside the chunk span.
	Functions []string
	Classes   []string
	Imports   []string
}

// Chunk is an ordered, bounded span of a document and the atomic unit of
// indexing and retrieval.
type Chunk struct {
	// ID is deterministic from the document key and ordinal.
	ID string

	// Document is the parent document identity.
	Document DocumentKey

	// Ordinal is the zero-based position within the document.
	Ordinal int

	// Span locates the chunk text in the parent document.
	Span Span

	// Overlap is the number of leading bytes shared with the previous chunk.
	Overlap int

	// Text is the parent text over Span.
	Text string

	// Oversize is set when the chunk exceeds the configured maximum because
	// a single long line had to be kept whole. Trailing whitespace is not
	// counted.
	Oversize bool

	Metadata ChunkMetadata
}

// Citation returns the source reference for this chunk.
func (c Chunk) Citation() Citation {
	return Citation{
		Repository: c.Metadata.Repository,
		Path:       c.Metadata.Path,
		SourceURL:  c.Metadata.SourceURL,
	}
}

// NewChunkMetadata snapshots the document fields shared by all its chunks.
func NewChunkMetadata(doc Document) ChunkMetadata {
	return ChunkMetadata{
		Repository:  doc.Key.Repository,
		Path:        doc.Key.Path,
		Language:    doc.Language,
		ContentType: doc.ContentType,
		FileType:    doc.FileType(),
		SourceURL:   doc.SourceURL,
	}
}

// IndexRecord is the unit persisted in the vector index.
type IndexRecord struct {
	ID     string
	Vector []float32
	Chunk  Chunk
}
