package domain

// MetadataFilter is an exact-match predicate over chunk metadata.
// Empty fields match everything.
type MetadataFilter struct {
	Repository  string
	Language    string
	FileType    string
	ContentType ContentType
}

// IsEmpty returns true if no field is set.
func (f MetadataFilter) IsEmpty() bool {
	return f == MetadataFilter{}
}

// Matches reports whether every set field equals the metadata field.
func (f MetadataFilter) Matches(m ChunkMetadata) bool {
	if f.Repository != "" && f.Repository != m.Repository {
		return false
	}
	if f.Language != "" && f.Language != m.Language {
		return false
	}
	if f.FileType != "" && f.FileType != m.FileType {
		return false
	}
	if f.ContentType != "" && f.ContentType != m.ContentType {
		return false
	}
	return true
}

// SearchOptions configures a retrieval.
type SearchOptions struct {
	// TopK is the maximum number of results.
	TopK int

	// Filter restricts results by metadata.
	Filter MetadataFilter
}

// SearchResult is one scored chunk from a similarity query.
type SearchResult struct {
	ChunkID string

	// Score is cosine similarity in [-1, 1].
	Score float64

	Chunk Chunk
}

// IndexStats summarises the contents of a vector index.
type IndexStats struct {
	Records      int
	Documents    int
	Dimensions   int
	Repositories map[string]int
	Languages    map[string]int
}
