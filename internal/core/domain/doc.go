// Package domain defines the core entities of devrag.
//
// This package is the innermost layer of the hexagon. It holds the fixed
// schema that everything past the ingestion boundary speaks:
//
//   - Document: a fetched file identified by repository and path
//   - Chunk: an overlapping, ordered span of a document
//   - IndexRecord: a chunk plus its embedding, the unit stored in the index
//   - SearchResult: a scored chunk returned by the index
//   - ContextBundle: the token-budgeted context handed to generation
//   - Answer and Conversation: the outputs and state of a RAG query
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
