// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Ingestion runs documents through normalisation, the post-processor
// pipeline, the BatchEmbedder and the vector index. Queries run through
// SearchService, ContextAssembler and RAGService. Calls to external
// services go through a RetryPolicy.
//
// Services are pure Go with no CGO or external dependencies.
package services
