// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - EmbeddingService: turns text into fixed-dimension vectors
//   - VectorIndex: stores index records and answers similarity queries
//   - DocumentSource: yields raw documents for ingestion
//   - Normaliser / NormaliserRegistry: raw bytes to document text
//   - PostProcessor: chunking and chunk annotation
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil. The application degrades gracefully:
//
//   - LLMService: answer generation. Without it only search is available.
//   - PromptStore: custom prompt templates. Without it defaults are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
