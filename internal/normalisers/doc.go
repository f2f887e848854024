// Package normalisers provides implementations of the Normaliser interface
// for the document formats found in repositories. Each normaliser knows
// how to extract text content from a specific MIME type.
//
// Normalisers are registered with the Registry at startup. Selection
// prefers source-specific normalisers, then MIME-specific ones, then the
// plain text fallback.
package normalisers
