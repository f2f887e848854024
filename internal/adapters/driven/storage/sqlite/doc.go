// Package sqlite provides the embedded vector index backed by SQLite.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each index record is one row holding the
// chunk text, its metadata columns and the vector as a little-endian float32 blob.
//
// # Queries
//
// Metadata filters are pushed into the WHERE clause; cosine similarity is computed
// in Go over the remaining rows. This is a linear scan, which is adequate for the
// tens of thousands of chunks a documentation corpus produces.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// The vector size is recorded on first open and checked on every later open.
//
// # Data Location
//
// By default, the database is stored at ~/.devrag/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
