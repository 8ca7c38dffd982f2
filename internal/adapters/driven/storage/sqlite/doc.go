// Package sqlite provides the SQLite-backed vector store for Quill.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. One database file per
// graph holds three tables:
//
//   - blocks: block metadata keyed by UID
//   - vectors: fixed-dimension embeddings as little-endian float32 blobs
//   - sync_state: small key/value table for the watermark and index status
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # KNN
//
// Nearest-neighbour search is brute force: all vectors are scanned and scored
// by squared Euclidean distance in Go. At the target corpus size (tens of
// thousands to low hundreds of thousands of vectors) this stays well inside
// the interactive latency envelope; an approximate index can be substituted
// behind the same port without changing callers.
//
// # Data Location
//
// By default, the database is stored at ~/.quill/data/<graph>_index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode; each UpsertBlocks call is one transaction,
// which is the sub-batch commit boundary the sync coordinator relies on.
package sqlite
