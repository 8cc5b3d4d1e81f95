// Package sqlite provides the default KnowledgeStore, backed by a single
// SQLite database file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. Chunk text is mirrored into an FTS5 table so the store
// also serves as the retriever's LexicalSearcher.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.kcache/data/kcache.db
//
// # Thread Safety
//
// Writes are serialised by a process mutex and by an advisory file lock
// next to the database, so two kcache processes never write at once. Reads
// rely on SQLite WAL mode.
package sqlite
