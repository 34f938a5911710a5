// Package store keeps a SQLite-backed history of executed queries.
//
// Every entry holds the canonical query document, its fingerprint, and the
// outcome (row count, backend request count, duration, or the error code).
// Entries are append-only and keyed by query id; recording the same id twice
// is a no-op.
//
// Reads are ordered by seq, the insertion order, never by timestamp.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes (file databases only)
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
