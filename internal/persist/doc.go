// Package persist saves a store's content to a storage backend and loads it
// back.
//
// ARCHITECTURE:
//
// A Persister binds one store to one Backend. Backends only move whole
// ir.Content snapshots; they know nothing about listeners or transactions.
//
//	SQLiteBackend  one row per cell and per value (mattn/go-sqlite3)
//	BoltBackend    one bucket per table, msgpack rows (bbolt)
//	FileBackend    canonical [tables, values] JSON, watched with fsnotify
//
// Auto-save hooks the store's DidFinishTransaction listener, so a save
// happens at most once per transaction, optionally debounced. Auto-load is
// available for backends that implement Watcher.
//
// CRITICAL PATTERNS:
//
// The store is not safe for concurrent use. Once auto-load is running,
// every access to the store must go through Persister.Do, which shares a
// lock with the auto-load goroutine. Load and Save take that lock
// themselves and must not be called from inside Do.
//
// A save is skipped when the content hash equals the hash of the content
// last loaded or saved. This also keeps auto-load from reapplying the
// Persister's own writes.
package persist
