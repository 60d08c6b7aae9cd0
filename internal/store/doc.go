// Package store provides SQLite-backed snapshots of dashboards.
//
// Only the current live records of a placement store are durable. The
// undo/redo history is never written: reopening a dashboard starts with an
// empty history.
//
// Each widget row carries its placement columns for querying plus the full
// record as canonical JSON (RFC 8785), which is what a snapshot is rebuilt
// from.
//
// # Ordering
//
//   - Widgets are returned in the order they were saved (ordinal ASC), which
//     is the creation order of the source store.
//   - Dashboards are listed by name COLLATE BINARY.
//   - No query orders by wall time; saved_seq is the store's logical clock.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Widget rows are deleted with their dashboard
package store
