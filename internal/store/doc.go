// Package store provides SQLite-backed storage for records, links and the
// operation log.
//
// # Tables
//
//   - records: schema-less JSON documents keyed by (model_id, id), each
//     carrying a version that is bumped on every applied update
//   - links: one row per relationship, content-addressed by ir.LinkID
//   - transactions / operations: append-only log of every applied update
//     together with the values it replaced
//
// # Patterns
//
// Deterministic results: record queries order by the requested sort keys
// and then id ASC COLLATE BINARY; link queries order by insertion (rowid).
//
// Batched writes: ApplyBatch writes every operation of one model group in
// a single SQL transaction. Per-record failures are reported per operation
// and never abort the rest of the batch.
//
// Optimistic locking: an operation with a non-zero BaseVersion is rejected
// with ErrVersionConflict if the record moved on since it was read.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks instead of failing
//   - foreign_keys=ON: operations reference transactions
package store
