// Package store persists pipeline state in SQLite and exposes the atomic
// operations the rest of the system is built on.
//
// One database holds content items (the ingestion queue and their review
// annotations), fingerprints, collections, group locks, cadence state, and
// runtime settings. Every operation that can race across workers is a
// conditional write or a transaction: claiming the next pending item,
// creating a group's building collection, the snapshot rotation, and lock
// acquisition. Ordinary read-then-write never guards shared state here.
//
// Timestamps are stored as RFC3339Nano TEXT in UTC. Callers supply clocks so
// tests can inject fake time; the store itself only stamps updated_at fields.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add statuses or columns, add a migration under migrations/.
package store
