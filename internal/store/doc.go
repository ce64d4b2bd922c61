// Package store provides the local key/value persistence for fablekeep.
//
// Two layers:
//   - Medium: a raw persistent key/value medium with a byte capacity. SQLite
//     is the production medium; MemoryMedium backs tests and --db :memory:.
//   - Store: the quota-aware wrapper every component writes through.
//
// # Namespaces
//
//	fablekeep/gameplay                         solo gameplay snapshot
//	fablekeep/sessions                         teacher session registry
//	fablekeep/timeline/<sceneID>               timeline progress, one per scene
//	fablekeep/backup-meta/<role>/<key>/<slot>  last server timestamp per slot
//
// # Capacity Handling
//
// When a write fails because the medium is full, Store evicts the timeline
// entry with the smallest updatedAt and retries the write exactly once. Only
// the timeline namespace is scanned: it is the only namespace that grows per
// scene. An entry whose content cannot be parsed is evicted first. The scene
// the caller is saving is never an eviction candidate.
//
// A failed write is logged and reported as false; Store never returns errors
// to its callers, so persistence problems degrade a feature to in-memory
// operation instead of interrupting play.
//
// # Database Configuration
//
//   - WAL mode, synchronous=NORMAL, busy_timeout=5000
//   - Schema embedded from schema.sql, migrations tracked in user_version
package store
