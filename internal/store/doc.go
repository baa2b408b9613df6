// Package store provides SQLite-backed box storage for the ledger.
//
// The store holds four tables:
//   - boxes: namespaced key → opaque record value (never deleted)
//   - globals: store-level scalars such as the admin address
//   - counters: monotonic uint64 counters per record category
//   - journal: append-only log of committed mutations
//
// # Transactions
//
// Every ledger operation runs inside exactly one Update transaction. The
// authorization check, precondition read, record write, counter increment
// and journal append commit together or not at all. The connection pool is
// limited to a single connection, so writers are serialized and there is no
// read-modify-write race between two callers targeting the same key.
//
// # Ordering
//
// Journal entries carry a logical seq (1, 2, 3, ...) assigned inside the
// writing transaction. All list queries order by key or seq, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Append-only guarantees for boxes and journal are enforced by triggers in
// schema.sql, not only by the absence of delete methods.
package store
