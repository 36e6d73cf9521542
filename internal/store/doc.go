// Package store persists the engine's ledger in SQLite.
//
// The ledger is append-only:
//   - resources: one row per tracked uid with its current live count
//   - resource_events: every retain and release, in clock order
//   - transitions: every thread state change
//   - deliveries: every message handed to or taken from a mailbox
//
// All ordering uses the engine's logical clock (seq), never wall time, and
// every read orders by seq so two runs of the same scenario produce the same
// rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
