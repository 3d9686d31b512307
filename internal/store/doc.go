// Package store provides SQLite-backed durable storage for vox.
//
// The store keeps two append-only logs:
//   - Matches: every classified transcript with its result, registry hash
//     and active context
//   - Snapshots: exported context manager state under a caller-chosen name
//
// # Ordering
//
// Every table is keyed by an autoincrement seq. Queries order by seq,
// never by wall-clock timestamps, so two rows recorded within the same
// clock tick still read back in insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Match params are stored as canonical JSON (RFC 8785), the same encoding
// ir uses for hashing. Snapshots are stored as the JSON form of
// workflow.State together with State.Hash.
package store
