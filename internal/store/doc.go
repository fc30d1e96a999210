// Package store provides persistent storage for tether using SQLite.
//
// # Architecture
//
// The store exposes narrow, per-consumer interfaces:
//
//   - FriendStore: mirror-granular friend-graph access (edges and requests)
//   - ReconcileStore: orphaned-mirror detection for the reconciliation sweep
//   - MessageStore: per-conversation append-only message logs
//
// SQLiteStore implements all of them in a single struct.
//
// # Mirrors
//
// Friendships and friend requests are stored as two independent rows, one
// under each endpoint's namespace, mirroring the hierarchical key layout:
//
//	users/{userId}/friends/{otherUserId}
//	users/{userId}/friendRequests/sent/{otherUserId}
//	users/{userId}/friendRequests/received/{otherUserId}
//
// The store deliberately does NOT write both sides in one transaction: each
// method touches exactly one mirror. Keeping the two sides consistent is the
// friends service's dual-write protocol, and half-written pairs are cleaned
// up by the reconciliation sweep (see ReconcileStore).
//
// # Messages
//
// chat_messages holds every conversation's log, keyed by the order-independent
// conversation id. Ordering is by client-assigned timestamp with ties broken
// by the AUTOINCREMENT insertion sequence.
//
// # SQLite Configuration
//
// WAL mode is enabled for concurrent reads. Use ":memory:" in tests.
//
// # Error Handling
//
// ErrNotFound is the only sentinel; mirror deletes of missing rows are
// no-ops so the higher-level protocols stay idempotent.
package store
