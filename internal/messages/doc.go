// ABOUTME: Package doc for the chat message layer
// ABOUTME: Explains the append-only log and the full-snapshot fan-out model

// Package messages implements 1:1 chat on top of the per-conversation
// append-only log. Live delivery is snapshot-based: after every append or
// delete the full ordered log is re-read and broadcast, so a watcher's latest
// snapshot is always a complete render of the conversation. Deltas are never
// sent and missed snapshots are harmless.
package messages
