// ABOUTME: Package doc for the friend-graph layer
// ABOUTME: Explains the dual-write protocol and the reconciliation sweep

// Package friends implements mutual-consent friendships: directed requests,
// accept/reject transitions, and the authorization gate for 1:1 chat.
//
// Every relation is stored as two mirror rows, one under each user's
// namespace, and the two rows are written by separate store calls with no
// transaction around them. A failure between the calls leaves a single-sided
// orphan; the writer reports ErrPartialWrite and the Sweeper removes the
// orphan on its next pass. Readers only ever consult their own side of a
// mirror, so an orphan is invisible except to the sweep.
package friends
