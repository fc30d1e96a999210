// ABOUTME: Authorization gate for 1:1 conversations
// ABOUTME: Chat access requires a live friendship edge, re-checked on every open

package friends

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFriends is returned when the viewer has no friendship edge to the
// target. Handlers map it to 403.
var ErrNotFriends = errors.New("users are not friends")

// FriendChecker is the slice of Service the gate needs.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}

// Gate authorizes conversation access. Authorization is evaluated at call
// time, never cached: a removed or never-established friendship denies access
// immediately, even mid-session.
type Gate struct {
	friends FriendChecker
}

// NewGate creates a gate over the given friend checker.
func NewGate(fc FriendChecker) *Gate {
	return &Gate{friends: fc}
}

// Authorize returns nil when viewerID may access a conversation with
// targetID, ErrNotFriends when not.
func (g *Gate) Authorize(ctx context.Context, viewerID, targetID string) error {
	ok, err := g.friends.AreFriends(ctx, viewerID, targetID)
	if err != nil {
		return fmt.Errorf("checking friendship: %w", err)
	}
	if !ok {
		return ErrNotFriends
	}
	return nil
}
