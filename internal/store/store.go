// ABOUTME: Store interfaces and data types for tether persistence
// ABOUTME: Defines friend-graph mirrors, chat messages, and the narrow store interfaces

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// RequestDirection distinguishes the two mirrors of a friend request.
// A request from A to B exists as a "sent" record under A's namespace and a
// "received" record under B's namespace, each keyed by the counterpart's id.
type RequestDirection string

const (
	RequestSent     RequestDirection = "sent"
	RequestReceived RequestDirection = "received"
)

// Counterpart returns the direction of the mirror on the other side.
func (d RequestDirection) Counterpart() RequestDirection {
	if d == RequestSent {
		return RequestReceived
	}
	return RequestSent
}

// FriendRequest is one mirror of a directed friend request. Name is the
// requester's display name captured at send time.
type FriendRequest struct {
	UserID    string // namespace owner
	Direction RequestDirection
	OtherID   string // counterpart user id
	Name      string
	CreatedAt time.Time
}

// FriendEdge is one mirror of a symmetric friendship. The full relation is
// two mirrored rows, one under each endpoint's namespace.
type FriendEdge struct {
	UserID    string
	FriendID  string
	CreatedAt time.Time
}

// Message is a single entry in a conversation's append-only log.
// Seq is the store-assigned insertion order, used to break timestamp ties.
type Message struct {
	ID              string
	ConversationID  string
	Seq             int64
	SenderID        string
	SenderName      string
	ReceiverID      string
	Text            string
	TimestampMillis int64
	CreatedAt       time.Time
}

// FriendStore provides mirror-granular access to the friend graph. Every
// method touches exactly one mirror row; writing both sides of a relation is
// the caller's protocol, not the store's.
type FriendStore interface {
	PutFriendEdge(ctx context.Context, userID, friendID string) error
	DeleteFriendEdge(ctx context.Context, userID, friendID string) error
	HasFriendEdge(ctx context.Context, userID, friendID string) (bool, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)

	PutRequest(ctx context.Context, userID string, dir RequestDirection, otherID, name string) error
	DeleteRequest(ctx context.Context, userID string, dir RequestDirection, otherID string) error
	ListRequests(ctx context.Context, userID string, dir RequestDirection) ([]*FriendRequest, error)
}

// ReconcileStore finds mirror rows whose counterpart is missing, the residue
// of a dual write that only half completed.
type ReconcileStore interface {
	ListOrphanedRequests(ctx context.Context) ([]*FriendRequest, error)
	ListOrphanedEdges(ctx context.Context) ([]*FriendEdge, error)
}

// MessageStore provides the per-conversation append-only log.
type MessageStore interface {
	// AppendMessage persists msg and assigns its insertion order (msg.Seq).
	AppendMessage(ctx context.Context, msg *Message) error
	// ListMessages returns the full log ordered by timestamp, ties broken
	// by insertion order.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	GetMessage(ctx context.Context, conversationID, id string) (*Message, error)
	DeleteMessage(ctx context.Context, conversationID, id string) error
}

// Store is the full persistence surface implemented by SQLiteStore.
type Store interface {
	FriendStore
	ReconcileStore
	MessageStore

	// Close releases any resources held by the store
	Close() error
}
