// ABOUTME: In-memory fan-out broadcaster for conversation snapshots
// ABOUTME: Subscribers always receive the full message list, never deltas

package messages

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/tether/internal/store"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber. Each
	// element is a full snapshot, so a small buffer is enough: a slow reader
	// only needs the newest one.
	subscriberBufferSize = 8
)

// SnapshotBroadcaster provides in-memory pub/sub for conversation snapshots.
// Subscribers register for a conversation id and receive the complete,
// ordered message list after every mutation. A snapshot supersedes all
// previous ones, so dropping an update for a slow subscriber is harmless as
// long as a later snapshot arrives.
type SnapshotBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan []*store.Message // conversationID -> subID -> ch
	logger      *slog.Logger
}

// NewSnapshotBroadcaster creates a broadcaster. Pass nil logger for default.
func NewSnapshotBroadcaster(logger *slog.Logger) *SnapshotBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotBroadcaster{
		subscribers: make(map[string]map[string]chan []*store.Message),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for snapshots of the given conversation.
// Returns a channel that receives snapshots and a subscription ID for later
// unsubscription. The subscription is automatically cleaned up when ctx is
// cancelled.
func (b *SnapshotBroadcaster) Subscribe(ctx context.Context, conversationID string) (<-chan []*store.Message, string) {
	subID := uuid.New().String()
	ch := make(chan []*store.Message, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[conversationID]; !ok {
		b.subscribers[conversationID] = make(map[string]chan []*store.Message)
	}
	b.subscribers[conversationID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		"conversation_id", conversationID,
		"sub_id", subID)

	// Auto-cleanup on context cancellation
	go func() {
		<-ctx.Done()
		b.Unsubscribe(conversationID, subID)
	}()

	return ch, subID
}

// Publish sends a snapshot to all subscribers of the given conversation.
// Non-blocking: the snapshot is dropped for subscribers whose channels are
// full.
func (b *SnapshotBroadcaster) Publish(conversationID string, snapshot []*store.Message) {
	b.mu.RLock()
	subs, ok := b.subscribers[conversationID]
	if !ok || len(subs) == 0 {
		b.mu.RUnlock()
		return
	}

	// Copy subscriber channels under read lock to avoid holding lock during sends
	targets := make([]chan []*store.Message, 0, len(subs))
	for _, ch := range subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- snapshot:
			// Sent
		default:
			// Subscriber channel full — drop snapshot for this subscriber
			b.logger.Debug("dropped snapshot for slow subscriber",
				"conversation_id", conversationID,
				"messages", len(snapshot))
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *SnapshotBroadcaster) Unsubscribe(conversationID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[conversationID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	// Clean up empty conversation entries
	if len(subs) == 0 {
		delete(b.subscribers, conversationID)
	}

	b.logger.Debug("subscriber removed",
		"conversation_id", conversationID,
		"sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *SnapshotBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for convID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, convID)
	}

	b.logger.Debug("broadcaster closed")
}
