// ABOUTME: Chat message service: append-only log plus snapshot fan-out
// ABOUTME: Deletion is sender-only, enforced here against the stored record

package messages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tether/internal/store"
)

// Message errors
var (
	// ErrEmptyText is returned for a blank or whitespace-only message body.
	ErrEmptyText = errors.New("message text is empty")
	// ErrNotSender is returned when a delete is attempted by anyone other
	// than the message's sender, no matter what the caller claims.
	ErrNotSender = errors.New("only the sender can delete a message")
)

// Service owns the per-conversation message log. Every mutation re-reads the
// full ordered log and publishes it as a snapshot; watchers never see deltas.
type Service struct {
	store       store.MessageStore
	broadcaster *SnapshotBroadcaster
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a message service. Pass nil logger for default.
func NewService(st store.MessageStore, b *SnapshotBroadcaster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		broadcaster: b,
		logger:      logger.With("component", "messages"),
		now:         time.Now,
	}
}

// Append persists a new message at the tail of the conversation's log and
// publishes the updated snapshot. The sender's display name is denormalized
// onto the record so history renders without identity lookups.
// timestampMillis is the sender's wall clock at send time; pass zero to fall
// back to the server clock.
func (s *Service) Append(ctx context.Context, conversationID, senderID, senderName, receiverID, text string, timestampMillis int64) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if timestampMillis <= 0 {
		timestampMillis = s.now().UnixMilli()
	}

	msg := &store.Message{
		ID:              uuid.New().String(),
		ConversationID:  conversationID,
		SenderID:        senderID,
		SenderName:      senderName,
		ReceiverID:      receiverID,
		Text:            text,
		TimestampMillis: timestampMillis,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending message: %w", err)
	}

	s.logger.Info("message appended",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"sender_id", senderID)

	s.publishSnapshot(ctx, conversationID)
	return msg, nil
}

// List returns the conversation's full ordered log.
func (s *Service) List(ctx context.Context, conversationID string) ([]*store.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}

// Remove deletes a message if requesterID is its sender. Returns
// store.ErrNotFound for an unknown id and ErrNotSender when someone else's
// message is targeted.
func (s *Service) Remove(ctx context.Context, conversationID, messageID, requesterID string) error {
	msg, err := s.store.GetMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return ErrNotSender
	}

	if err := s.store.DeleteMessage(ctx, conversationID, messageID); err != nil {
		return err
	}

	s.logger.Info("message deleted",
		"conversation_id", conversationID,
		"message_id", messageID,
		"sender_id", requesterID)

	s.publishSnapshot(ctx, conversationID)
	return nil
}

// Watch returns the current snapshot plus a channel of future snapshots.
// The subscription ends when ctx is cancelled or cancel is called; the
// channel is closed on either.
func (s *Service) Watch(ctx context.Context, conversationID string) ([]*store.Message, <-chan []*store.Message, func(), error) {
	// Subscribe before reading the initial snapshot. A mutation that commits
	// during the read then arrives as an update instead of falling into the
	// gap; the worst case is one update that duplicates the initial snapshot.
	updates, subID := s.broadcaster.Subscribe(ctx, conversationID)
	cancel := func() { s.broadcaster.Unsubscribe(conversationID, subID) }

	initial, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("loading initial snapshot: %w", err)
	}
	return initial, updates, cancel, nil
}

// publishSnapshot re-reads the log and fans it out. A read failure here loses
// one update for current watchers, not data: the next mutation publishes a
// fresh snapshot.
func (s *Service) publishSnapshot(ctx context.Context, conversationID string) {
	snapshot, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		s.logger.Error("snapshot read failed after mutation",
			"conversation_id", conversationID,
			"error", err)
		return
	}
	s.broadcaster.Publish(conversationID, snapshot)
}
