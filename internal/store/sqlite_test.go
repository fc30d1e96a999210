// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers friend-graph mirror writes, orphan detection, and message log ordering

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "tether.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestFriendEdge_PutHasDelete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	has, err := s.HasFriendEdge(ctx, "U1", "U2")
	if err != nil {
		t.Fatalf("HasFriendEdge failed: %v", err)
	}
	if has {
		t.Error("edge should not exist before put")
	}

	if err := s.PutFriendEdge(ctx, "U1", "U2"); err != nil {
		t.Fatalf("PutFriendEdge failed: %v", err)
	}

	has, err = s.HasFriendEdge(ctx, "U1", "U2")
	if err != nil {
		t.Fatalf("HasFriendEdge failed: %v", err)
	}
	if !has {
		t.Error("edge should exist after put")
	}

	// The reverse mirror is independent: putting one side says nothing
	// about the other namespace.
	has, err = s.HasFriendEdge(ctx, "U2", "U1")
	if err != nil {
		t.Fatalf("HasFriendEdge failed: %v", err)
	}
	if has {
		t.Error("reverse mirror should not exist")
	}

	if err := s.DeleteFriendEdge(ctx, "U1", "U2"); err != nil {
		t.Fatalf("DeleteFriendEdge failed: %v", err)
	}
	has, _ = s.HasFriendEdge(ctx, "U1", "U2")
	if has {
		t.Error("edge should not exist after delete")
	}
}

func TestFriendEdge_PutIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.PutFriendEdge(ctx, "U1", "U2"); err != nil {
		t.Fatalf("first PutFriendEdge failed: %v", err)
	}
	if err := s.PutFriendEdge(ctx, "U1", "U2"); err != nil {
		t.Fatalf("second PutFriendEdge failed: %v", err)
	}

	ids, err := s.ListFriendIDs(ctx, "U1")
	if err != nil {
		t.Fatalf("ListFriendIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 friend, got %d", len(ids))
	}
}

func TestListFriendIDs(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"U3", "U2", "U4"} {
		if err := s.PutFriendEdge(ctx, "U1", id); err != nil {
			t.Fatalf("PutFriendEdge failed: %v", err)
		}
	}

	ids, err := s.ListFriendIDs(ctx, "U1")
	if err != nil {
		t.Fatalf("ListFriendIDs failed: %v", err)
	}
	want := []string{"U2", "U3", "U4"}
	if len(ids) != len(want) {
		t.Fatalf("expected %d friends, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestFriendRequest_PutListDelete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.PutRequest(ctx, "U1", RequestSent, "U2", "Alice"); err != nil {
		t.Fatalf("PutRequest failed: %v", err)
	}
	if err := s.PutRequest(ctx, "U2", RequestReceived, "U1", "Alice"); err != nil {
		t.Fatalf("PutRequest failed: %v", err)
	}

	sent, err := s.ListRequests(ctx, "U1", RequestSent)
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(sent) != 1 || sent[0].OtherID != "U2" || sent[0].Name != "Alice" {
		t.Errorf("unexpected sent mirror: %+v", sent)
	}

	received, err := s.ListRequests(ctx, "U2", RequestReceived)
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(received) != 1 || received[0].OtherID != "U1" || received[0].Name != "Alice" {
		t.Errorf("unexpected received mirror: %+v", received)
	}

	if err := s.DeleteRequest(ctx, "U1", RequestSent, "U2"); err != nil {
		t.Fatalf("DeleteRequest failed: %v", err)
	}
	sent, _ = s.ListRequests(ctx, "U1", RequestSent)
	if len(sent) != 0 {
		t.Errorf("expected no sent mirrors after delete, got %d", len(sent))
	}

	// Deleting a missing mirror is a no-op
	if err := s.DeleteRequest(ctx, "U1", RequestSent, "U2"); err != nil {
		t.Errorf("delete of missing mirror should be a no-op, got %v", err)
	}
}

func TestFriendRequest_PutOverwritesName(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.PutRequest(ctx, "U1", RequestSent, "U2", "Alice"); err != nil {
		t.Fatalf("PutRequest failed: %v", err)
	}
	if err := s.PutRequest(ctx, "U1", RequestSent, "U2", "Alice Smith"); err != nil {
		t.Fatalf("second PutRequest failed: %v", err)
	}

	sent, err := s.ListRequests(ctx, "U1", RequestSent)
	if err != nil {
		t.Fatalf("ListRequests failed: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 mirror, got %d", len(sent))
	}
	if sent[0].Name != "Alice Smith" {
		t.Errorf("name = %q, want overwritten name", sent[0].Name)
	}
}

func TestListOrphanedRequests(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	// Complete pair: not orphaned
	_ = s.PutRequest(ctx, "U1", RequestSent, "U2", "Alice")
	_ = s.PutRequest(ctx, "U2", RequestReceived, "U1", "Alice")

	// Half-written pair: only the sent mirror landed
	_ = s.PutRequest(ctx, "U3", RequestSent, "U4", "Carol")

	orphans, err := s.ListOrphanedRequests(ctx)
	if err != nil {
		t.Fatalf("ListOrphanedRequests failed: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
	if orphans[0].UserID != "U3" || orphans[0].OtherID != "U4" || orphans[0].Direction != RequestSent {
		t.Errorf("unexpected orphan: %+v", orphans[0])
	}
}

func TestListOrphanedEdges(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	_ = s.PutFriendEdge(ctx, "U1", "U2")
	_ = s.PutFriendEdge(ctx, "U2", "U1")
	_ = s.PutFriendEdge(ctx, "U3", "U4") // reverse mirror missing

	orphans, err := s.ListOrphanedEdges(ctx)
	if err != nil {
		t.Fatalf("ListOrphanedEdges failed: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
	if orphans[0].UserID != "U3" || orphans[0].FriendID != "U4" {
		t.Errorf("unexpected orphan: %+v", orphans[0])
	}
}

func TestAppendAndListMessages_Ordering(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	msgs := []*Message{
		{ID: "m1", ConversationID: "U1_U2", SenderID: "U1", SenderName: "Alice", ReceiverID: "U2", Text: "second", TimestampMillis: 2000},
		{ID: "m2", ConversationID: "U1_U2", SenderID: "U2", SenderName: "Bob", ReceiverID: "U1", Text: "first", TimestampMillis: 1000},
		{ID: "m3", ConversationID: "U1_U2", SenderID: "U1", SenderName: "Alice", ReceiverID: "U2", Text: "tie-later", TimestampMillis: 2000},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("AppendMessage(%s) failed: %v", m.ID, err)
		}
	}

	if msgs[0].Seq == 0 || msgs[1].Seq <= msgs[0].Seq {
		t.Errorf("insertion order not monotonic: %d, %d", msgs[0].Seq, msgs[1].Seq)
	}

	got, err := s.ListMessages(ctx, "U1_U2")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	wantOrder := []string{"m2", "m1", "m3"} // timestamp asc, tie by insertion
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d messages, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestListMessages_IsolatedByConversation(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	_ = s.AppendMessage(ctx, &Message{ID: "m1", ConversationID: "U1_U2", SenderID: "U1", SenderName: "A", ReceiverID: "U2", Text: "hi", TimestampMillis: 1})
	_ = s.AppendMessage(ctx, &Message{ID: "m2", ConversationID: "U3_U4", SenderID: "U3", SenderName: "C", ReceiverID: "U4", Text: "yo", TimestampMillis: 1})

	got, err := s.ListMessages(ctx, "U1_U2")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Errorf("unexpected messages: %+v", got)
	}
}

func TestGetMessage(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	msg := &Message{ID: "m1", ConversationID: "U1_U2", SenderID: "U1", SenderName: "Alice", ReceiverID: "U2", Text: "hi", TimestampMillis: 1000}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	got, err := s.GetMessage(ctx, "U1_U2", "m1")
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.SenderID != "U1" || got.Text != "hi" || got.TimestampMillis != 1000 {
		t.Errorf("unexpected message: %+v", got)
	}

	if _, err := s.GetMessage(ctx, "U1_U2", "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Wrong conversation does not expose the message
	if _, err := s.GetMessage(ctx, "U3_U4", "m1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound across conversations, got %v", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	_ = s.AppendMessage(ctx, &Message{ID: "m1", ConversationID: "U1_U2", SenderID: "U1", SenderName: "A", ReceiverID: "U2", Text: "hi", TimestampMillis: 1})

	if err := s.DeleteMessage(ctx, "U1_U2", "m1"); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}

	got, err := s.ListMessages(ctx, "U1_U2")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty log after delete, got %d messages", len(got))
	}

	if err := s.DeleteMessage(ctx, "U1_U2", "m1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
