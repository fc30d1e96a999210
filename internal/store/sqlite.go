// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists friend-graph mirrors and chat message logs with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// Each friend_edges / friend_requests row is one mirror: the logical key
// layout users/{user}/friends/{other} and users/{user}/friendRequests/
// {sent|received}/{other} maps onto the composite primary keys.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS friend_edges (
			user_id    TEXT NOT NULL,
			friend_id  TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (user_id, friend_id)
		);

		CREATE INDEX IF NOT EXISTS idx_friend_edges_friend
			ON friend_edges(friend_id);

		CREATE TABLE IF NOT EXISTS friend_requests (
			user_id    TEXT NOT NULL,
			direction  TEXT NOT NULL,
			other_id   TEXT NOT NULL,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (user_id, direction, other_id),
			CHECK (direction IN ('sent', 'received'))
		);

		CREATE TABLE IF NOT EXISTS chat_messages (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			sender_name     TEXT NOT NULL,
			receiver_id     TEXT NOT NULL,
			text            TEXT NOT NULL,
			timestamp_ms    INTEGER NOT NULL,
			created_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON chat_messages(conversation_id, timestamp_ms, seq);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutFriendEdge writes one edge mirror. Re-writing an existing mirror is a
// no-op, matching set-semantics of the key layout.
func (s *SQLiteStore) PutFriendEdge(ctx context.Context, userID, friendID string) error {
	query := `
		INSERT INTO friend_edges (user_id, friend_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userID, friendID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("inserting friend edge: %w", err)
	}
	return nil
}

// DeleteFriendEdge removes one edge mirror. Deleting a missing mirror is a
// no-op, not an error.
func (s *SQLiteStore) DeleteFriendEdge(ctx context.Context, userID, friendID string) error {
	query := `DELETE FROM friend_edges WHERE user_id = ? AND friend_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, friendID); err != nil {
		return fmt.Errorf("deleting friend edge: %w", err)
	}
	return nil
}

// HasFriendEdge reports whether the edge mirror exists under userID's namespace.
func (s *SQLiteStore) HasFriendEdge(ctx context.Context, userID, friendID string) (bool, error) {
	query := `SELECT 1 FROM friend_edges WHERE user_id = ? AND friend_id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, query, userID, friendID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying friend edge: %w", err)
	}
	return true, nil
}

// ListFriendIDs returns the ids of all friends recorded under userID's namespace.
func (s *SQLiteStore) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT friend_id FROM friend_edges WHERE user_id = ? ORDER BY friend_id`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying friends: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning friend id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutRequest writes one request mirror. An existing mirror for the same
// (user, direction, counterpart) is overwritten, which makes re-sending a
// pending request idempotent.
func (s *SQLiteStore) PutRequest(ctx context.Context, userID string, dir RequestDirection, otherID, name string) error {
	query := `
		INSERT INTO friend_requests (user_id, direction, other_id, name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, direction, other_id)
		DO UPDATE SET name = excluded.name, created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		userID, string(dir), otherID, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting friend request: %w", err)
	}
	return nil
}

// DeleteRequest removes one request mirror. Missing mirrors are a no-op so
// accept/reject stay idempotent.
func (s *SQLiteStore) DeleteRequest(ctx context.Context, userID string, dir RequestDirection, otherID string) error {
	query := `DELETE FROM friend_requests WHERE user_id = ? AND direction = ? AND other_id = ?`
	if _, err := s.db.ExecContext(ctx, query, userID, string(dir), otherID); err != nil {
		return fmt.Errorf("deleting friend request: %w", err)
	}
	return nil
}

// ListRequests returns the request mirrors of one direction under userID's
// namespace, oldest first.
func (s *SQLiteStore) ListRequests(ctx context.Context, userID string, dir RequestDirection) ([]*FriendRequest, error) {
	query := `
		SELECT user_id, direction, other_id, name, created_at
		FROM friend_requests
		WHERE user_id = ? AND direction = ?
		ORDER BY created_at, other_id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, string(dir))
	if err != nil {
		return nil, fmt.Errorf("querying friend requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// ListOrphanedRequests returns request mirrors whose counterpart mirror is
// missing: a "sent" row under A for B with no "received" row under B for A,
// or vice versa.
func (s *SQLiteStore) ListOrphanedRequests(ctx context.Context) ([]*FriendRequest, error) {
	query := `
		SELECT a.user_id, a.direction, a.other_id, a.name, a.created_at
		FROM friend_requests a
		LEFT JOIN friend_requests b
			ON b.user_id = a.other_id
			AND b.other_id = a.user_id
			AND b.direction = CASE a.direction WHEN 'sent' THEN 'received' ELSE 'sent' END
		WHERE b.user_id IS NULL
		ORDER BY a.created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying orphaned requests: %w", err)
	}
	defer rows.Close()

	return scanRequests(rows)
}

// ListOrphanedEdges returns edge mirrors whose reverse mirror is missing.
func (s *SQLiteStore) ListOrphanedEdges(ctx context.Context) ([]*FriendEdge, error) {
	query := `
		SELECT a.user_id, a.friend_id, a.created_at
		FROM friend_edges a
		LEFT JOIN friend_edges b
			ON b.user_id = a.friend_id AND b.friend_id = a.user_id
		WHERE b.user_id IS NULL
		ORDER BY a.created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying orphaned edges: %w", err)
	}
	defer rows.Close()

	var edges []*FriendEdge
	for rows.Next() {
		edge := &FriendEdge{}
		var createdStr string
		if err := rows.Scan(&edge.UserID, &edge.FriendID, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning orphaned edge: %w", err)
		}
		edge.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func scanRequests(rows *sql.Rows) ([]*FriendRequest, error) {
	var reqs []*FriendRequest
	for rows.Next() {
		req := &FriendRequest{}
		var dir, createdStr string
		if err := rows.Scan(&req.UserID, &dir, &req.OtherID, &req.Name, &createdStr); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		req.Direction = RequestDirection(dir)
		created, err := time.Parse(time.RFC3339, createdStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		req.CreatedAt = created
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// AppendMessage persists a message and assigns its insertion order.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO chat_messages (
			id, conversation_id, sender_id, sender_name, receiver_id, text, timestamp_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.SenderName,
		msg.ReceiverID,
		msg.Text,
		msg.TimestampMillis,
		msg.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insertion order: %w", err)
	}
	msg.Seq = seq

	s.logger.Debug("message appended",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"seq", seq,
	)
	return nil
}

// ListMessages returns a conversation's full log ordered by client timestamp,
// ties broken by insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT seq, id, conversation_id, sender_id, sender_name, receiver_id, text, timestamp_ms, created_at
		FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY timestamp_ms ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// GetMessage retrieves a single message by id within a conversation.
func (s *SQLiteStore) GetMessage(ctx context.Context, conversationID, id string) (*Message, error) {
	query := `
		SELECT seq, id, conversation_id, sender_id, sender_name, receiver_id, text, timestamp_ms, created_at
		FROM chat_messages
		WHERE conversation_id = ? AND id = ?
	`
	msg, err := scanMessage(func(dest ...any) error {
		return s.db.QueryRowContext(ctx, query, conversationID, id).Scan(dest...)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes a single message. Returns ErrNotFound if no entry
// with the given id exists in the conversation.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, conversationID, id string) error {
	query := `DELETE FROM chat_messages WHERE conversation_id = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, query, conversationID, id)
	if err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	msg := &Message{}
	var createdStr string
	err := scan(
		&msg.Seq,
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.SenderName,
		&msg.ReceiverID,
		&msg.Text,
		&msg.TimestampMillis,
		&createdStr,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}
	msg.CreatedAt, err = time.Parse(time.RFC3339, createdStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return msg, nil
}
