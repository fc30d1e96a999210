// ABOUTME: End-to-end tests for the HTTP API
// ABOUTME: Drives the full friend-request and chat flows through real handlers

package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tether/internal/auth"
	"github.com/2389/tether/internal/config"
)

type fakeUser struct {
	ID    string
	Name  string
	Email string
}

var fakeUsers = []fakeUser{
	{ID: "U1", Name: "Alice", Email: "alice@example.com"},
	{ID: "U2", Name: "Bob", Email: "bob@example.com"},
	{ID: "U3", Name: "Carol", Email: "carol@example.com"},
}

func userJSON(u fakeUser) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"full_name": u.Name,
		"image_url": "https://img.example.com/" + u.ID,
		"email_addresses": []map[string]string{
			{"email_address": u.Email},
		},
	}
}

// newFakeProvider serves a minimal Clerk-style user API.
func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users", func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email_address")
		matches := []map[string]any{}
		for _, u := range fakeUsers {
			if u.Email == email {
				matches = append(matches, userJSON(u))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(matches)
	})
	mux.HandleFunc("/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
		for _, u := range fakeUsers {
			if u.ID == id {
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(userJSON(u))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	server *httptest.Server
	tokens map[string]string // user id -> bearer token
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	provider := newFakeProvider(t)

	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Identity: config.IdentityConfig{BaseURL: provider.URL, APIKey: "test-key"},
		Auth:     config.AuthConfig{JWTSecret: "test-secret"},
		Sweep:    config.SweepConfig{Interval: time.Minute},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	gw, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { gw.store.Close() })

	srv := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(srv.Close)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	tokens := make(map[string]string)
	for _, u := range fakeUsers {
		token, err := verifier.Generate(u.ID, u.Name, time.Hour)
		require.NoError(t, err)
		tokens[u.ID] = token
	}

	return &testEnv{server: srv, tokens: tokens}
}

// do sends an authenticated JSON request and returns the response.
func (e *testEnv) do(t *testing.T, userID, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[userID])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func befriend(t *testing.T, e *testEnv, requesterID, requesterEmailTarget, accepterID string) {
	t.Helper()
	resp := e.do(t, requesterID, http.MethodPost, "/api/friends/requests", map[string]string{"email": requesterEmailTarget})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(t, accepterID, http.MethodPost, "/api/friends/requests/accept", map[string]string{"requester_id": requesterID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_RequiresAuth(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "", http.MethodGet, "/api/friends", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_HealthIsOpen(t *testing.T) {
	e := newTestEnv(t)

	resp, err := http.Get(e.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ReceiverID(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/receiver-id", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[ReceiverIDResponse](t, resp)
	assert.Equal(t, "U2", body.ReceiverID)
}

func TestAPI_ReceiverID_UnknownEmail(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/receiver-id", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ReceiverID_EmptyEmail(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/receiver-id", map[string]string{"email": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_FriendRequestFlow(t *testing.T) {
	e := newTestEnv(t)

	// Alice requests Bob by email.
	resp := e.do(t, "U1", http.MethodPost, "/api/friends/requests", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := decodeBody[ReceiverIDResponse](t, resp)
	assert.Equal(t, "U2", sent.ReceiverID)

	// Bob sees the pending request with Alice's name.
	resp = e.do(t, "U2", http.MethodGet, "/api/friends/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decodeBody[[]FriendRequestResponse](t, resp)
	require.Len(t, pending, 1)
	assert.Equal(t, "U1", pending[0].RequesterID)
	assert.Equal(t, "Alice", pending[0].Name)

	// Alice has nothing pending inbound.
	resp = e.do(t, "U1", http.MethodGet, "/api/friends/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]FriendRequestResponse](t, resp))

	// Bob accepts; both sides now list each other with resolved profiles.
	resp = e.do(t, "U2", http.MethodPost, "/api/friends/requests/accept", map[string]string{"requester_id": "U1"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, "U1", http.MethodGet, "/api/friends", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	aliceFriends := decodeBody[[]ProfileResponse](t, resp)
	require.Len(t, aliceFriends, 1)
	assert.Equal(t, "U2", aliceFriends[0].ID)
	assert.Equal(t, "Bob", aliceFriends[0].Name)
	assert.Equal(t, "bob@example.com", aliceFriends[0].Email)

	resp = e.do(t, "U2", http.MethodGet, "/api/friends", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bobFriends := decodeBody[[]ProfileResponse](t, resp)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, "U1", bobFriends[0].ID)
}

func TestAPI_RejectRequest(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/friends/requests", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, "U2", http.MethodPost, "/api/friends/requests/reject", map[string]string{"requester_id": "U1"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, "U2", http.MethodGet, "/api/friends/requests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]FriendRequestResponse](t, resp))

	resp = e.do(t, "U2", http.MethodGet, "/api/friends", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]ProfileResponse](t, resp))
}

func TestAPI_SelfRequest(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/friends/requests", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_FriendDetails(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/friends/details", map[string]any{"ids": []string{"U2", "ghost", "U3"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profiles := decodeBody[[]ProfileResponse](t, resp)
	// Unresolvable ids are omitted.
	require.Len(t, profiles, 2)
	assert.Equal(t, "U2", profiles[0].ID)
	assert.Equal(t, "U3", profiles[1].ID)
}

func TestAPI_ChatRequiresFriendship(t *testing.T) {
	e := newTestEnv(t)

	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", map[string]string{"text": "hello?"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, "U1", http.MethodGet, "/api/chats/U2/messages", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, "U1", http.MethodGet, "/api/chats/U2/stream", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_ChatFlow(t *testing.T) {
	e := newTestEnv(t)
	befriend(t, e, "U1", "bob@example.com", "U2")

	// Alice sends; Bob reads the same conversation.
	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", map[string]string{"text": "hi bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decodeBody[MessageResponse](t, resp)
	assert.Equal(t, "U1", posted.SenderID)
	assert.Equal(t, "Alice", posted.SenderName)
	assert.Equal(t, "U2", posted.ReceiverID)

	resp = e.do(t, "U2", http.MethodPost, "/api/chats/U1/messages", map[string]string{"text": "hi alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, "U2", http.MethodGet, "/api/chats/U1/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[ChatMessagesResponse](t, resp)
	assert.Equal(t, "U1_U2", list.ConversationID)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "hi bob", list.Messages[0].Text)
	assert.Equal(t, "hi alice", list.Messages[1].Text)

	// A third party who is nobody's friend stays locked out.
	resp = e.do(t, "U3", http.MethodGet, "/api/chats/U1/messages", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_PostMessage_ClientTimestamp(t *testing.T) {
	e := newTestEnv(t)
	befriend(t, e, "U1", "bob@example.com", "U2")

	// Posted newest-first; the client timestamps decide read-back order.
	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", PostMessageBody{Text: "second", Timestamp: 2000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	posted := decodeBody[MessageResponse](t, resp)
	assert.Equal(t, int64(2000), posted.Timestamp)

	resp = e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", PostMessageBody{Text: "first", Timestamp: 1000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, "U2", http.MethodGet, "/api/chats/U1/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[ChatMessagesResponse](t, resp)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "first", list.Messages[0].Text)
	assert.Equal(t, "second", list.Messages[1].Text)

	// Omitting the timestamp falls back to the server clock.
	resp = e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", PostMessageBody{Text: "now"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted = decodeBody[MessageResponse](t, resp)
	assert.Greater(t, posted.Timestamp, int64(2000))
}

func TestAPI_EmptyMessage(t *testing.T) {
	e := newTestEnv(t)
	befriend(t, e, "U1", "bob@example.com", "U2")

	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DeleteMessage(t *testing.T) {
	e := newTestEnv(t)
	befriend(t, e, "U1", "bob@example.com", "U2")

	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", map[string]string{"text": "oops"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	posted := decodeBody[MessageResponse](t, resp)

	// Bob cannot delete Alice's message.
	resp = e.do(t, "U2", http.MethodDelete, "/api/chats/U1/messages/"+posted.ID, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Alice can.
	resp = e.do(t, "U1", http.MethodDelete, "/api/chats/U2/messages/"+posted.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// A second delete is a 404.
	resp = e.do(t, "U1", http.MethodDelete, "/api/chats/U2/messages/"+posted.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_StreamInitialSnapshot(t *testing.T) {
	e := newTestEnv(t)
	befriend(t, e, "U1", "bob@example.com", "U2")

	resp := e.do(t, "U1", http.MethodPost, "/api/chats/U2/messages", map[string]string{"text": "before stream"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, e.server.URL+"/api/chats/U2/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.tokens["U1"])

	streamResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer streamResp.Body.Close()
	require.Equal(t, http.StatusOK, streamResp.StatusCode)
	assert.Equal(t, "text/event-stream", streamResp.Header.Get("Content-Type"))

	event, data := readSSEEvent(t, bufio.NewReader(streamResp.Body))
	assert.Equal(t, "snapshot", event)

	var msgs []MessageResponse
	require.NoError(t, json.Unmarshal([]byte(data), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "before stream", msgs[0].Text)
}

// readSSEEvent reads one SSE frame (event + data lines) from the stream.
func readSSEEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
	t.Fatal("timed out reading SSE event")
	return "", ""
}

func TestParseChatPath(t *testing.T) {
	tests := []struct {
		path       string
		wantFriend string
		wantRest   string
		wantOK     bool
	}{
		{"/api/chats/U2/messages", "U2", "messages", true},
		{"/api/chats/U2/messages/m1", "U2", "messages/m1", true},
		{"/api/chats/U2/stream", "U2", "stream", true},
		{"/api/chats/U2", "", "", false},
		{"/api/chats//messages", "", "", false},
		{"/api/other", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			friendID, rest, ok := parseChatPath(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("parseChatPath(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if friendID != tt.wantFriend || rest != tt.wantRest {
				t.Errorf("parseChatPath(%q) = (%q, %q), want (%q, %q)", tt.path, friendID, rest, tt.wantFriend, tt.wantRest)
			}
		})
	}
}
