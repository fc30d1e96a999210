// ABOUTME: HTTP API handlers for the friends and chat endpoints
// ABOUTME: Provides JSON request/reply routes plus SSE snapshot streaming

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/tether/internal/auth"
	"github.com/2389/tether/internal/chatid"
	"github.com/2389/tether/internal/friends"
	"github.com/2389/tether/internal/identity"
	"github.com/2389/tether/internal/messages"
	"github.com/2389/tether/internal/store"
)

// ReceiverIDRequest is the JSON request body for POST /api/receiver-id.
type ReceiverIDRequest struct {
	Email string `json:"email"`
}

// ReceiverIDResponse is the JSON response for POST /api/receiver-id.
type ReceiverIDResponse struct {
	ReceiverID string `json:"receiver_id"`
}

// SendRequestBody is the JSON request body for POST /api/friends/requests.
type SendRequestBody struct {
	Email string `json:"email"`
}

// FriendRequestResponse is one pending inbound request in GET /api/friends/requests.
type FriendRequestResponse struct {
	RequesterID string `json:"requester_id"`
	Name        string `json:"name"`
}

// RequestDecisionBody is the JSON request body for accept/reject endpoints.
type RequestDecisionBody struct {
	RequesterID string `json:"requester_id"`
}

// ProfileResponse is one resolved user profile.
type ProfileResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// FriendDetailsRequest is the JSON request body for POST /api/friends/details.
type FriendDetailsRequest struct {
	IDs []string `json:"ids"`
}

// PostMessageBody is the JSON request body for POST /api/chats/{friendId}/messages.
// Timestamp is the sender's wall clock in unix milliseconds; when omitted the
// server clock is used.
type PostMessageBody struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// MessageResponse is one chat message in API responses.
type MessageResponse struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"`
}

// ChatMessagesResponse is the JSON response for GET /api/chats/{friendId}/messages.
type ChatMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response body.
func (g *Gateway) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// viewer extracts the authenticated session. The auth middleware guarantees
// it is present on API routes.
func (g *Gateway) viewer(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := auth.FromContext(r.Context())
	if !ok {
		g.sendJSONError(w, http.StatusUnauthorized, "no session")
		return auth.Session{}, false
	}
	return session, true
}

// handleReceiverID handles POST /api/receiver-id requests.
// Resolves an email address to a user id via the identity provider.
func (g *Gateway) handleReceiverID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := g.viewer(w, r); !ok {
		return
	}

	var req ReceiverIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "email is required")
		return
	}

	id, err := g.identity.LookupByEmail(r.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, identity.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "no account for that email")
		return
	}
	if err != nil {
		g.logger.Error("identity lookup failed", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}

	g.writeJSON(w, ReceiverIDResponse{ReceiverID: id})
}

// handleListFriends handles GET /api/friends requests.
// Returns resolved profiles for the viewer's friends. Friends whose profile
// can no longer be resolved are omitted.
func (g *Gateway) handleListFriends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, ok := g.viewer(w, r)
	if !ok {
		return
	}

	ids, err := g.friends.FriendIDs(r.Context(), session.UserID)
	if err != nil {
		g.logger.Error("failed to list friends", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	profiles, err := g.resolveProfiles(r.Context(), ids)
	if err != nil {
		g.logger.Error("failed to resolve friend profiles", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	g.writeJSON(w, profiles)
}

// handleFriendDetails handles POST /api/friends/details requests.
// Returns resolved profiles for the requested user ids, omitting ids the
// identity provider no longer knows.
func (g *Gateway) handleFriendDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := g.viewer(w, r); !ok {
		return
	}

	var req FriendDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	profiles, err := g.resolveProfiles(r.Context(), req.IDs)
	if err != nil {
		g.logger.Error("failed to resolve profiles", "error", err)
		g.sendJSONError(w, http.StatusBadGateway, "identity provider unavailable")
		return
	}
	g.writeJSON(w, profiles)
}

// resolveProfiles fetches profiles for ids, preserving input order and
// skipping unresolvable entries.
func (g *Gateway) resolveProfiles(ctx context.Context, ids []string) ([]ProfileResponse, error) {
	byID, err := g.identity.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ProfileResponse, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, ProfileResponse{
			ID:       p.ID,
			Name:     p.Name,
			Email:    p.Email,
			PhotoURL: p.PhotoURL,
		})
	}
	return out, nil
}

// handleFriendRequests handles GET and POST /api/friends/requests.
// GET lists pending inbound requests; POST sends a new request by email.
func (g *Gateway) handleFriendRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListRequests(w, r)
	case http.MethodPost:
		g.handleSendRequest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleListRequests(w http.ResponseWriter, r *http.Request) {
	session, ok := g.viewer(w, r)
	if !ok {
		return
	}

	pending, err := g.friends.PendingRequests(r.Context(), session.UserID)
	if err != nil {
		g.logger.Error("failed to list friend requests", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]FriendRequestResponse, 0, len(pending))
	for _, req := range pending {
		response = append(response, FriendRequestResponse{
			RequesterID: req.OtherID,
			Name:        req.Name,
		})
	}
	g.writeJSON(w, response)
}

func (g *Gateway) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	session, ok := g.viewer(w, r)
	if !ok {
		return
	}

	var body SendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	targetID, err := g.friends.SendRequest(r.Context(), session.UserID, session.Name, body.Email)
	switch {
	case errors.Is(err, friends.ErrEmptyEmail):
		g.sendJSONError(w, http.StatusBadRequest, "email is required")
	case errors.Is(err, friends.ErrSelfRequest):
		g.sendJSONError(w, http.StatusBadRequest, "cannot send a friend request to yourself")
	case errors.Is(err, identity.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "no account for that email")
	case errors.Is(err, identity.ErrUpstream):
		g.sendJSONError(w, http.StatusBadGateway, "identity provider unavailable")
	case err != nil:
		g.logger.Error("failed to send friend request", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		g.writeJSON(w, ReceiverIDResponse{ReceiverID: targetID})
	}
}

// handleAcceptRequest handles POST /api/friends/requests/accept.
func (g *Gateway) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	g.handleRequestDecision(w, r, g.friends.Accept)
}

// handleRejectRequest handles POST /api/friends/requests/reject.
func (g *Gateway) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	g.handleRequestDecision(w, r, g.friends.Reject)
}

func (g *Gateway) handleRequestDecision(w http.ResponseWriter, r *http.Request, decide func(context.Context, string, string) error) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, ok := g.viewer(w, r)
	if !ok {
		return
	}

	var body RequestDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RequesterID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "requester_id is required")
		return
	}

	if err := decide(r.Context(), session.UserID, body.RequesterID); err != nil {
		g.logger.Error("friend request decision failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleChatRoutes dispatches /api/chats/{friendId}/... requests.
// Every route re-checks the friendship gate before touching the conversation.
func (g *Gateway) handleChatRoutes(w http.ResponseWriter, r *http.Request) {
	session, ok := g.viewer(w, r)
	if !ok {
		return
	}

	friendID, rest, ok := parseChatPath(r.URL.Path)
	if !ok {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	if err := g.gate.Authorize(r.Context(), session.UserID, friendID); err != nil {
		if errors.Is(err, friends.ErrNotFriends) {
			g.sendJSONError(w, http.StatusForbidden, "not friends")
			return
		}
		g.logger.Error("authorization check failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	convID := chatid.For(session.UserID, friendID)

	switch {
	case rest == "messages" && r.Method == http.MethodGet:
		g.handleListMessages(w, r, convID)
	case rest == "messages" && r.Method == http.MethodPost:
		g.handlePostMessage(w, r, session, friendID, convID)
	case strings.HasPrefix(rest, "messages/") && r.Method == http.MethodDelete:
		g.handleDeleteMessage(w, r, session, convID, strings.TrimPrefix(rest, "messages/"))
	case rest == "stream" && r.Method == http.MethodGet:
		g.handleStream(w, r, convID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// parseChatPath splits /api/chats/{friendId}/{rest} into its parts.
func parseChatPath(path string) (friendID, rest string, ok bool) {
	const prefix = "/api/chats/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	trimmed := strings.TrimPrefix(path, prefix)
	friendID, rest, found := strings.Cut(trimmed, "/")
	if !found || friendID == "" || rest == "" {
		return "", "", false
	}
	return friendID, rest, true
}

func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request, convID string) {
	msgs, err := g.messages.List(r.Context(), convID)
	if err != nil {
		g.logger.Error("failed to list messages", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, ChatMessagesResponse{
		ConversationID: convID,
		Messages:       toMessageResponses(msgs),
	})
}

func (g *Gateway) handlePostMessage(w http.ResponseWriter, r *http.Request, session auth.Session, friendID, convID string) {
	var body PostMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := g.messages.Append(r.Context(), convID, session.UserID, session.Name, friendID, body.Text, body.Timestamp)
	if errors.Is(err, messages.ErrEmptyText) {
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err != nil {
		g.logger.Error("failed to append message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toMessageResponse(msg))
}

func (g *Gateway) handleDeleteMessage(w http.ResponseWriter, r *http.Request, session auth.Session, convID, messageID string) {
	if messageID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message id is required")
		return
	}

	err := g.messages.Remove(r.Context(), convID, messageID, session.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, messages.ErrNotSender):
		g.sendJSONError(w, http.StatusForbidden, "only the sender can delete a message")
	case err != nil:
		g.logger.Error("failed to delete message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleStream handles GET /api/chats/{friendId}/stream requests.
// Streams the full conversation snapshot as SSE: one "snapshot" event
// immediately, then one per mutation.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request, convID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	initial, updates, cancel, err := g.messages.Watch(r.Context(), convID)
	if err != nil {
		g.logger.Error("failed to open snapshot watch", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer cancel()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	g.writeSSEEvent(w, "snapshot", toMessageResponses(initial))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			g.writeSSEEvent(w, "snapshot", toMessageResponses(snap))
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event frame.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func toMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Timestamp:  m.TimestampMillis,
	}
}

func toMessageResponses(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}
