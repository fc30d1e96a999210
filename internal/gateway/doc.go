// Package gateway orchestrates the tether server components.
//
// # Overview
//
// The gateway package is the central coordinator of the tether server. It
// owns and manages all major components: the HTTP server, the SQLite store,
// the friend-graph service and its reconciliation sweep, the message service,
// and the identity-provider client.
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - POST /api/receiver-id - Resolve an email to a user id
//   - GET /api/friends - List the viewer's friends with resolved profiles
//   - POST /api/friends/details - Resolve a batch of user ids to profiles
//   - GET /api/friends/requests - List pending inbound friend requests
//   - POST /api/friends/requests - Send a friend request by email
//   - POST /api/friends/requests/accept - Accept a pending request
//   - POST /api/friends/requests/reject - Reject a pending request
//   - GET /api/chats/{friendId}/messages - Read the conversation log
//   - POST /api/chats/{friendId}/messages - Send a message
//   - DELETE /api/chats/{friendId}/messages/{id} - Delete own message
//   - GET /api/chats/{friendId}/stream - Live conversation snapshots (SSE)
//   - GET /health - Liveness check
//
// All /api routes require a Bearer JWT; /health is open.
//
// # Authorization
//
// Chat routes re-check the friendship gate on every request. There is no
// cached grant: removing a friendship edge locks the other user out of the
// conversation on their next request.
//
// # SSE Streaming
//
// The stream endpoint sends the full conversation as Server-Sent Events:
//
//	event: snapshot
//	data: [{"id": "...", "sender_id": "U1", "text": "hi", ...}]
//
// One snapshot is sent immediately on connect, then one after every append
// or delete in the conversation. Snapshots are complete renders, never
// deltas, so a dropped update is corrected by the next one.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Run also starts the reconciliation sweep, which removes orphaned
// friend-graph mirrors on the configured interval.
//
// Graceful shutdown:
//
//	cancel()
//	gw.Shutdown(shutdownCtx)
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, listeners, Run/Shutdown
//   - api.go: HTTP handlers and SSE streaming
package gateway
