// ABOUTME: FriendGraphService owning the request/accept/reject dual-write protocols
// ABOUTME: All operations take explicit user ids; there is no ambient session identity

package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/tether/internal/identity"
	"github.com/2389/tether/internal/store"
)

// Friend-graph errors
var (
	// ErrEmptyEmail is returned for a blank or whitespace-only target email.
	ErrEmptyEmail = errors.New("target email is empty")
	// ErrSelfRequest is returned when the target email resolves to the requester.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrPartialWrite is returned when one mirror of a pair was written or
	// removed and its counterpart operation failed. No rollback is attempted;
	// the reconciliation sweep removes the surviving orphan.
	ErrPartialWrite = errors.New("partial mirror write")
)

// Service owns the directed-request and symmetric-friendship state machine.
// Per ordered pair (requester, target) the states are None, PendingOutbound,
// and Friends; PendingInbound is just PendingOutbound seen from the other side.
type Service struct {
	store    store.FriendStore
	identity identity.Resolver
	logger   *slog.Logger
}

// NewService creates a friend-graph service. Pass nil logger for default.
func NewService(st store.FriendStore, resolver identity.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		identity: resolver,
		logger:   logger.With("component", "friends"),
	}
}

// SendRequest resolves targetEmail and writes the two request mirrors: a
// "sent" record under the requester and a "received" record under the target,
// both carrying the requester's display name. Re-sending while a request is
// pending, or when the pair is already friends, overwrites idempotently.
//
// The two writes are not atomic. If the received mirror fails after the sent
// mirror landed, the result is ErrPartialWrite and the orphan is left for the
// sweep.
func (s *Service) SendRequest(ctx context.Context, requesterID, requesterName, targetEmail string) (string, error) {
	email := strings.TrimSpace(targetEmail)
	if email == "" {
		return "", ErrEmptyEmail
	}

	targetID, err := s.identity.LookupByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if targetID == requesterID {
		return "", ErrSelfRequest
	}

	if err := s.store.PutRequest(ctx, requesterID, store.RequestSent, targetID, requesterName); err != nil {
		return "", fmt.Errorf("writing sent mirror: %w", err)
	}
	if err := s.store.PutRequest(ctx, targetID, store.RequestReceived, requesterID, requesterName); err != nil {
		s.logger.Error("received mirror write failed after sent mirror succeeded",
			"requester_id", requesterID,
			"target_id", targetID,
			"error", err)
		return "", fmt.Errorf("%w: received mirror: %v", ErrPartialWrite, err)
	}

	s.logger.Info("friend request sent",
		"requester_id", requesterID,
		"target_id", targetID)
	return targetID, nil
}

// Accept transitions PendingOutbound (requester → accepter) to Friends: both
// edge mirrors are written, then both request mirrors are removed. Accepting
// a request that no longer exists is a no-op, not an error.
//
// If both users requested each other before either accepted, accepting one
// request also removes the reverse pair's mirrors, so the pair converges to a
// single Friends state with no dangling request.
func (s *Service) Accept(ctx context.Context, accepterID, requesterID string) error {
	if err := s.store.PutFriendEdge(ctx, accepterID, requesterID); err != nil {
		return fmt.Errorf("writing edge mirror: %w", err)
	}
	if err := s.store.PutFriendEdge(ctx, requesterID, accepterID); err != nil {
		s.logger.Error("reverse edge mirror write failed",
			"accepter_id", accepterID,
			"requester_id", requesterID,
			"error", err)
		return fmt.Errorf("%w: reverse edge mirror: %v", ErrPartialWrite, err)
	}

	if err := s.removeRequestPair(ctx, requesterID, accepterID); err != nil {
		return err
	}
	// Reverse-direction request, if the pair requested each other concurrently
	if err := s.removeRequestPair(ctx, accepterID, requesterID); err != nil {
		return err
	}

	s.logger.Info("friend request accepted",
		"accepter_id", accepterID,
		"requester_id", requesterID)
	return nil
}

// Reject removes both request mirrors without creating any edge, returning
// the pair to None. Rejecting a missing request is a no-op.
func (s *Service) Reject(ctx context.Context, accepterID, requesterID string) error {
	if err := s.removeRequestPair(ctx, requesterID, accepterID); err != nil {
		return err
	}
	s.logger.Info("friend request rejected",
		"accepter_id", accepterID,
		"requester_id", requesterID)
	return nil
}

// removeRequestPair deletes the sent mirror under fromID and the received
// mirror under toID for the request fromID → toID.
func (s *Service) removeRequestPair(ctx context.Context, fromID, toID string) error {
	if err := s.store.DeleteRequest(ctx, fromID, store.RequestSent, toID); err != nil {
		return fmt.Errorf("removing sent mirror: %w", err)
	}
	if err := s.store.DeleteRequest(ctx, toID, store.RequestReceived, fromID); err != nil {
		s.logger.Error("received mirror removal failed after sent mirror removed",
			"from_id", fromID,
			"to_id", toID,
			"error", err)
		return fmt.Errorf("%w: received mirror removal: %v", ErrPartialWrite, err)
	}
	return nil
}

// AreFriends reports whether the edge mirror exists under a's namespace.
// Symmetry between the two namespaces is a protocol invariant, not a storage
// guarantee, so callers always check from the viewer's side.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return s.store.HasFriendEdge(ctx, a, b)
}

// FriendIDs returns the ids of userID's friends.
func (s *Service) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	return s.store.ListFriendIDs(ctx, userID)
}

// PendingRequests returns the received request mirrors under userID's
// namespace: who wants to be friends, with the name captured at send time.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]*store.FriendRequest, error) {
	return s.store.ListRequests(ctx, userID, store.RequestReceived)
}
