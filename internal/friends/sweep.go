// ABOUTME: Reconciliation sweep that removes orphaned friend-graph mirrors
// ABOUTME: Cleans up the residue of dual writes that only half completed

package friends

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/tether/internal/store"
)

// SweepStore is the store surface the sweeper needs: orphan discovery plus
// single-mirror deletion.
type SweepStore interface {
	store.ReconcileStore
	DeleteRequest(ctx context.Context, userID string, dir store.RequestDirection, otherID string) error
	DeleteFriendEdge(ctx context.Context, userID, friendID string) error
}

// Sweeper periodically removes mirror rows whose counterpart is missing.
// Orphans only exist when a dual write failed halfway, so a sweep pass is
// normally a no-op.
type Sweeper struct {
	store    SweepStore
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(st SweepStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    st,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Errors are
// logged and the next tick retries; a failed pass never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("reconciliation sweep started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweep stopped")
			return
		case <-ticker.C:
			if removed, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep pass failed", "error", err)
			} else if removed > 0 {
				s.logger.Info("sweep removed orphaned mirrors", "count", removed)
			}
		}
	}
}

// SweepOnce removes all currently-orphaned request and edge mirrors and
// returns how many rows were deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed := 0

	reqs, err := s.store.ListOrphanedRequests(ctx)
	if err != nil {
		return removed, fmt.Errorf("listing orphaned requests: %w", err)
	}
	for _, r := range reqs {
		if err := s.store.DeleteRequest(ctx, r.UserID, r.Direction, r.OtherID); err != nil {
			return removed, fmt.Errorf("deleting orphaned request %s/%s/%s: %w", r.UserID, r.Direction, r.OtherID, err)
		}
		s.logger.Debug("removed orphaned request mirror",
			"user_id", r.UserID,
			"direction", r.Direction,
			"other_id", r.OtherID)
		removed++
	}

	edges, err := s.store.ListOrphanedEdges(ctx)
	if err != nil {
		return removed, fmt.Errorf("listing orphaned edges: %w", err)
	}
	for _, e := range edges {
		if err := s.store.DeleteFriendEdge(ctx, e.UserID, e.FriendID); err != nil {
			return removed, fmt.Errorf("deleting orphaned edge %s/%s: %w", e.UserID, e.FriendID, err)
		}
		s.logger.Debug("removed orphaned edge mirror",
			"user_id", e.UserID,
			"friend_id", e.FriendID)
		removed++
	}

	return removed, nil
}
