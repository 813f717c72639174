// Package social maintains the relationship graph between users: friend
// requests, friendships and blocks.
//
// Friendships are symmetric and keyed by metadata.Pair. Blocks are
// directional rows, but every predicate that matters (can they befriend,
// can they message, should their content be hidden) treats a block in
// either direction the same way.
package social

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Graph is the relationship graph service.
type Graph struct {
	store metadata.Store
	clock clockwork.Clock
}

// NewGraph creates a Graph.
func NewGraph(store metadata.Store, c clockwork.Clock) *Graph {
	return &Graph{store: store, clock: c}
}

// SendRequest creates a pending friend request from actorID to targetID.
//
// When a block exists in either direction, any pending request from the
// target to the actor is declined and ErrBlocked is returned. Duplicate
// detection is check-then-act: two concurrent calls may both succeed.
func (g *Graph) SendRequest(ctx context.Context, actorID, targetID string) (*metadata.FriendRequest, error) {
	if actorID == targetID {
		return nil, metadata.NewError(metadata.ErrSelfReference, "friend request", "cannot befriend yourself")
	}
	if _, err := g.store.GetUser(ctx, targetID); err != nil {
		return nil, err
	}

	blocked, err := g.AreBlocked(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		if _, err := g.declinePending(ctx, targetID, actorID); err != nil {
			return nil, err
		}
		return nil, metadata.NewError(metadata.ErrBlocked, "friend request", "a block exists between the users")
	}

	friends, err := g.store.FriendshipExists(ctx, metadata.NewPair(actorID, targetID))
	if err != nil {
		return nil, fmt.Errorf("failed to check friendship: %w", err)
	}
	if friends {
		return nil, metadata.NewError(metadata.ErrAlreadyFriends, "friend request", "already friends")
	}

	pending, err := g.store.FindFriendRequests(ctx, metadata.FriendRequestQuery{
		FromID: actorID,
		ToID:   targetID,
		Status: metadata.RequestPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending requests: %w", err)
	}
	if len(pending) > 0 {
		return nil, metadata.NewError(metadata.ErrDuplicateRequest, "friend request", "request already sent")
	}

	now := g.clock.Now()
	req := &metadata.FriendRequest{
		FromID:    actorID,
		ToID:      targetID,
		Status:    metadata.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.store.CreateFriendRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create friend request: %w", err)
	}

	logger.Debug("Friend request %s: %s -> %s", req.ID, actorID, targetID)
	return req, nil
}

// Accept accepts a pending request addressed to actorID and creates the
// friendship.
func (g *Graph) Accept(ctx context.Context, actorID, requestID string) (*metadata.Friendship, error) {
	req, err := g.pendingFor(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	// A block placed after the request was sent wins over the request.
	blocked, err := g.AreBlocked(ctx, req.FromID, req.ToID)
	if err != nil {
		return nil, err
	}
	now := g.clock.Now()
	if blocked {
		if err := g.store.SetFriendRequestStatus(ctx, req.ID, metadata.RequestDeclined, now); err != nil {
			return nil, err
		}
		return nil, metadata.NewError(metadata.ErrBlocked, "friend request", "a block exists between the users")
	}

	if err := g.store.SetFriendRequestStatus(ctx, req.ID, metadata.RequestAccepted, now); err != nil {
		return nil, err
	}

	friendship := &metadata.Friendship{Pair: metadata.NewPair(req.FromID, req.ToID), CreatedAt: now}
	if err := g.store.CreateFriendship(ctx, friendship); err != nil {
		return nil, fmt.Errorf("failed to create friendship: %w", err)
	}

	logger.Debug("Friend request %s accepted", req.ID)
	return friendship, nil
}

// Decline declines a pending request addressed to actorID.
func (g *Graph) Decline(ctx context.Context, actorID, requestID string) error {
	req, err := g.pendingFor(ctx, actorID, requestID)
	if err != nil {
		return err
	}
	return g.store.SetFriendRequestStatus(ctx, req.ID, metadata.RequestDeclined, g.clock.Now())
}

// pendingFor loads a request that actorID may act on. Requests addressed to
// someone else are reported as not found.
func (g *Graph) pendingFor(ctx context.Context, actorID, requestID string) (*metadata.FriendRequest, error) {
	req, err := g.store.GetFriendRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToID != actorID {
		return nil, metadata.NewNotFoundError("friend request", requestID)
	}
	if req.Status != metadata.RequestPending {
		return nil, metadata.NewValidationError("friend request", "request is already %s", req.Status)
	}
	return req, nil
}

// Block records that actorID blocks targetID. It is idempotent. Pending
// requests from the target are declined and any friendship is removed.
func (g *Graph) Block(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return metadata.NewError(metadata.ErrSelfReference, "block", "cannot block yourself")
	}
	if _, err := g.store.GetUser(ctx, targetID); err != nil {
		return err
	}

	now := g.clock.Now()
	created, err := g.store.CreateBlock(ctx, &metadata.Block{BlockerID: actorID, BlockedID: targetID, CreatedAt: now})
	if err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}

	declined, err := g.declinePending(ctx, targetID, actorID)
	if err != nil {
		return err
	}

	if err := g.store.DeleteFriendship(ctx, metadata.NewPair(actorID, targetID)); err != nil {
		return fmt.Errorf("failed to remove friendship: %w", err)
	}

	if created {
		logger.Info("User %s blocked %s (%d pending request(s) declined)", actorID, targetID, declined)
	}
	return nil
}

// Unblock removes the block actorID placed on targetID. A block placed by
// the target remains.
func (g *Graph) Unblock(ctx context.Context, actorID, targetID string) error {
	return g.store.DeleteBlock(ctx, actorID, targetID)
}

// Unfriend removes the friendship between the two users, if any.
func (g *Graph) Unfriend(ctx context.Context, actorID, targetID string) error {
	return g.store.DeleteFriendship(ctx, metadata.NewPair(actorID, targetID))
}

func (g *Graph) declinePending(ctx context.Context, fromID, toID string) (int, error) {
	pending, err := g.store.FindFriendRequests(ctx, metadata.FriendRequestQuery{
		FromID: fromID,
		ToID:   toID,
		Status: metadata.RequestPending,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to look up pending requests: %w", err)
	}

	now := g.clock.Now()
	for _, req := range pending {
		if err := g.store.SetFriendRequestStatus(ctx, req.ID, metadata.RequestDeclined, now); err != nil {
			return 0, fmt.Errorf("failed to decline request %s: %w", req.ID, err)
		}
	}
	return len(pending), nil
}

// AreBlocked reports whether a block exists in either direction.
func (g *Graph) AreBlocked(ctx context.Context, a, b string) (bool, error) {
	for _, dir := range [][2]string{{a, b}, {b, a}} {
		exists, err := g.store.BlockExists(ctx, dir[0], dir[1])
		if err != nil {
			return false, fmt.Errorf("failed to check block: %w", err)
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// AreFriends reports whether the two users are friends.
func (g *Graph) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return g.store.FriendshipExists(ctx, metadata.NewPair(a, b))
}

// FriendIDs returns the IDs of userID's friends.
func (g *Graph) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	friendships, err := g.store.ListFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}
	ids := make([]string, len(friendships))
	for i, f := range friendships {
		ids[i] = f.Pair.Other(userID)
	}
	return ids, nil
}

// VisibleFriendIDs returns userID's friends minus anyone sharing a block
// with them. Friendships are removed on block, so the difference only
// shows when a block row was written without going through Block.
func (g *Graph) VisibleFriendIDs(ctx context.Context, userID string) ([]string, error) {
	friends, err := g.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	hidden, err := g.HiddenOwners(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(hidden) == 0 {
		return friends, nil
	}

	skip := make(map[string]struct{}, len(hidden))
	for _, id := range hidden {
		skip[id] = struct{}{}
	}
	out := friends[:0]
	for _, id := range friends {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// HiddenOwners returns the users sharing a block with userID in either
// direction.
func (g *Graph) HiddenOwners(ctx context.Context, userID string) ([]string, error) {
	blocks, err := g.store.ListBlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return access.HiddenFromBlocks(userID, blocks), nil
}

// Blocked returns the users actorID has blocked.
func (g *Graph) Blocked(ctx context.Context, actorID string) ([]*metadata.User, error) {
	blocks, err := g.store.ListBlocks(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == actorID {
			ids = append(ids, b.BlockedID)
		}
	}
	return g.users(ctx, ids)
}

// PendingRequests returns the pending requests addressed to userID, newest
// first.
func (g *Graph) PendingRequests(ctx context.Context, userID string) ([]*metadata.FriendRequest, error) {
	return g.store.FindFriendRequests(ctx, metadata.FriendRequestQuery{
		ToID:   userID,
		Status: metadata.RequestPending,
	})
}

// Friends returns the user records of userID's friends.
func (g *Graph) Friends(ctx context.Context, userID string) ([]*metadata.User, error) {
	ids, err := g.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.users(ctx, ids)
}

// users resolves ids, skipping users deleted in the meantime.
func (g *Graph) users(ctx context.Context, ids []string) ([]*metadata.User, error) {
	out := make([]*metadata.User, 0, len(ids))
	for _, id := range ids {
		u, err := g.store.GetUser(ctx, id)
		if metadata.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
