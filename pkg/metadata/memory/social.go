package memory

import (
	"context"
	"sort"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *MemoryMetadataStore) CreateFriendRequest(ctx context.Context, req *metadata.FriendRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req.ID = newID(req.ID)
	cp := *req
	s.requests[cp.ID] = &cp
	return nil
}

func (s *MemoryMetadataStore) GetFriendRequest(ctx context.Context, id string) (*metadata.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, metadata.NewNotFoundError("friend request", id)
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryMetadataStore) FindFriendRequests(ctx context.Context, q metadata.FriendRequestQuery) ([]*metadata.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.FriendRequest
	for _, r := range s.requests {
		if q.Matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryMetadataStore) SetFriendRequestStatus(ctx context.Context, id string, status metadata.RequestStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return metadata.NewNotFoundError("friend request", id)
	}
	r.Status = status
	r.UpdatedAt = at
	return nil
}

func (s *MemoryMetadataStore) CreateFriendship(ctx context.Context, friendship *metadata.Friendship) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair := metadata.NewPair(friendship.Pair.Low, friendship.Pair.High)
	if _, exists := s.friendships[pair]; exists {
		return nil
	}
	cp := *friendship
	cp.Pair = pair
	s.friendships[pair] = &cp
	return nil
}

func (s *MemoryMetadataStore) FriendshipExists(ctx context.Context, pair metadata.Pair) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.friendships[metadata.NewPair(pair.Low, pair.High)]
	return ok, nil
}

func (s *MemoryMetadataStore) DeleteFriendship(ctx context.Context, pair metadata.Pair) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.friendships, metadata.NewPair(pair.Low, pair.High))
	return nil
}

func (s *MemoryMetadataStore) ListFriendships(ctx context.Context, userID string) ([]*metadata.Friendship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Friendship
	for pair, f := range s.friendships {
		if pair.Contains(userID) {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pair.Key() < out[j].Pair.Key()
	})
	return out, nil
}

func (s *MemoryMetadataStore) CreateBlock(ctx context.Context, block *metadata.Block) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := blockKey{blocker: block.BlockerID, blocked: block.BlockedID}
	if _, exists := s.blocks[key]; exists {
		return false, nil
	}
	cp := *block
	s.blocks[key] = &cp
	return true, nil
}

func (s *MemoryMetadataStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocks, blockKey{blocker: blockerID, blocked: blockedID})
	return nil
}

func (s *MemoryMetadataStore) BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blocks[blockKey{blocker: blockerID, blocked: blockedID}]
	return ok, nil
}

func (s *MemoryMetadataStore) ListBlocks(ctx context.Context, userID string) ([]*metadata.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Block
	for _, b := range s.blocks {
		if b.Involves(userID) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockerID != out[j].BlockerID {
			return out[i].BlockerID < out[j].BlockerID
		}
		return out[i].BlockedID < out[j].BlockedID
	})
	return out, nil
}
