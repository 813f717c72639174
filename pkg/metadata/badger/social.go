package badger

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *BadgerMetadataStore) CreateFriendRequest(ctx context.Context, req *metadata.FriendRequest) error {
	req.ID = newID(req.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		return put(txn, keyRequest(req.ID), req)
	})
}

func (s *BadgerMetadataStore) GetFriendRequest(ctx context.Context, id string) (*metadata.FriendRequest, error) {
	var req *metadata.FriendRequest
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		req, err = load[metadata.FriendRequest](txn, keyRequest(id), "friend request", id)
		return err
	})
	return req, err
}

func (s *BadgerMetadataStore) FindFriendRequests(ctx context.Context, q metadata.FriendRequestQuery) ([]*metadata.FriendRequest, error) {
	var reqs []*metadata.FriendRequest
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		reqs, err = scan(txn, []byte(prefixRequest), q.Matches)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
	return reqs, nil
}

func (s *BadgerMetadataStore) SetFriendRequestStatus(ctx context.Context, id string, status metadata.RequestStatus, at time.Time) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		req, err := load[metadata.FriendRequest](txn, keyRequest(id), "friend request", id)
		if err != nil {
			return err
		}
		req.Status = status
		req.UpdatedAt = at
		return put(txn, keyRequest(id), req)
	})
}

func (s *BadgerMetadataStore) CreateFriendship(ctx context.Context, friendship *metadata.Friendship) error {
	pair := metadata.NewPair(friendship.Pair.Low, friendship.Pair.High)
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyFriendship(pair)); err != nil || ok {
			return err
		}
		record := *friendship
		record.Pair = pair
		return put(txn, keyFriendship(pair), &record)
	})
}

func (s *BadgerMetadataStore) FriendshipExists(ctx context.Context, pair metadata.Pair) (bool, error) {
	var ok bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, keyFriendship(metadata.NewPair(pair.Low, pair.High)))
		return err
	})
	return ok, err
}

func (s *BadgerMetadataStore) DeleteFriendship(ctx context.Context, pair metadata.Pair) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(keyFriendship(metadata.NewPair(pair.Low, pair.High)))
	})
}

func (s *BadgerMetadataStore) ListFriendships(ctx context.Context, userID string) ([]*metadata.Friendship, error) {
	var out []*metadata.Friendship
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = scan(txn, []byte(prefixFriendship), func(f *metadata.Friendship) bool {
			return f.Pair.Contains(userID)
		})
		return err
	})
	// Keys are fs:<low>:<high>, so the scan is already in pair order.
	return out, err
}

func (s *BadgerMetadataStore) CreateBlock(ctx context.Context, block *metadata.Block) (bool, error) {
	var created bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := keyBlock(block.BlockerID, block.BlockedID)
		ok, err := exists(txn, key)
		if err != nil {
			return err
		}
		created = !ok
		if ok {
			return nil
		}
		return put(txn, key, block)
	})
	return created, err
}

func (s *BadgerMetadataStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(keyBlock(blockerID, blockedID))
	})
}

func (s *BadgerMetadataStore) BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var ok bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, keyBlock(blockerID, blockedID))
		return err
	})
	return ok, err
}

func (s *BadgerMetadataStore) ListBlocks(ctx context.Context, userID string) ([]*metadata.Block, error) {
	var out []*metadata.Block
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = scan(txn, []byte(prefixBlock), func(b *metadata.Block) bool {
			return b.Involves(userID)
		})
		return err
	})
	return out, err
}
