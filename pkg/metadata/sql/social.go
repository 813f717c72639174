package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"gorm.io/gorm/clause"
)

func (s *SQLMetadataStore) CreateFriendRequest(ctx context.Context, req *metadata.FriendRequest) error {
	req.ID = newID(req.ID)
	row := &requestRow{
		ID:        req.ID,
		FromID:    req.FromID,
		ToID:      req.ToID,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt.UTC(),
		UpdatedAt: req.UpdatedAt.UTC(),
	}
	if err := s.tx(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) GetFriendRequest(ctx context.Context, id string) (*metadata.FriendRequest, error) {
	var row requestRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "friend request", id)
	}
	return row.toRequest(), nil
}

func (s *SQLMetadataStore) FindFriendRequests(ctx context.Context, q metadata.FriendRequestQuery) ([]*metadata.FriendRequest, error) {
	db := s.tx(ctx).Model(&requestRow{})
	if q.FromID != "" {
		db = db.Where("from_id = ?", q.FromID)
	}
	if q.ToID != "" {
		db = db.Where("to_id = ?", q.ToID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", string(q.Status))
	}

	var rows []requestRow
	if err := db.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find friend requests: %w", err)
	}

	reqs := make([]*metadata.FriendRequest, len(rows))
	for i := range rows {
		reqs[i] = rows[i].toRequest()
	}
	return reqs, nil
}

func (s *SQLMetadataStore) SetFriendRequestStatus(ctx context.Context, id string, status metadata.RequestStatus, at time.Time) error {
	result := s.tx(ctx).Model(&requestRow{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": at.UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update friend request: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewNotFoundError("friend request", id)
	}
	return nil
}

func (s *SQLMetadataStore) CreateFriendship(ctx context.Context, friendship *metadata.Friendship) error {
	pair := metadata.NewPair(friendship.Pair.Low, friendship.Pair.High)
	row := &friendshipRow{LowID: pair.Low, HighID: pair.High, CreatedAt: friendship.CreatedAt.UTC()}
	if err := s.tx(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return fmt.Errorf("failed to create friendship: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) FriendshipExists(ctx context.Context, pair metadata.Pair) (bool, error) {
	pair = metadata.NewPair(pair.Low, pair.High)
	var count int64
	err := s.tx(ctx).Model(&friendshipRow{}).Where("low_id = ? AND high_id = ?", pair.Low, pair.High).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

func (s *SQLMetadataStore) DeleteFriendship(ctx context.Context, pair metadata.Pair) error {
	pair = metadata.NewPair(pair.Low, pair.High)
	err := s.tx(ctx).Where("low_id = ? AND high_id = ?", pair.Low, pair.High).Delete(&friendshipRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete friendship: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) ListFriendships(ctx context.Context, userID string) ([]*metadata.Friendship, error) {
	var rows []friendshipRow
	err := s.tx(ctx).Where("low_id = ? OR high_id = ?", userID, userID).Order("low_id, high_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friendships: %w", err)
	}

	out := make([]*metadata.Friendship, len(rows))
	for i := range rows {
		out[i] = rows[i].toFriendship()
	}
	return out, nil
}

func (s *SQLMetadataStore) CreateBlock(ctx context.Context, block *metadata.Block) (bool, error) {
	row := &blockRow{BlockerID: block.BlockerID, BlockedID: block.BlockedID, CreatedAt: block.CreatedAt.UTC()}
	result := s.tx(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create block: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLMetadataStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) error {
	err := s.tx(ctx).Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).Delete(&blockRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete block: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var count int64
	err := s.tx(ctx).Model(&blockRow{}).Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check block: %w", err)
	}
	return count > 0, nil
}

func (s *SQLMetadataStore) ListBlocks(ctx context.Context, userID string) ([]*metadata.Block, error) {
	var rows []blockRow
	err := s.tx(ctx).Where("blocker_id = ? OR blocked_id = ?", userID, userID).Order("blocker_id, blocked_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	out := make([]*metadata.Block, len(rows))
	for i := range rows {
		out[i] = rows[i].toBlock()
	}
	return out, nil
}
