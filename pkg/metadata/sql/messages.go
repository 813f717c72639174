package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"gorm.io/gorm"
)

func (s *SQLMetadataStore) GetOrCreateThread(ctx context.Context, pair metadata.Pair, now time.Time) (*metadata.Thread, error) {
	pair = metadata.NewPair(pair.Low, pair.High)

	var thread *metadata.Thread
	err := s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var row threadRow
		err := tx.Where("low_id = ? AND high_id = ?", pair.Low, pair.High).First(&row).Error
		if err == nil {
			thread = row.toThread()
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row = threadRow{
			ID:        newID(""),
			LowID:     pair.Low,
			HighID:    pair.High,
			CreatedAt: now.UTC(),
			UpdatedAt: now.UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		thread = row.toThread()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return thread, nil
}

func (s *SQLMetadataStore) FindThread(ctx context.Context, pair metadata.Pair) (*metadata.Thread, error) {
	pair = metadata.NewPair(pair.Low, pair.High)

	var row threadRow
	if err := s.tx(ctx).Where("low_id = ? AND high_id = ?", pair.Low, pair.High).First(&row).Error; err != nil {
		return nil, notFound(err, "thread", pair.Key())
	}
	return row.toThread(), nil
}

func (s *SQLMetadataStore) GetThread(ctx context.Context, id string) (*metadata.Thread, error) {
	var row threadRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "thread", id)
	}
	return row.toThread(), nil
}

func (s *SQLMetadataStore) ListThreads(ctx context.Context, userID string) ([]*metadata.Thread, error) {
	var rows []threadRow
	err := s.tx(ctx).Where("low_id = ? OR high_id = ?", userID, userID).Order("updated_at DESC, id DESC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := make([]*metadata.Thread, len(rows))
	for i := range rows {
		threads[i] = rows[i].toThread()
	}
	return threads, nil
}

func (s *SQLMetadataStore) CreateMessage(ctx context.Context, msg *metadata.Message) error {
	msg.ID = newID(msg.ID)
	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var thread threadRow
		if err := tx.Where("id = ?", msg.ThreadID).First(&thread).Error; err != nil {
			return notFound(err, "thread", msg.ThreadID)
		}

		row := &messageRow{
			ID:        msg.ID,
			ThreadID:  msg.ThreadID,
			FromID:    msg.FromID,
			ToID:      msg.ToID,
			Text:      msg.Text,
			ReadAt:    utcPtr(msg.ReadAt),
			CreatedAt: msg.CreatedAt.UTC(),
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		if msg.CreatedAt.After(thread.UpdatedAt) {
			return tx.Model(&threadRow{}).Where("id = ?", thread.ID).Update("updated_at", msg.CreatedAt.UTC()).Error
		}
		return nil
	})
}

func (s *SQLMetadataStore) ListMessages(ctx context.Context, threadID string) ([]*metadata.Message, error) {
	var rows []messageRow
	if err := s.tx(ctx).Where("thread_id = ?", threadID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := make([]*metadata.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toMessage()
	}
	return msgs, nil
}

func (s *SQLMetadataStore) MarkMessagesRead(ctx context.Context, threadID, recipientID string, at time.Time) (int, error) {
	result := s.tx(ctx).Model(&messageRow{}).
		Where("thread_id = ? AND to_id = ? AND read_at IS NULL", threadID, recipientID).
		Update("read_at", at.UTC())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *SQLMetadataStore) CreateNotifications(ctx context.Context, notifications []*metadata.Notification) error {
	if len(notifications) == 0 {
		return ctx.Err()
	}

	rows := make([]*notificationRow, len(notifications))
	for i, n := range notifications {
		n.ID = newID(n.ID)
		rows[i] = newNotificationRow(n)
	}
	if err := s.tx(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) GetNotification(ctx context.Context, id string) (*metadata.Notification, error) {
	var row notificationRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "notification", id)
	}
	return row.toNotification(), nil
}

func (s *SQLMetadataStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*metadata.Notification, error) {
	db := s.tx(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		db = db.Where("read_at IS NULL")
	}

	var rows []notificationRow
	if err := db.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	out := make([]*metadata.Notification, len(rows))
	for i := range rows {
		out[i] = rows[i].toNotification()
	}
	return out, nil
}

func (s *SQLMetadataStore) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	result := s.tx(ctx).Model(&notificationRow{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", id, recipientID).
		Update("read_at", at.UTC())
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLMetadataStore) MarkAllNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	result := s.tx(ctx).Model(&notificationRow{}).
		Where("recipient_id = ? AND read_at IS NULL", recipientID).
		Update("read_at", at.UTC())
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *SQLMetadataStore) DeleteReadNotifications(ctx context.Context, recipientID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ctx.Err()
	}
	result := s.tx(ctx).
		Where("id IN ? AND recipient_id = ? AND read_at IS NOT NULL", ids, recipientID).
		Delete(&notificationRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *SQLMetadataStore) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var count int64
	err := s.tx(ctx).Model(&notificationRow{}).Where("recipient_id = ? AND read_at IS NULL", recipientID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return int(count), nil
}
