// Package notify creates notification records and tracks their read state.
//
// Every persisted notification is also handed to a Publisher so that
// connected clients can be pushed updates. Publishing is fire-and-forget:
// failures are logged and counted, never returned.
package notify

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metrics"
)

// Publisher delivers persisted notifications to an external channel.
type Publisher interface {
	Publish(ctx context.Context, n *metadata.Notification) error
	Close() error
}

// Service is the notification fan-out.
type Service struct {
	store     metadata.Store
	publisher Publisher
	clock     clockwork.Clock
	metrics   metrics.NotificationMetrics
}

// NewService creates a Service. publisher and m may be nil.
func NewService(store metadata.Store, publisher Publisher, c clockwork.Clock, m metrics.NotificationMetrics) *Service {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if m == nil {
		m = metrics.NewNoopNotificationMetrics()
	}
	return &Service{store: store, publisher: publisher, clock: c, metrics: m}
}

// Notify creates one unread notification for recipientID.
func (s *Service) Notify(ctx context.Context, recipientID string, kind metadata.NotificationKind, message, link string) (*metadata.Notification, error) {
	created, err := s.create(ctx, []string{recipientID}, kind, message, link)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// NotifyMany creates one notification per recipient. The acting user is
// never notified, and duplicate or empty recipient IDs are collapsed.
func (s *Service) NotifyMany(ctx context.Context, actorID string, recipients []string, kind metadata.NotificationKind, message, link string) ([]*metadata.Notification, error) {
	seen := make(map[string]struct{}, len(recipients))
	targets := make([]string, 0, len(recipients))
	for _, id := range recipients {
		if id == "" || id == actorID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, id)
	}

	if len(targets) == 0 {
		return nil, nil
	}
	return s.create(ctx, targets, kind, message, link)
}

func (s *Service) create(ctx context.Context, recipients []string, kind metadata.NotificationKind, message, link string) ([]*metadata.Notification, error) {
	now := s.clock.Now()
	batch := make([]*metadata.Notification, len(recipients))
	for i, id := range recipients {
		batch[i] = &metadata.Notification{
			RecipientID: id,
			Kind:        kind,
			Message:     message,
			Link:        link,
			CreatedAt:   now,
		}
	}

	if err := s.store.CreateNotifications(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create %s notifications: %w", kind, err)
	}
	s.metrics.RecordCreated(string(kind), len(batch))

	for _, n := range batch {
		err := s.publisher.Publish(ctx, n)
		s.metrics.RecordPublish(err == nil)
		if err != nil {
			logger.Warn("Failed to publish notification %s to %s: %v", n.ID, n.RecipientID, err)
		}
	}

	logger.Debug("Created %d %s notification(s)", len(batch), kind)
	return batch, nil
}

// MarkRead marks a notification read. Notifications that belong to someone
// else or are already read are left untouched, so the first read timestamp
// is kept and repeated calls are harmless.
func (s *Service) MarkRead(ctx context.Context, actorID, id string) error {
	_, err := s.store.MarkNotificationRead(ctx, id, actorID, s.clock.Now())
	return err
}

// MarkAllRead marks every unread notification of actorID read and returns
// how many changed.
func (s *Service) MarkAllRead(ctx context.Context, actorID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, actorID, s.clock.Now())
}

// PurgeRead deletes those of ids that are read and owned by actorID.
func (s *Service) PurgeRead(ctx context.Context, actorID string, ids []string) (int, error) {
	return s.store.DeleteReadNotifications(ctx, actorID, ids)
}

// List returns actorID's notifications, newest first.
func (s *Service) List(ctx context.Context, actorID string, unreadOnly bool) ([]*metadata.Notification, error) {
	return s.store.ListNotifications(ctx, actorID, unreadOnly)
}

// UnreadCount returns the number of unread notifications of actorID.
func (s *Service) UnreadCount(ctx context.Context, actorID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, actorID)
}
