package badger

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *BadgerMetadataStore) GetOrCreateThread(ctx context.Context, pair metadata.Pair, now time.Time) (*metadata.Thread, error) {
	pair = metadata.NewPair(pair.Low, pair.High)

	var thread *metadata.Thread
	err := s.update(ctx, func(txn *badger.Txn) error {
		id, ok, err := loadString(txn, keyThreadPair(pair))
		if err != nil {
			return err
		}
		if ok {
			thread, err = load[metadata.Thread](txn, keyThread(id), "thread", id)
			return err
		}

		thread = &metadata.Thread{
			ID:        newID(""),
			Pair:      pair,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := txn.Set(keyThreadPair(pair), []byte(thread.ID)); err != nil {
			return err
		}
		return put(txn, keyThread(thread.ID), thread)
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *BadgerMetadataStore) FindThread(ctx context.Context, pair metadata.Pair) (*metadata.Thread, error) {
	pair = metadata.NewPair(pair.Low, pair.High)

	var thread *metadata.Thread
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, ok, err := loadString(txn, keyThreadPair(pair))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("thread", pair.Key())
		}
		thread, err = load[metadata.Thread](txn, keyThread(id), "thread", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *BadgerMetadataStore) GetThread(ctx context.Context, id string) (*metadata.Thread, error) {
	var thread *metadata.Thread
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		thread, err = load[metadata.Thread](txn, keyThread(id), "thread", id)
		return err
	})
	return thread, err
}

func (s *BadgerMetadataStore) ListThreads(ctx context.Context, userID string) ([]*metadata.Thread, error) {
	var threads []*metadata.Thread
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		threads, err = scan(txn, []byte(prefixThread), func(t *metadata.Thread) bool {
			return t.Pair.Contains(userID)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(threads, func(i, j int) bool {
		if !threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
		}
		return threads[i].ID > threads[j].ID
	})
	return threads, nil
}

func (s *BadgerMetadataStore) CreateMessage(ctx context.Context, msg *metadata.Message) error {
	msg.ID = newID(msg.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		thread, err := load[metadata.Thread](txn, keyThread(msg.ThreadID), "thread", msg.ThreadID)
		if err != nil {
			return err
		}
		if err := put(txn, keyMessage(thread.ID, msg.ID), msg); err != nil {
			return err
		}
		if msg.CreatedAt.After(thread.UpdatedAt) {
			thread.UpdatedAt = msg.CreatedAt
			return put(txn, keyThread(thread.ID), thread)
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListMessages(ctx context.Context, threadID string) ([]*metadata.Message, error) {
	var msgs []*metadata.Message
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		msgs, err = scan[metadata.Message](txn, keyMessagePrefix(threadID), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	sortMessages(msgs)
	return msgs, nil
}

func sortMessages(msgs []*metadata.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (s *BadgerMetadataStore) MarkMessagesRead(ctx context.Context, threadID, recipientID string, at time.Time) (int, error) {
	var count int
	err := s.update(ctx, func(txn *badger.Txn) error {
		unread, err := scan(txn, keyMessagePrefix(threadID), func(m *metadata.Message) bool {
			return m.ToID == recipientID && m.ReadAt == nil
		})
		if err != nil {
			return err
		}
		for _, m := range unread {
			readAt := at
			m.ReadAt = &readAt
			if err := put(txn, keyMessage(threadID, m.ID), m); err != nil {
				return err
			}
		}
		count = len(unread)
		return nil
	})
	return count, err
}

func (s *BadgerMetadataStore) CreateNotifications(ctx context.Context, notifications []*metadata.Notification) error {
	for _, n := range notifications {
		n.ID = newID(n.ID)
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		for _, n := range notifications {
			if err := put(txn, keyNotification(n.ID), n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerMetadataStore) GetNotification(ctx context.Context, id string) (*metadata.Notification, error) {
	var n *metadata.Notification
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		n, err = load[metadata.Notification](txn, keyNotification(id), "notification", id)
		return err
	})
	return n, err
}

func (s *BadgerMetadataStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*metadata.Notification, error) {
	var out []*metadata.Notification
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		out, err = scan(txn, []byte(prefixNotification), func(n *metadata.Notification) bool {
			return n.RecipientID == recipientID && !(unreadOnly && n.IsRead())
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *BadgerMetadataStore) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	var changed bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		changed = false
		n, err := load[metadata.Notification](txn, keyNotification(id), "notification", id)
		if metadata.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if n.RecipientID != recipientID || n.IsRead() {
			return nil
		}
		readAt := at
		n.ReadAt = &readAt
		changed = true
		return put(txn, keyNotification(id), n)
	})
	return changed, err
}

func (s *BadgerMetadataStore) MarkAllNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	var count int
	err := s.update(ctx, func(txn *badger.Txn) error {
		unread, err := scan(txn, []byte(prefixNotification), func(n *metadata.Notification) bool {
			return n.RecipientID == recipientID && !n.IsRead()
		})
		if err != nil {
			return err
		}
		for _, n := range unread {
			readAt := at
			n.ReadAt = &readAt
			if err := put(txn, keyNotification(n.ID), n); err != nil {
				return err
			}
		}
		count = len(unread)
		return nil
	})
	return count, err
}

func (s *BadgerMetadataStore) DeleteReadNotifications(ctx context.Context, recipientID string, ids []string) (int, error) {
	var count int
	err := s.update(ctx, func(txn *badger.Txn) error {
		count = 0
		for _, id := range ids {
			n, err := load[metadata.Notification](txn, keyNotification(id), "notification", id)
			if metadata.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if n.RecipientID != recipientID || !n.IsRead() {
				continue
			}
			if err := txn.Delete(keyNotification(id)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerMetadataStore) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.view(ctx, func(txn *badger.Txn) error {
		unread, err := scan(txn, []byte(prefixNotification), func(n *metadata.Notification) bool {
			return n.RecipientID == recipientID && !n.IsRead()
		})
		count = len(unread)
		return err
	})
	return count, err
}
