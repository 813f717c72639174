package memory

import (
	"context"
	"sort"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func cloneMessage(m *metadata.Message) *metadata.Message {
	cp := *m
	if m.ReadAt != nil {
		at := *m.ReadAt
		cp.ReadAt = &at
	}
	return &cp
}

func cloneNotification(n *metadata.Notification) *metadata.Notification {
	cp := *n
	if n.ReadAt != nil {
		at := *n.ReadAt
		cp.ReadAt = &at
	}
	return &cp
}

func (s *MemoryMetadataStore) GetOrCreateThread(ctx context.Context, pair metadata.Pair, now time.Time) (*metadata.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair = metadata.NewPair(pair.Low, pair.High)
	if id, ok := s.threadByPair[pair]; ok {
		cp := *s.threads[id]
		return &cp, nil
	}

	t := &metadata.Thread{
		ID:        newID(""),
		Pair:      pair,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.threads[t.ID] = t
	s.threadByPair[pair] = t.ID

	cp := *t
	return &cp, nil
}

func (s *MemoryMetadataStore) FindThread(ctx context.Context, pair metadata.Pair) (*metadata.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pair = metadata.NewPair(pair.Low, pair.High)
	id, ok := s.threadByPair[pair]
	if !ok {
		return nil, metadata.NewNotFoundError("thread", pair.Key())
	}
	cp := *s.threads[id]
	return &cp, nil
}

func (s *MemoryMetadataStore) GetThread(ctx context.Context, id string) (*metadata.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, metadata.NewNotFoundError("thread", id)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryMetadataStore) ListThreads(ctx context.Context, userID string) ([]*metadata.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Thread
	for _, t := range s.threads {
		if t.Pair.Contains(userID) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryMetadataStore) CreateMessage(ctx context.Context, msg *metadata.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[msg.ThreadID]
	if !ok {
		return metadata.NewNotFoundError("thread", msg.ThreadID)
	}

	msg.ID = newID(msg.ID)
	s.messages[t.ID] = append(s.messages[t.ID], cloneMessage(msg))
	if msg.CreatedAt.After(t.UpdatedAt) {
		t.UpdatedAt = msg.CreatedAt
	}
	return nil
}

func (s *MemoryMetadataStore) ListMessages(ctx context.Context, threadID string) ([]*metadata.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[threadID]
	out := make([]*metadata.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, cloneMessage(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryMetadataStore) MarkMessagesRead(ctx context.Context, threadID, recipientID string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.messages[threadID] {
		if m.ToID == recipientID && m.ReadAt == nil {
			readAt := at
			m.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (s *MemoryMetadataStore) CreateNotifications(ctx context.Context, notifications []*metadata.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range notifications {
		n.ID = newID(n.ID)
		s.notifications[n.ID] = cloneNotification(n)
	}
	return nil
}

func (s *MemoryMetadataStore) GetNotification(ctx context.Context, id string) (*metadata.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, metadata.NewNotFoundError("notification", id)
	}
	return cloneNotification(n), nil
}

func (s *MemoryMetadataStore) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*metadata.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Notification
	for _, n := range s.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead()) {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryMetadataStore) MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID || n.IsRead() {
		return false, nil
	}
	readAt := at
	n.ReadAt = &readAt
	return true, nil
}

func (s *MemoryMetadataStore) MarkAllNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead() {
			readAt := at
			n.ReadAt = &readAt
			count++
		}
	}
	return count, nil
}

func (s *MemoryMetadataStore) DeleteReadNotifications(ctx context.Context, recipientID string, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, id := range ids {
		n, ok := s.notifications[id]
		if !ok || n.RecipientID != recipientID || !n.IsRead() {
			continue
		}
		delete(s.notifications, id)
		count++
	}
	return count, nil
}

func (s *MemoryMetadataStore) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead() {
			count++
		}
	}
	return count, nil
}
