// Package messaging implements direct messages between two users. Each
// unordered pair of users has exactly one thread.
package messaging

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/notify"
	"github.com/marmos91/mozaichub/pkg/social"
)

// MaxMessageLength is the longest accepted message, in characters.
const MaxMessageLength = 5000

// Service sends and lists direct messages.
type Service struct {
	store  metadata.Store
	graph  *social.Graph
	notify *notify.Service
	clock  clockwork.Clock
}

// NewService creates a messaging service.
func NewService(store metadata.Store, graph *social.Graph, n *notify.Service, c clockwork.Clock) *Service {
	return &Service{store: store, graph: graph, notify: n, clock: c}
}

// Send delivers a message from actorID to peerID and notifies the peer.
// Messaging yourself or someone you share a block with is refused.
func (s *Service) Send(ctx context.Context, actorID, peerID, text string) (*metadata.Message, error) {
	if actorID == peerID {
		return nil, metadata.NewError(metadata.ErrSelfReference, "message", "cannot message yourself")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, metadata.NewValidationError("message", "message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, metadata.NewValidationError("message", "message exceeds %d characters", MaxMessageLength)
	}

	sender, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, peerID); err != nil {
		return nil, err
	}

	blocked, err := s.graph.AreBlocked(ctx, actorID, peerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, metadata.NewError(metadata.ErrBlocked, "message", "a block exists between the users")
	}

	now := s.clock.Now()
	thread, err := s.store.GetOrCreateThread(ctx, metadata.NewPair(actorID, peerID), now)
	if err != nil {
		return nil, fmt.Errorf("failed to open thread: %w", err)
	}

	msg := &metadata.Message{
		ThreadID:  thread.ID,
		FromID:    actorID,
		ToID:      peerID,
		Text:      text,
		CreatedAt: now,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if _, err := s.notify.Message(ctx, sender, peerID); err != nil {
		logger.Warn("Failed to notify %s of message %s: %v", peerID, msg.ID, err)
	}
	return msg, nil
}

// ThreadSummary is one entry of the inbox.
type ThreadSummary struct {
	Thread *metadata.Thread  `json:"thread"`
	Peer   *metadata.User    `json:"peer,omitempty"`
	Last   *metadata.Message `json:"last,omitempty"`
	Unread int               `json:"unread"`
}

// Threads lists actorID's conversations, most recently active first.
func (s *Service) Threads(ctx context.Context, actorID string) ([]*ThreadSummary, error) {
	threads, err := s.store.ListThreads(ctx, actorID)
	if err != nil {
		return nil, err
	}

	out := make([]*ThreadSummary, 0, len(threads))
	for _, t := range threads {
		sum := &ThreadSummary{Thread: t}

		peer, err := s.store.GetUser(ctx, t.Pair.Other(actorID))
		switch {
		case err == nil:
			sum.Peer = peer
		case !metadata.IsNotFound(err):
			return nil, err
		}

		msgs, err := s.store.ListMessages(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			sum.Last = msgs[len(msgs)-1]
		}
		for _, m := range msgs {
			if m.ToID == actorID && m.ReadAt == nil {
				sum.Unread++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// Conversation returns the thread between actorID and peerID with its
// messages, oldest first, and marks the messages addressed to actorID
// read. Reading never creates a thread: when the pair has not exchanged
// messages yet the thread is nil and the message list empty.
func (s *Service) Conversation(ctx context.Context, actorID, peerID string) (*metadata.Thread, []*metadata.Message, error) {
	if actorID == peerID {
		return nil, nil, metadata.NewError(metadata.ErrSelfReference, "message", "no conversation with yourself")
	}
	if _, err := s.store.GetUser(ctx, peerID); err != nil {
		return nil, nil, err
	}

	thread, err := s.store.FindThread(ctx, metadata.NewPair(actorID, peerID))
	if metadata.IsNotFound(err) {
		return nil, []*metadata.Message{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open thread: %w", err)
	}

	if _, err := s.store.MarkMessagesRead(ctx, thread.ID, actorID, s.clock.Now()); err != nil {
		return nil, nil, err
	}

	msgs, err := s.store.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, nil, err
	}
	return thread, msgs, nil
}
