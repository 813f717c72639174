package notify

import (
	"context"
	"fmt"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

// FileLink returns the canonical link to a file page.
func FileLink(fileID string) string {
	return "/files/" + fileID
}

// ThreadLink returns the canonical link to a conversation with peerID.
func ThreadLink(peerID string) string {
	return "/messages/" + peerID
}

// FriendUpload tells the uploader's friends about a new file. friendIDs is
// computed by the caller at upload time.
func (s *Service) FriendUpload(ctx context.Context, uploader *metadata.User, file *metadata.File, friendIDs []string) ([]*metadata.Notification, error) {
	msg := fmt.Sprintf("%s uploaded %q", uploader.Name(), file.Title)
	return s.NotifyMany(ctx, uploader.ID, friendIDs, metadata.KindFriendUpload, msg, FileLink(file.ID))
}

// Comment tells the file owner about a new comment, unless the owner wrote
// it.
func (s *Service) Comment(ctx context.Context, commenter *metadata.User, file *metadata.File) ([]*metadata.Notification, error) {
	msg := fmt.Sprintf("%s commented on %q", commenter.Name(), file.Title)
	return s.NotifyMany(ctx, commenter.ID, []string{file.OwnerID}, metadata.KindComment, msg, FileLink(file.ID))
}

// Mentions notifies every mentioned username that resolves to a user,
// except the author. allow, when set, filters the resolved users (e.g. to
// those who can see the file and share no block with the author).
func (s *Service) Mentions(ctx context.Context, author *metadata.User, file *metadata.File, usernames []string, allow func(*metadata.User) bool) ([]*metadata.Notification, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	users, err := s.store.GetUsersByUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}

	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if allow != nil && !allow(u) {
			continue
		}
		recipients = append(recipients, u.ID)
	}

	msg := fmt.Sprintf("%s mentioned you on %q", author.Name(), file.Title)
	return s.NotifyMany(ctx, author.ID, recipients, metadata.KindMention, msg, FileLink(file.ID))
}

// Message tells recipientID about a new direct message.
func (s *Service) Message(ctx context.Context, sender *metadata.User, recipientID string) ([]*metadata.Notification, error) {
	msg := fmt.Sprintf("%s sent you a message", sender.Name())
	return s.NotifyMany(ctx, sender.ID, []string{recipientID}, metadata.KindMessage, msg, ThreadLink(sender.ID))
}
