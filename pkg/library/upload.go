package library

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/content"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// UploadRequest describes a new file.
type UploadRequest struct {
	Title        string
	Description  string
	OriginalName string
	MimeType     string
	Visibility   string

	// AllowedUsernames are granted access when the file is private
	AllowedUsernames []string

	// Size is the declared size, or -1 when unknown. A declared size lets
	// oversize and over-quota uploads fail before any byte is stored.
	Size int64

	Body io.Reader
}

// Upload stores a new file owned by actor.
//
// The sequence is: check the quota against the declared size, write the
// artifact under a fresh content ID, reserve the written size, create the
// record and its grants, then tell the owner's friends. Any failure after
// the artifact is written removes it again and releases what was reserved.
func (s *Service) Upload(ctx context.Context, actor access.Viewer, req UploadRequest) (*metadata.File, error) {
	// Step 1: validate input
	req.OriginalName = strings.TrimSpace(req.OriginalName)
	if req.OriginalName == "" || req.Body == nil {
		return nil, metadata.NewValidationError("file", "no file uploaded")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = req.OriginalName
	}
	visibility, err := metadata.ParseVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	if req.Size > s.config.MaxUploadSize {
		return nil, tooLarge(s.config.MaxUploadSize)
	}

	owner, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	// Step 2: prospective quota check
	if req.Size > 0 {
		if _, err := s.quota.Check(ctx, owner.ID, req.Size); err != nil {
			return nil, err
		}
	}

	// Step 3: store the artifact, one byte past the limit to detect oversize
	contentID := uuid.NewString()
	written, err := s.content.WriteContent(ctx, contentID, io.LimitReader(req.Body, s.config.MaxUploadSize+1))
	if err != nil {
		s.discard(ctx, contentID)
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if written > s.config.MaxUploadSize {
		s.discard(ctx, contentID)
		return nil, tooLarge(s.config.MaxUploadSize)
	}

	// Step 4: reserve the real size
	if _, err := s.quota.Reserve(ctx, owner.ID, written); err != nil {
		s.discard(ctx, contentID)
		return nil, err
	}

	// Step 5: record
	now := s.clock.Now()
	f := &metadata.File{
		OwnerID:      owner.ID,
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		OriginalName: req.OriginalName,
		ContentID:    contentID,
		MimeType:     req.MimeType,
		Category:     Categorize(req.OriginalName, req.MimeType),
		SizeBytes:    written,
		Visibility:   visibility,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		s.rollback(ctx, owner.ID, written, contentID)
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	if visibility == metadata.VisibilityPrivate && len(req.AllowedUsernames) > 0 {
		if _, err = s.replaceGrants(ctx, f, req.AllowedUsernames); err != nil {
			if _, rmErr := s.store.RemoveFile(ctx, f.ID); rmErr != nil {
				logger.Error("Failed to remove record of aborted upload %s: %v", f.ID, rmErr)
			}
			s.discard(ctx, contentID)
			return nil, err
		}
	}

	logger.Info("User %s uploaded %s (%q, %d bytes, %s)", owner.Username, f.ID, f.Title, f.SizeBytes, f.Visibility)

	// Step 6: friend fan-out, best effort
	s.announceUpload(ctx, owner, f)
	return f, nil
}

func tooLarge(limit int64) error {
	return metadata.NewValidationError("file", "file too large, max size is %dMB", limit>>20)
}

// announceUpload notifies every current friend of the uploader, whatever
// the file's visibility. A friend without a grant gets the notification
// but the file stays hidden from them.
func (s *Service) announceUpload(ctx context.Context, owner *metadata.User, f *metadata.File) {
	friends, err := s.graph.VisibleFriendIDs(ctx, owner.ID)
	if err != nil {
		logger.Warn("Failed to list friends of %s for upload %s: %v", owner.ID, f.ID, err)
		return
	}
	if len(friends) == 0 {
		return
	}
	if _, err := s.notify.FriendUpload(ctx, owner, f, friends); err != nil {
		logger.Warn("Failed to notify friends of upload %s: %v", f.ID, err)
	}
}

// replaceGrants resolves usernames and sets them as the file's allowlist.
// Unknown usernames and the owner are skipped. It returns the granted IDs.
func (s *Service) replaceGrants(ctx context.Context, f *metadata.File, usernames []string) ([]string, error) {
	names := make([]string, 0, len(usernames))
	for _, n := range usernames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	var ids []string
	if len(names) > 0 {
		users, err := s.store.GetUsersByUsernames(ctx, names)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve allowed users: %w", err)
		}
		for _, u := range users {
			if u.ID != f.OwnerID && !slices.Contains(ids, u.ID) {
				ids = append(ids, u.ID)
			}
		}
	}

	if err := s.store.ReplaceGrants(ctx, f.ID, ids); err != nil {
		return nil, fmt.Errorf("failed to set grants: %w", err)
	}
	return ids, nil
}

// discard removes an artifact written by an upload that did not complete.
func (s *Service) discard(ctx context.Context, contentID string) {
	if r := content.Remove(ctx, s.content, contentID); r.Outcome == content.RemovalFailed {
		logger.Warn("Failed to discard artifact %s of aborted upload: %v", contentID, r.Err)
	}
}

func (s *Service) rollback(ctx context.Context, ownerID string, reserved int64, contentID string) {
	if _, err := s.quota.Release(ctx, ownerID, reserved); err != nil {
		logger.Error("Failed to release %d bytes for %s: %v", reserved, ownerID, err)
	}
	s.discard(ctx, contentID)
}
