package library

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// FileUpdate replaces the editable fields of a file. An empty Visibility
// keeps the current one.
type FileUpdate struct {
	Title            string
	Description      string
	Visibility       string
	AllowedUsernames []string
}

// Update edits a file. Owners and admins only. The allowlist is replaced
// for private files and cleared otherwise.
func (s *Service) Update(ctx context.Context, actor access.Viewer, id string, upd FileUpdate) (*metadata.File, error) {
	f, err := s.access.AuthorizeModify(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(upd.Title)
	if title == "" {
		return nil, metadata.NewValidationError("file", "title is required")
	}
	visibility := f.Visibility
	if upd.Visibility != "" {
		if visibility, err = metadata.ParseVisibility(upd.Visibility); err != nil {
			return nil, err
		}
	}

	f.Title = title
	f.Description = strings.TrimSpace(upd.Description)
	f.Visibility = visibility
	f.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateFile(ctx, f); err != nil {
		return nil, err
	}

	var allowed []string
	if visibility == metadata.VisibilityPrivate {
		allowed = upd.AllowedUsernames
	}
	if _, err := s.replaceGrants(ctx, f, allowed); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes a file now. Owners and admins only. The artifact is
// removed best effort; the record, its comments and grants and the
// owner's usage go in one step.
func (s *Service) Delete(ctx context.Context, actor access.Viewer, id string) (gc.ItemResult, error) {
	f, err := s.access.AuthorizeModify(ctx, actor, id)
	if err != nil {
		return gc.ItemResult{FileID: id}, err
	}

	result := s.sweeper.Remove(ctx, f)
	if result.Err != nil {
		return result, result.Err
	}

	logger.Info("File %s deleted by %s (artifact %s)", f.ID, actor.ID, result.Artifact.Outcome)
	return result, nil
}

// Get returns a file v may view. Invisible files are reported as not
// found.
func (s *Service) Get(ctx context.Context, v access.Viewer, id string) (*metadata.File, error) {
	return s.access.Authorize(ctx, v, id)
}

// Open returns a file v may view together with a reader over its bytes.
// The caller closes the reader.
func (s *Service) Open(ctx context.Context, v access.Viewer, id string) (*metadata.File, io.ReadCloser, error) {
	f, err := s.access.Authorize(ctx, v, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.content.ReadContent(ctx, f.ContentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact of %s: %w", f.ID, err)
	}
	return f, rc, nil
}

// Search lists files v may see whose title contains text, newest first.
func (s *Service) Search(ctx context.Context, v access.Viewer, text string, limit int) ([]*metadata.File, error) {
	q, err := s.access.ListingScope(ctx, v)
	if err != nil {
		return nil, err
	}
	q.TitleContains = strings.TrimSpace(text)
	q.Limit = limit
	return s.store.FindFiles(ctx, q)
}

// Mine lists v's own files that are still servable.
func (s *Service) Mine(ctx context.Context, v access.Viewer) ([]*metadata.File, error) {
	now := s.clock.Now()
	return s.store.FindFiles(ctx, metadata.FileQuery{OwnerID: v.ID, HideDueAt: &now})
}

// Feed is the dashboard.
type Feed struct {
	Popular []*metadata.File `json:"popular"`
	Media   []*metadata.File `json:"media"`
	Other   []*metadata.File `json:"other"`
	Friends []*metadata.File `json:"friends"`
}

// Feed builds the dashboard sections for v: latest files, latest images
// and videos, latest of everything else, and latest uploads by friends.
func (s *Service) Feed(ctx context.Context, v access.Viewer) (*Feed, error) {
	base, err := s.access.ListingScope(ctx, v)
	if err != nil {
		return nil, err
	}
	media := []metadata.Category{metadata.CategoryImage, metadata.CategoryVideo}

	feed := &Feed{Friends: []*metadata.File{}}

	q := base
	q.Limit = FeedPopular
	if feed.Popular, err = s.store.FindFiles(ctx, q); err != nil {
		return nil, err
	}

	q = base
	q.Categories = media
	q.Limit = FeedMedia
	if feed.Media, err = s.store.FindFiles(ctx, q); err != nil {
		return nil, err
	}

	q = base
	q.ExcludeCategories = media
	q.Limit = FeedOther
	if feed.Other, err = s.store.FindFiles(ctx, q); err != nil {
		return nil, err
	}

	friends, err := s.graph.VisibleFriendIDs(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	if len(friends) > 0 {
		q = base
		q.OwnerIn = friends
		q.Limit = FeedFriends
		if feed.Friends, err = s.store.FindFiles(ctx, q); err != nil {
			return nil, err
		}
	}
	return feed, nil
}

// ProfileFiles lists the files shown on username's profile to v.
func (s *Service) ProfileFiles(ctx context.Context, v access.Viewer, username string) (*metadata.User, []*metadata.File, error) {
	owner, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, err
	}

	q, err := s.access.ProfileScope(ctx, v, owner.ID)
	if err != nil {
		return nil, nil, err
	}
	files, err := s.store.FindFiles(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	return owner, files, nil
}

// AllFiles lists every file, including those pending deletion. Admin only.
func (s *Service) AllFiles(ctx context.Context, actor access.Viewer) ([]*metadata.File, error) {
	if !actor.IsAdmin() {
		return nil, metadata.NewForbiddenError("file", "administrator role required")
	}
	return s.store.FindFiles(ctx, metadata.FileQuery{})
}

// Grants returns the users on a file's allowlist. Owners and admins only.
func (s *Service) Grants(ctx context.Context, actor access.Viewer, id string) ([]*metadata.User, error) {
	f, err := s.access.AuthorizeModify(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.ListGrants(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	users := make([]*metadata.User, 0, len(ids))
	for _, uid := range ids {
		u, err := s.store.GetUser(ctx, uid)
		if metadata.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}
