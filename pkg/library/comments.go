package library

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// CommentNode is a rendered comment with its direct replies.
type CommentNode struct {
	*metadata.Comment
	Author  *metadata.User `json:"author,omitempty"`
	HTML    string         `json:"html"`
	Replies []*CommentNode `json:"replies"`
}

// AddComment posts a comment on a file actor may view. parentID, when set,
// must name a comment on the same file; replies to replies attach to the
// top-level comment so threads stay one level deep.
//
// The file owner is notified unless they wrote the comment. Mentioned
// users are notified when they may view the file and share no block with
// the author.
func (s *Service) AddComment(ctx context.Context, actor access.Viewer, fileID, text, parentID string) (*metadata.Comment, error) {
	f, err := s.access.Authorize(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, metadata.NewValidationError("comment", "comment cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, metadata.NewValidationError("comment", "comment exceeds %d characters", MaxCommentLength)
	}

	if parentID != "" {
		parent, err := s.store.GetComment(ctx, parentID)
		if err != nil && !metadata.IsNotFound(err) {
			return nil, err
		}
		if err != nil || parent.FileID != f.ID {
			return nil, metadata.NewValidationError("comment", "parent comment %s is not on this file", parentID)
		}
		if parent.ParentID != "" {
			parentID = parent.ParentID
		}
	}

	author, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	c := &metadata.Comment{
		FileID:    f.ID,
		AuthorID:  author.ID,
		ParentID:  parentID,
		Text:      text,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, err
	}

	s.announceComment(ctx, author, f, text)
	return c, nil
}

func (s *Service) announceComment(ctx context.Context, author *metadata.User, f *metadata.File, text string) {
	// NotifyMany drops the owner when they are the author.
	if _, err := s.notify.Comment(ctx, author, f); err != nil {
		logger.Warn("Failed to notify owner of %s: %v", f.ID, err)
	}

	mentions := s.renderer.Mentions(text)
	if len(mentions) == 0 {
		return
	}

	hidden, err := s.graph.HiddenOwners(ctx, author.ID)
	if err != nil {
		logger.Warn("Failed to load blocks of %s: %v", author.ID, err)
		return
	}
	isHidden := func(id string) bool { return slices.Contains(hidden, id) }
	allow := func(u *metadata.User) bool {
		if isHidden(u.ID) {
			return false
		}
		ok, err := s.access.CanView(ctx, access.ViewerOf(u), f)
		return err == nil && ok
	}
	if _, err := s.notify.Mentions(ctx, author, f, mentions, allow); err != nil {
		logger.Warn("Failed to notify mentions on %s: %v", f.ID, err)
	}
}

// DeleteComment removes a comment. The author, the file owner and admins
// may delete it. Replies are kept and shown at top level.
func (s *Service) DeleteComment(ctx context.Context, actor access.Viewer, commentID string) error {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}

	if c.AuthorID != actor.ID && !actor.IsAdmin() {
		f, err := s.store.GetFile(ctx, c.FileID)
		if err != nil && !metadata.IsNotFound(err) {
			return err
		}
		if f == nil || f.OwnerID != actor.ID {
			return metadata.NewForbiddenError("comment", "%s may not delete comment %s", actor.ID, commentID)
		}
	}
	return s.store.DeleteComment(ctx, commentID)
}

// Comments returns the comment tree of a file v may view, oldest first at
// each level. Replies whose parent is gone are promoted to top level.
func (s *Service) Comments(ctx context.Context, v access.Viewer, fileID string) ([]*CommentNode, error) {
	f, err := s.access.Authorize(ctx, v, fileID)
	if err != nil {
		return nil, err
	}

	comments, err := s.store.ListComments(ctx, f.ID)
	if err != nil {
		return nil, err
	}

	authors := make(map[string]*metadata.User)
	nodes := make(map[string]*CommentNode, len(comments))
	for _, c := range comments {
		author, ok := authors[c.AuthorID]
		if !ok {
			author, err = s.store.GetUser(ctx, c.AuthorID)
			if err != nil && !metadata.IsNotFound(err) {
				return nil, err
			}
			authors[c.AuthorID] = author
		}
		nodes[c.ID] = &CommentNode{
			Comment: c,
			Author:  author,
			HTML:    s.renderer.Render(c.Text),
			Replies: []*CommentNode{},
		}
	}

	roots := make([]*CommentNode, 0, len(comments))
	for _, c := range comments {
		node := nodes[c.ID]
		if parent, ok := nodes[c.ParentID]; ok && c.ParentID != "" {
			parent.Replies = append(parent.Replies, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots, nil
}
