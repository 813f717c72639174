package httpadapter

import (
	"time"

	"github.com/marmos91/mozaichub/pkg/library"
	"github.com/marmos91/mozaichub/pkg/messaging"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Response shapes. Records are never serialized directly: users carry
// password hashes and files carry internal artifact handles.

type userView struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	DisplayName  string        `json:"display_name"`
	ProfileImage string        `json:"profile_image,omitempty"`
	Role         metadata.Role `json:"role"`
	CreatedAt    time.Time     `json:"created_at"`
}

// accountView is what a user sees of their own account and what admins
// see of every account.
type accountView struct {
	userView
	Email      string    `json:"email"`
	Banned     bool      `json:"banned"`
	QuotaBytes int64     `json:"quota_bytes"`
	UsedBytes  int64     `json:"used_bytes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type fileView struct {
	ID                  string              `json:"id"`
	OwnerID             string              `json:"owner_id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	OriginalName        string              `json:"original_name"`
	MimeType            string              `json:"mime_type"`
	Category            metadata.Category   `json:"category"`
	SizeBytes           int64               `json:"size_bytes"`
	Visibility          metadata.Visibility `json:"visibility"`
	MarkedForDeletion   bool                `json:"marked_for_deletion,omitempty"`
	DeletionScheduledAt *time.Time          `json:"deletion_scheduled_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

type commentView struct {
	ID        string         `json:"id"`
	FileID    string         `json:"file_id"`
	ParentID  string         `json:"parent_id,omitempty"`
	Text      string         `json:"text"`
	HTML      string         `json:"html"`
	Author    *userView      `json:"author,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Replies   []*commentView `json:"replies"`
}

type feedView struct {
	Popular []*fileView `json:"popular"`
	Media   []*fileView `json:"media"`
	Other   []*fileView `json:"other"`
	Friends []*fileView `json:"friends"`
}

type threadView struct {
	ID        string            `json:"id"`
	Peer      *userView         `json:"peer,omitempty"`
	Last      *metadata.Message `json:"last,omitempty"`
	Unread    int               `json:"unread"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type tokenView struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *accountView `json:"user"`
}

func newUserView(u *metadata.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
	}
}

func newAccountView(u *metadata.User) *accountView {
	return &accountView{
		userView:   *newUserView(u),
		Email:      u.Email,
		Banned:     u.Banned,
		QuotaBytes: u.QuotaBytes,
		UsedBytes:  u.UsedBytes,
		UpdatedAt:  u.UpdatedAt,
	}
}

func newUserViews(users []*metadata.User) []*userView {
	out := make([]*userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return out
}

func newAccountViews(users []*metadata.User) []*accountView {
	out := make([]*accountView, 0, len(users))
	for _, u := range users {
		out = append(out, newAccountView(u))
	}
	return out
}

func newFileView(f *metadata.File) *fileView {
	return &fileView{
		ID:                  f.ID,
		OwnerID:             f.OwnerID,
		Title:               f.Title,
		Description:         f.Description,
		OriginalName:        f.OriginalName,
		MimeType:            f.MimeType,
		Category:            f.Category,
		SizeBytes:           f.SizeBytes,
		Visibility:          f.Visibility,
		MarkedForDeletion:   f.MarkedForDeletion,
		DeletionScheduledAt: f.DeletionScheduledAt,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

func newFileViews(files []*metadata.File) []*fileView {
	out := make([]*fileView, 0, len(files))
	for _, f := range files {
		out = append(out, newFileView(f))
	}
	return out
}

func newCommentViews(nodes []*library.CommentNode) []*commentView {
	out := make([]*commentView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &commentView{
			ID:        n.ID,
			FileID:    n.FileID,
			ParentID:  n.ParentID,
			Text:      n.Text,
			HTML:      n.HTML,
			Author:    newUserView(n.Author),
			CreatedAt: n.CreatedAt,
			Replies:   newCommentViews(n.Replies),
		})
	}
	return out
}

func newFeedView(f *library.Feed) *feedView {
	return &feedView{
		Popular: newFileViews(f.Popular),
		Media:   newFileViews(f.Media),
		Other:   newFileViews(f.Other),
		Friends: newFileViews(f.Friends),
	}
}

func newThreadViews(summaries []*messaging.ThreadSummary) []*threadView {
	out := make([]*threadView, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, &threadView{
			ID:        s.Thread.ID,
			Peer:      newUserView(s.Peer),
			Last:      s.Last,
			Unread:    s.Unread,
			UpdatedAt: s.Thread.UpdatedAt,
		})
	}
	return out
}
