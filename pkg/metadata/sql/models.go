package sql

import (
	"strings"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Table rows. Timestamps are owned by the services (injected clock), so
// gorm's automatic CreatedAt/UpdatedAt handling is switched off everywhere.
// Lower-cased *Key columns back the case-insensitive unique constraints.

type userRow struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Username     string    `gorm:"not null"`
	UsernameKey  string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"not null;default:''"`
	EmailKey     *string   `gorm:"uniqueIndex"`
	DisplayName  string    `gorm:"not null;default:''"`
	PasswordHash string    `gorm:"not null;default:''"`
	ProfileImage string    `gorm:"not null;default:''"`
	Role         string    `gorm:"size:16;not null"`
	Banned       bool      `gorm:"index;not null;default:false"`
	QuotaBytes   int64     `gorm:"not null;default:0"`
	UsedBytes    int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (userRow) TableName() string { return "users" }

func newUserRow(u *metadata.User) *userRow {
	row := &userRow{
		ID:           u.ID,
		Username:     u.Username,
		UsernameKey:  strings.ToLower(u.Username),
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		ProfileImage: u.ProfileImage,
		Role:         string(u.Role),
		Banned:       u.Banned,
		QuotaBytes:   u.QuotaBytes,
		UsedBytes:    u.UsedBytes,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
	if u.Email != "" {
		key := strings.ToLower(u.Email)
		row.EmailKey = &key
	}
	return row
}

func (r *userRow) toUser() *metadata.User {
	return &metadata.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		ProfileImage: r.ProfileImage,
		Role:         metadata.Role(r.Role),
		Banned:       r.Banned,
		QuotaBytes:   r.QuotaBytes,
		UsedBytes:    r.UsedBytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type graylistRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Username    string
	UsernameKey string `gorm:"index"`
	Email       string
	EmailKey    string `gorm:"index"`
	Reason      string
	BannedAt    time.Time
}

func (graylistRow) TableName() string { return "graylist" }

func newGraylistRow(e *metadata.GraylistEntry) *graylistRow {
	return &graylistRow{
		ID:          e.ID,
		Username:    e.Username,
		UsernameKey: strings.ToLower(e.Username),
		Email:       e.Email,
		EmailKey:    strings.ToLower(e.Email),
		Reason:      e.Reason,
		BannedAt:    e.BannedAt.UTC(),
	}
}

func (r *graylistRow) toEntry() *metadata.GraylistEntry {
	return &metadata.GraylistEntry{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
		Reason:   r.Reason,
		BannedAt: r.BannedAt.UTC(),
	}
}

type fileRow struct {
	ID                  string `gorm:"primaryKey;size:36"`
	OwnerID             string `gorm:"index;not null"`
	Title               string `gorm:"not null"`
	Description         string
	OriginalName        string
	ContentID           string
	MimeType            string
	Category            string `gorm:"index;size:16"`
	SizeBytes           int64
	Visibility          string `gorm:"index;size:16"`
	MarkedForDeletion   bool   `gorm:"index"`
	DeletionScheduledAt *time.Time
	CreatedAt           time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime:false"`
}

func (fileRow) TableName() string { return "files" }

func newFileRow(f *metadata.File) *fileRow {
	return &fileRow{
		ID:                  f.ID,
		OwnerID:             f.OwnerID,
		Title:               f.Title,
		Description:         f.Description,
		OriginalName:        f.OriginalName,
		ContentID:           f.ContentID,
		MimeType:            f.MimeType,
		Category:            string(f.Category),
		SizeBytes:           f.SizeBytes,
		Visibility:          string(f.Visibility),
		MarkedForDeletion:   f.MarkedForDeletion,
		DeletionScheduledAt: utcPtr(f.DeletionScheduledAt),
		CreatedAt:           f.CreatedAt.UTC(),
		UpdatedAt:           f.UpdatedAt.UTC(),
	}
}

func (r *fileRow) toFile() *metadata.File {
	return &metadata.File{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		Title:               r.Title,
		Description:         r.Description,
		OriginalName:        r.OriginalName,
		ContentID:           r.ContentID,
		MimeType:            r.MimeType,
		Category:            metadata.Category(r.Category),
		SizeBytes:           r.SizeBytes,
		Visibility:          metadata.Visibility(r.Visibility),
		MarkedForDeletion:   r.MarkedForDeletion,
		DeletionScheduledAt: utcPtr(r.DeletionScheduledAt),
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
}

type grantRow struct {
	FileID string `gorm:"primaryKey;size:36"`
	UserID string `gorm:"primaryKey;size:36;index"`
}

func (grantRow) TableName() string { return "grants" }

type commentRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	FileID    string `gorm:"index;not null"`
	AuthorID  string `gorm:"not null"`
	ParentID  string
	Text      string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (commentRow) TableName() string { return "comments" }

func newCommentRow(c *metadata.Comment) *commentRow {
	return &commentRow{
		ID:        c.ID,
		FileID:    c.FileID,
		AuthorID:  c.AuthorID,
		ParentID:  c.ParentID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func (r *commentRow) toComment() *metadata.Comment {
	return &metadata.Comment{
		ID:        r.ID,
		FileID:    r.FileID,
		AuthorID:  r.AuthorID,
		ParentID:  r.ParentID,
		Text:      r.Text,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type requestRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	FromID    string    `gorm:"index;not null"`
	ToID      string    `gorm:"index;not null"`
	Status    string    `gorm:"size:16;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (requestRow) TableName() string { return "friend_requests" }

func (r *requestRow) toRequest() *metadata.FriendRequest {
	return &metadata.FriendRequest{
		ID:        r.ID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Status:    metadata.RequestStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type friendshipRow struct {
	LowID     string    `gorm:"primaryKey;size:36"`
	HighID    string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (friendshipRow) TableName() string { return "friendships" }

func (r *friendshipRow) toFriendship() *metadata.Friendship {
	return &metadata.Friendship{
		Pair:      metadata.Pair{Low: r.LowID, High: r.HighID},
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type blockRow struct {
	BlockerID string    `gorm:"primaryKey;size:36"`
	BlockedID string    `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (blockRow) TableName() string { return "blocks" }

func (r *blockRow) toBlock() *metadata.Block {
	return &metadata.Block{BlockerID: r.BlockerID, BlockedID: r.BlockedID, CreatedAt: r.CreatedAt.UTC()}
}

type threadRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	LowID     string    `gorm:"uniqueIndex:idx_thread_pair;not null"`
	HighID    string    `gorm:"uniqueIndex:idx_thread_pair;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (threadRow) TableName() string { return "threads" }

func (r *threadRow) toThread() *metadata.Thread {
	return &metadata.Thread{
		ID:        r.ID,
		Pair:      metadata.Pair{Low: r.LowID, High: r.HighID},
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type messageRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	ThreadID  string `gorm:"index;not null"`
	FromID    string `gorm:"not null"`
	ToID      string `gorm:"not null"`
	Text      string
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
}

func (messageRow) TableName() string { return "messages" }

func (r *messageRow) toMessage() *metadata.Message {
	return &metadata.Message{
		ID:        r.ID,
		ThreadID:  r.ThreadID,
		FromID:    r.FromID,
		ToID:      r.ToID,
		Text:      r.Text,
		ReadAt:    utcPtr(r.ReadAt),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type notificationRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	RecipientID string `gorm:"index;not null"`
	Kind        string `gorm:"size:32;not null"`
	Message     string
	Link        string
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
}

func (notificationRow) TableName() string { return "notifications" }

func newNotificationRow(n *metadata.Notification) *notificationRow {
	return &notificationRow{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Kind:        string(n.Kind),
		Message:     n.Message,
		Link:        n.Link,
		ReadAt:      utcPtr(n.ReadAt),
		CreatedAt:   n.CreatedAt.UTC(),
	}
}

func (r *notificationRow) toNotification() *metadata.Notification {
	return &metadata.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Kind:        metadata.NotificationKind(r.Kind),
		Message:     r.Message,
		Link:        r.Link,
		ReadAt:      utcPtr(r.ReadAt),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// allModels lists every table for AutoMigrate.
var allModels = []any{
	&userRow{},
	&graylistRow{},
	&fileRow{},
	&grantRow{},
	&commentRow{},
	&requestRow{},
	&friendshipRow{},
	&blockRow{},
	&threadRow{},
	&messageRow{},
	&notificationRow{},
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
