package metadata

import (
	"strings"
	"time"
)

// Role is the account role of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Visibility is the per-file access tier.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// ParseVisibility normalizes and validates a visibility name.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return v, nil
	case "":
		return VisibilityPrivate, nil
	default:
		return "", NewValidationError("visibility", "invalid visibility %q", s)
	}
}

// Category groups files by media type.
type Category string

const (
	CategoryAudio Category = "audio"
	CategoryVideo Category = "video"
	CategoryImage Category = "image"
	CategoryPDF   Category = "pdf"
	CategoryOther Category = "other"
)

// RequestStatus is the lifecycle state of a friend request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// NotificationKind identifies the event that produced a notification.
type NotificationKind string

const (
	KindFriendUpload NotificationKind = "friend-upload"
	KindComment      NotificationKind = "comment"
	KindMention      NotificationKind = "mention"
	KindMessage      NotificationKind = "message"
)

// User is an account.
//
// UsedBytes is only checked against QuotaBytes when storage is reserved, so
// it may drift from the sum of the sizes of owned files.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"password_hash"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Role         Role      `json:"role"`
	Banned       bool      `json:"banned"`
	QuotaBytes   int64     `json:"quota_bytes"`
	UsedBytes    int64     `json:"used_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// GraylistEntry records a banned identity so that reuse can be flagged.
type GraylistEntry struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Reason   string    `json:"reason"`
	BannedAt time.Time `json:"banned_at"`
}

// File is an uploaded resource. ContentID is the artifact handle in the
// content store.
type File struct {
	ID                  string     `json:"id"`
	OwnerID             string     `json:"owner_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	OriginalName        string     `json:"original_name"`
	ContentID           string     `json:"content_id"`
	MimeType            string     `json:"mime_type"`
	Category            Category   `json:"category"`
	SizeBytes           int64      `json:"size_bytes"`
	Visibility          Visibility `json:"visibility"`
	MarkedForDeletion   bool       `json:"marked_for_deletion"`
	DeletionScheduledAt *time.Time `json:"deletion_scheduled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DueForDeletion reports whether the file is marked and its scheduled time
// is at or before now.
func (f *File) DueForDeletion(now time.Time) bool {
	if !f.MarkedForDeletion || f.DeletionScheduledAt == nil {
		return false
	}
	return !f.DeletionScheduledAt.After(now)
}

// Grant is an allowlist entry for a private file.
type Grant struct {
	FileID string `json:"file_id"`
	UserID string `json:"user_id"`
}

// Comment is a note left on a file. ParentID is empty for top-level comments.
type Comment struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	AuthorID  string    `json:"author_id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequest is a directed invitation from FromID to ToID.
type FriendRequest struct {
	ID        string        `json:"id"`
	FromID    string        `json:"from_id"`
	ToID      string        `json:"to_id"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Friendship is a symmetric relation stored under its canonical pair.
type Friendship struct {
	Pair      Pair      `json:"pair"`
	CreatedAt time.Time `json:"created_at"`
}

// Block is a directed relation: BlockerID blocks BlockedID.
type Block struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Involves reports whether id is either side of the block.
func (b *Block) Involves(id string) bool {
	return b.BlockerID == id || b.BlockedID == id
}

// Thread is a direct message conversation between two users.
type Thread struct {
	ID        string    `json:"id"`
	Pair      Pair      `json:"pair"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single direct message.
type Message struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	FromID    string     `json:"from_id"`
	ToID      string     `json:"to_id"`
	Text      string     `json:"text"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notification is an event addressed to a single recipient.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Kind        NotificationKind `json:"kind"`
	Message     string           `json:"message"`
	Link        string           `json:"link"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IsRead reports whether the notification has been read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
