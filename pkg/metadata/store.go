package metadata

import (
	"context"
	"time"
)

// Store is the persistence interface for every record except artifact bytes.
//
// Implementations assign IDs when the ID field of a new record is empty and
// return *Error values with ErrNotFound / ErrAlreadyExists for the
// corresponding conditions. All other failures are infrastructure errors.
//
// Listing methods return newest-first order unless noted otherwise.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Read-modify-write
// sequences spanning several calls are not isolated; only RemoveFile is
// required to be atomic.
type Store interface {
	// ========================================================================
	// Users
	// ========================================================================

	// CreateUser stores a new user. Usernames and emails are unique
	// (case-insensitive).
	CreateUser(ctx context.Context, user *User) error

	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByUsername looks a user up case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUsersByUsernames resolves the usernames that exist; unknown names
	// are skipped.
	GetUsersByUsernames(ctx context.Context, usernames []string) ([]*User, error)

	// FindUsers returns users matching q ordered by username.
	FindUsers(ctx context.Context, q UserQuery) ([]*User, error)

	// UpdateUser replaces every mutable field of an existing user,
	// UsedBytes included.
	UpdateUser(ctx context.Context, user *User) error

	// SetStorageUsed overwrites only the usage counter.
	SetStorageUsed(ctx context.Context, userID string, used int64) error

	// DeleteUser removes the user together with their friendships, blocks,
	// friend requests, grants and notifications. Files are left in place for
	// the deletion sweep.
	DeleteUser(ctx context.Context, id string) error

	// CountUsers returns the total and banned user counts.
	CountUsers(ctx context.Context) (total int, banned int, err error)

	// ========================================================================
	// Graylist
	// ========================================================================

	AddGraylistEntry(ctx context.Context, entry *GraylistEntry) error

	// FindGraylistEntries returns entries matching the username or the email
	// (case-insensitive). Empty arguments never match.
	FindGraylistEntries(ctx context.Context, username, email string) ([]*GraylistEntry, error)

	// ListGraylist returns every entry, most recently banned first.
	ListGraylist(ctx context.Context) ([]*GraylistEntry, error)

	// ========================================================================
	// Files and grants
	// ========================================================================

	CreateFile(ctx context.Context, file *File) error

	GetFile(ctx context.Context, id string) (*File, error)

	UpdateFile(ctx context.Context, file *File) error

	FindFiles(ctx context.Context, q FileQuery) ([]*File, error)

	CountFiles(ctx context.Context) (int, error)

	// MarkOwnerFiles sets the deletion marker and schedule on every file
	// owned by ownerID and returns the number of files updated.
	MarkOwnerFiles(ctx context.Context, ownerID string, at time.Time) (int, error)

	// RemoveFile atomically deletes the file's comments and grants,
	// decrements the owner's usage (floored at zero, skipped when the owner
	// no longer exists) and deletes the file record. It returns the removed
	// record.
	RemoveFile(ctx context.Context, id string) (*File, error)

	// ListContentIDs returns the artifact handles referenced by all files.
	ListContentIDs(ctx context.Context) ([]string, error)

	// ReplaceGrants sets the allowlist of a file to exactly userIDs.
	ReplaceGrants(ctx context.Context, fileID string, userIDs []string) error

	// ListGrants returns the user IDs granted access to a file.
	ListGrants(ctx context.Context, fileID string) ([]string, error)

	HasGrant(ctx context.Context, fileID, userID string) (bool, error)

	// GrantedFileIDs returns the IDs of files userID holds a grant for.
	GrantedFileIDs(ctx context.Context, userID string) ([]string, error)

	// ========================================================================
	// Comments
	// ========================================================================

	CreateComment(ctx context.Context, comment *Comment) error

	GetComment(ctx context.Context, id string) (*Comment, error)

	// ListComments returns the comments on a file, oldest first.
	ListComments(ctx context.Context, fileID string) ([]*Comment, error)

	DeleteComment(ctx context.Context, id string) error

	// ========================================================================
	// Relationships
	// ========================================================================

	CreateFriendRequest(ctx context.Context, req *FriendRequest) error

	GetFriendRequest(ctx context.Context, id string) (*FriendRequest, error)

	FindFriendRequests(ctx context.Context, q FriendRequestQuery) ([]*FriendRequest, error)

	SetFriendRequestStatus(ctx context.Context, id string, status RequestStatus, at time.Time) error

	// CreateFriendship stores the friendship if the pair has none yet.
	CreateFriendship(ctx context.Context, friendship *Friendship) error

	FriendshipExists(ctx context.Context, pair Pair) (bool, error)

	// DeleteFriendship removes the pair's friendship; absent pairs are not
	// an error.
	DeleteFriendship(ctx context.Context, pair Pair) error

	// ListFriendships returns the friendships involving userID.
	ListFriendships(ctx context.Context, userID string) ([]*Friendship, error)

	// CreateBlock stores the directed block and reports whether it was new.
	CreateBlock(ctx context.Context, block *Block) (bool, error)

	// DeleteBlock removes one directed block; absent blocks are not an error.
	DeleteBlock(ctx context.Context, blockerID, blockedID string) error

	BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error)

	// ListBlocks returns the blocks in either direction involving userID.
	ListBlocks(ctx context.Context, userID string) ([]*Block, error)

	// ========================================================================
	// Direct messages
	// ========================================================================

	// GetOrCreateThread returns the thread of the pair, creating it at now
	// when missing.
	GetOrCreateThread(ctx context.Context, pair Pair, now time.Time) (*Thread, error)

	GetThread(ctx context.Context, id string) (*Thread, error)

	// FindThread returns the thread of the pair, or NotFound. It never
	// creates one.
	FindThread(ctx context.Context, pair Pair) (*Thread, error)

	// ListThreads returns threads involving userID, most recently active first.
	ListThreads(ctx context.Context, userID string) ([]*Thread, error)

	// CreateMessage stores a message and bumps the thread's UpdatedAt.
	CreateMessage(ctx context.Context, msg *Message) error

	// ListMessages returns a thread's messages, oldest first.
	ListMessages(ctx context.Context, threadID string) ([]*Message, error)

	// MarkMessagesRead sets ReadAt on unread messages addressed to
	// recipientID and returns how many changed.
	MarkMessagesRead(ctx context.Context, threadID, recipientID string, at time.Time) (int, error)

	// ========================================================================
	// Notifications
	// ========================================================================

	CreateNotifications(ctx context.Context, notifications []*Notification) error

	GetNotification(ctx context.Context, id string) (*Notification, error)

	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error)

	// MarkNotificationRead sets ReadAt only when the notification belongs to
	// recipientID and is unread. It reports whether anything changed.
	MarkNotificationRead(ctx context.Context, id, recipientID string, at time.Time) (bool, error)

	MarkAllNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error)

	// DeleteReadNotifications deletes the given notifications that are both
	// read and owned by recipientID.
	DeleteReadNotifications(ctx context.Context, recipientID string, ids []string) (int, error)

	CountUnreadNotifications(ctx context.Context, recipientID string) (int, error)

	// ========================================================================
	// Lifecycle
	// ========================================================================

	// Healthcheck verifies the backend is operational.
	Healthcheck(ctx context.Context) error

	Close() error
}
