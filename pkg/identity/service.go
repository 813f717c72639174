// Package identity manages user accounts: registration, credentials, roles,
// ban state, quotas and the graylist of banned identities.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// DeletionScheduler marks the files of an account for deferred deletion.
// gc.Sweeper implements it.
type DeletionScheduler interface {
	ScheduleOwnerDeletion(ctx context.Context, ownerID string) (int, error)
	ScheduleOwnerDeletionAfter(ctx context.Context, ownerID string, grace time.Duration) (int, error)
}

// Config holds account defaults.
type Config struct {
	// DefaultQuota is the storage quota of new accounts, in bytes
	DefaultQuota int64

	// FirstAdmin is created by EnsureFirstAdmin on an empty store
	FirstAdmin AdminSeed
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// DefaultQuota is 10 GiB.
const DefaultQuota int64 = 10 << 30

// Service is the identity store.
type Service struct {
	store     metadata.Store
	hasher    Hasher
	deletions DeletionScheduler
	clock     clockwork.Clock
	config    Config
}

// NewService creates an identity service.
func NewService(store metadata.Store, hasher Hasher, deletions DeletionScheduler, c clockwork.Clock, config Config) *Service {
	if config.DefaultQuota <= 0 {
		config.DefaultQuota = DefaultQuota
	}
	if config.FirstAdmin.Username == "" {
		config.FirstAdmin.Username = "admin"
	}
	if config.FirstAdmin.Password == "" {
		config.FirstAdmin.Password = "adminpass"
	}
	if config.FirstAdmin.Email == "" {
		config.FirstAdmin.Email = config.FirstAdmin.Username + "@mozaichub.local"
	}
	return &Service{store: store, hasher: hasher, deletions: deletions, clock: c, config: config}
}

// Result is returned by operations that may reuse a banned identity.
// Graylisted is a warning for the administrator, not a refusal.
type Result struct {
	User       *metadata.User
	Graylisted bool
}

// NewAccount is the input of Register and CreateUser.
type NewAccount struct {
	Username    string        `validate:"required,min=3,max=32,username"`
	Email       string        `validate:"required,email,max=254"`
	DisplayName string        `validate:"max=64"`
	Password    string        `validate:"required,min=8,max=72"`
	Role        metadata.Role `validate:"omitempty,oneof=ADMIN USER"`
}

// Register creates a USER account for self sign-up.
func (s *Service) Register(ctx context.Context, req NewAccount) (*Result, error) {
	req.Role = metadata.RoleUser
	return s.create(ctx, req)
}

// CreateUser creates an account with any role. Admin only.
func (s *Service) CreateUser(ctx context.Context, actor access.Viewer, req NewAccount) (*Result, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = metadata.RoleUser
	}
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req NewAccount) (*Result, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := check("user", req); err != nil {
		return nil, err
	}

	graylisted, err := s.graylisted(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}

	now := s.clock.Now()
	u := &metadata.User{
		Username:     req.Username,
		Email:        req.Email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         req.Role,
		QuotaBytes:   s.config.DefaultQuota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	if graylisted {
		logger.Warn("Account %s (%s) matches a graylisted identity", u.Username, u.ID)
	}
	logger.Info("Created %s account %s (%s)", u.Role, u.Username, u.ID)
	return &Result{User: u, Graylisted: graylisted}, nil
}

func (s *Service) graylisted(ctx context.Context, username, email string) (bool, error) {
	entries, err := s.store.FindGraylistEntries(ctx, username, email)
	if err != nil {
		return false, fmt.Errorf("failed to check graylist: %w", err)
	}
	return len(entries) > 0, nil
}

// Authenticate verifies credentials. Unknown users, wrong passwords and
// banned accounts are all ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*metadata.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if metadata.IsNotFound(err) {
		return nil, metadata.NewError(metadata.ErrUnauthenticated, "user", "invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	if u.Banned {
		return nil, metadata.NewError(metadata.ErrUnauthenticated, "user", "account banned")
	}

	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, metadata.NewError(metadata.ErrUnauthenticated, "user", "invalid credentials")
	}
	return u, nil
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (*metadata.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByUsername returns a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*metadata.User, error) {
	return s.store.GetUserByUsername(ctx, username)
}

// UserUpdate carries the fields an administrator may change. Nil fields
// are left untouched.
type UserUpdate struct {
	Username    *string        `validate:"omitempty,min=3,max=32,username"`
	Email       *string        `validate:"omitempty,email,max=254"`
	DisplayName *string        `validate:"omitempty,max=64"`
	Role        *metadata.Role `validate:"omitempty,oneof=ADMIN USER"`
	QuotaBytes  *int64         `validate:"omitempty,min=0"`
	Banned      *bool
}

// UpdateUser applies an administrative update. An administrator cannot
// change their own role; such a change is ignored. Changing Banned goes
// through Ban and Unban.
func (s *Service) UpdateUser(ctx context.Context, actor access.Viewer, id string, upd UserUpdate) (*Result, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := check("user", upd); err != nil {
		return nil, err
	}
	// Rejected before any field is written.
	if upd.Banned != nil && *upd.Banned && id == actor.ID {
		return nil, metadata.NewError(metadata.ErrSelfReference, "user", "cannot ban yourself")
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Username != nil {
		u.Username = strings.TrimSpace(*upd.Username)
	}
	if upd.Email != nil {
		u.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Role != nil && u.ID != actor.ID {
		u.Role = *upd.Role
	}
	if upd.QuotaBytes != nil {
		u.QuotaBytes = *upd.QuotaBytes
	}

	graylisted := false
	if upd.Username != nil || upd.Email != nil {
		if graylisted, err = s.graylisted(ctx, u.Username, u.Email); err != nil {
			return nil, err
		}
	}

	u.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	if upd.Banned != nil && *upd.Banned != u.Banned {
		if *upd.Banned {
			_, err = s.Ban(ctx, actor, u.ID, "")
		} else {
			err = s.Unban(ctx, actor, u.ID)
		}
		if err != nil {
			return nil, err
		}
		if u, err = s.store.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	return &Result{User: u, Graylisted: graylisted}, nil
}

// ProfileUpdate carries the fields a user may change on their own account.
type ProfileUpdate struct {
	DisplayName  *string `validate:"omitempty,max=64"`
	Email        *string `validate:"omitempty,email,max=254"`
	ProfileImage *string `validate:"omitempty,max=512"`
}

// UpdateProfile updates the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, actorID string, upd ProfileUpdate) (*metadata.User, error) {
	if err := check("user", upd); err != nil {
		return nil, err
	}

	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Email != nil {
		u.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.ProfileImage != nil {
		u.ProfileImage = *upd.ProfileImage
	}
	u.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type passwordChange struct {
	Next string `validate:"required,min=8,max=72"`
}

// ChangePassword replaces the caller's password after verifying the
// current one.
func (s *Service) ChangePassword(ctx context.Context, actorID, current, next string) error {
	if err := check("password", passwordChange{Next: next}); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, actorID)
	if err != nil {
		return err
	}
	ok, err := s.hasher.Verify(u.PasswordHash, current)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.NewError(metadata.ErrUnauthenticated, "user", "current password is incorrect")
	}
	return s.setPassword(ctx, u, next)
}

// ResetPassword sets a random temporary password on another account and
// returns it. Admin only.
func (s *Service) ResetPassword(ctx context.Context, actor access.Viewer, id string) (string, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	temp, err := temporaryPassword()
	if err != nil {
		return "", err
	}
	if err := s.setPassword(ctx, u, temp); err != nil {
		return "", err
	}

	logger.Info("Password of %s reset by %s", u.Username, actor.ID)
	return temp, nil
}

// Recover generates a temporary password for username and writes it to the
// server log for the operator to hand over. Unknown usernames succeed
// silently so the response does not reveal which accounts exist.
func (s *Service) Recover(ctx context.Context, username string) error {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if metadata.IsNotFound(err) {
		logger.Debug("Recovery requested for unknown account %q", username)
		return nil
	}
	if err != nil {
		return err
	}

	temp, err := temporaryPassword()
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, u, temp); err != nil {
		return err
	}

	logger.Info("Recovery password for %s: %s", u.Username, temp)
	return nil
}

func (s *Service) setPassword(ctx context.Context, u *metadata.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.clock.Now()
	return s.store.UpdateUser(ctx, u)
}

// Ban flags the account, graylists its username and email, and schedules
// every owned file for deletion after the grace period. It returns the
// number of files scheduled. Banning an already banned account only
// reschedules its files.
func (s *Service) Ban(ctx context.Context, actor access.Viewer, id, reason string) (int, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	if id == actor.ID {
		return 0, metadata.NewError(metadata.ErrSelfReference, "user", "cannot ban yourself")
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	if !u.Banned {
		u.Banned = true
		u.UpdatedAt = now
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return 0, err
		}

		if reason = strings.TrimSpace(reason); reason == "" {
			reason = "Banned"
		}
		entry := &metadata.GraylistEntry{Username: u.Username, Email: u.Email, Reason: reason, BannedAt: now}
		if err := s.store.AddGraylistEntry(ctx, entry); err != nil {
			return 0, fmt.Errorf("failed to graylist %s: %w", u.Username, err)
		}
	}

	n, err := s.deletions.ScheduleOwnerDeletion(ctx, u.ID)
	if err != nil {
		return 0, err
	}

	logger.Info("User %s banned by %s: %d file(s) scheduled for deletion", u.Username, actor.ID, n)
	return n, nil
}

// Unban clears the ban flag. Files already scheduled for deletion stay
// scheduled and the graylist entry is kept.
func (s *Service) Unban(ctx context.Context, actor access.Viewer, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !u.Banned {
		return nil
	}
	u.Banned = false
	u.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return err
	}

	logger.Info("User %s unbanned by %s", u.Username, actor.ID)
	return nil
}

// DeleteUser removes an account. Its files are scheduled for immediate
// deletion and removed by the next sweep. Admin only.
func (s *Service) DeleteUser(ctx context.Context, actor access.Viewer, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return metadata.NewError(metadata.ErrSelfReference, "user", "cannot delete yourself")
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.deletions.ScheduleOwnerDeletionAfter(ctx, u.ID, 0); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		return err
	}

	logger.Info("User %s deleted by %s", u.Username, actor.ID)
	return nil
}

// EnsureFirstAdmin creates the configured administrator when the store has
// no users. It reports whether an account was created.
func (s *Service) EnsureFirstAdmin(ctx context.Context) (*metadata.User, bool, error) {
	total, _, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count users: %w", err)
	}
	if total > 0 {
		return nil, false, nil
	}

	seed := s.config.FirstAdmin
	res, err := s.create(ctx, NewAccount{
		Username:    seed.Username,
		Email:       seed.Email,
		DisplayName: "Administrator",
		Password:    seed.Password,
		Role:        metadata.RoleAdmin,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create first admin: %w", err)
	}

	logger.Warn("Created first admin account %q; change its password", seed.Username)
	return res.User, true, nil
}

// Stats are the admin dashboard counters.
type Stats struct {
	Users  int `json:"users"`
	Banned int `json:"banned"`
	Files  int `json:"files"`
}

// Stats returns the admin dashboard counters. Admin only.
func (s *Service) Stats(ctx context.Context, actor access.Viewer) (*Stats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	users, banned, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	files, err := s.store.CountFiles(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Users: users, Banned: banned, Files: files}, nil
}

// Graylist returns every graylist entry, most recently banned first.
// Admin only.
func (s *Service) Graylist(ctx context.Context, actor access.Viewer) ([]*metadata.GraylistEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListGraylist(ctx)
}

// ListUsers returns every account. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor access.Viewer) ([]*metadata.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.FindUsers(ctx, metadata.UserQuery{})
}

// SearchUsers finds users by username or display name. Without fuzzy one
// of the two must match exactly. The caller and anyone sharing a block
// with the caller are excluded.
func (s *Service) SearchUsers(ctx context.Context, actorID, text string, fuzzy bool, limit int) ([]*metadata.User, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	blocks, err := s.store.ListBlocks(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	exclude := append(access.HiddenFromBlocks(actorID, blocks), actorID)

	return s.store.FindUsers(ctx, metadata.UserQuery{
		Text:       text,
		Exact:      !fuzzy,
		ExcludeIDs: exclude,
		Limit:      limit,
	})
}

func requireAdmin(actor access.Viewer) error {
	if !actor.IsAdmin() {
		return metadata.NewForbiddenError("user", "administrator role required")
	}
	return nil
}
