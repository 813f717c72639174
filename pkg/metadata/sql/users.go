package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"gorm.io/gorm"
)

func (s *SQLMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	user.ID = newID(user.ID)
	row := newUserRow(user)

	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, row); err != nil {
			return err
		}
		return uniqueViolation(tx.Create(row).Error, user)
	})
}

// checkUnique rejects a username or email already held by another user.
func checkUnique(tx *gorm.DB, row *userRow) error {
	var count int64
	err := tx.Model(&userRow{}).
		Where("username_key = ? AND id <> ?", row.UsernameKey, row.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return metadata.NewAlreadyExistsError("user", "username %q is taken", row.Username)
	}

	if row.EmailKey == nil {
		return nil
	}
	err = tx.Model(&userRow{}).
		Where("email_key = ? AND id <> ?", *row.EmailKey, row.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return metadata.NewAlreadyExistsError("user", "email %q is taken", row.Email)
	}
	return nil
}

// uniqueViolation maps a unique-constraint error that slipped past
// checkUnique (concurrent insert) to ErrAlreadyExists.
func uniqueViolation(err error, user *metadata.User) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return metadata.NewAlreadyExistsError("user", "username or email of %q is taken", user.Username)
	}
	return err
}

func (s *SQLMetadataStore) GetUser(ctx context.Context, id string) (*metadata.User, error) {
	var row userRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return row.toUser(), nil
}

func (s *SQLMetadataStore) GetUserByUsername(ctx context.Context, username string) (*metadata.User, error) {
	var row userRow
	err := s.tx(ctx).Where("username_key = ?", strings.ToLower(username)).First(&row).Error
	if err != nil {
		return nil, notFound(err, "user", username)
	}
	return row.toUser(), nil
}

func (s *SQLMetadataStore) GetUsersByUsernames(ctx context.Context, usernames []string) ([]*metadata.User, error) {
	if len(usernames) == 0 {
		return nil, ctx.Err()
	}

	keys := make([]string, len(usernames))
	for i, name := range usernames {
		keys[i] = strings.ToLower(name)
	}

	var rows []userRow
	if err := s.tx(ctx).Where("username_key IN ?", keys).Order("username_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	return toUsers(rows), nil
}

func (s *SQLMetadataStore) FindUsers(ctx context.Context, q metadata.UserQuery) ([]*metadata.User, error) {
	db := s.tx(ctx).Model(&userRow{})

	if q.Text != "" {
		text := strings.ToLower(q.Text)
		if q.Exact {
			db = db.Where("(username_key = ? OR LOWER(display_name) = ?)", text, text)
		} else {
			pattern := likeContains(text)
			db = db.Where(`(username_key LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
	}
	if len(q.ExcludeIDs) > 0 {
		db = db.Where("id NOT IN ?", q.ExcludeIDs)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []userRow
	if err := db.Order("username_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return toUsers(rows), nil
}

func (s *SQLMetadataStore) UpdateUser(ctx context.Context, user *metadata.User) error {
	row := newUserRow(user)

	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("id = ?", row.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return metadata.NewNotFoundError("user", user.ID)
		}
		if err := checkUnique(tx, row); err != nil {
			return err
		}
		err := tx.Model(&userRow{}).Where("id = ?", row.ID).Select("*").Updates(row).Error
		return uniqueViolation(err, user)
	})
}

func (s *SQLMetadataStore) SetStorageUsed(ctx context.Context, userID string, used int64) error {
	result := s.tx(ctx).Model(&userRow{}).Where("id = ?", userID).Update("used_bytes", used)
	if result.Error != nil {
		return fmt.Errorf("failed to set storage used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewNotFoundError("user", userID)
	}
	return nil
}

// DeleteUser removes the user together with every row that references them
// except files.
func (s *SQLMetadataStore) DeleteUser(ctx context.Context, id string) error {
	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&userRow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return metadata.NewNotFoundError("user", id)
		}

		steps := []struct {
			model any
			where string
		}{
			{&friendshipRow{}, "low_id = ? OR high_id = ?"},
			{&blockRow{}, "blocker_id = ? OR blocked_id = ?"},
			{&requestRow{}, "from_id = ? OR to_id = ?"},
		}
		for _, step := range steps {
			if err := tx.Where(step.where, id, id).Delete(step.model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&grantRow{}).Error; err != nil {
			return err
		}
		return tx.Where("recipient_id = ?", id).Delete(&notificationRow{}).Error
	})
}

func (s *SQLMetadataStore) CountUsers(ctx context.Context) (int, int, error) {
	var total, banned int64
	if err := s.tx(ctx).Model(&userRow{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.tx(ctx).Model(&userRow{}).Where("banned = ?", true).Count(&banned).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count banned users: %w", err)
	}
	return int(total), int(banned), nil
}

func (s *SQLMetadataStore) AddGraylistEntry(ctx context.Context, entry *metadata.GraylistEntry) error {
	entry.ID = newID(entry.ID)
	if err := s.tx(ctx).Create(newGraylistRow(entry)).Error; err != nil {
		return fmt.Errorf("failed to add graylist entry: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) FindGraylistEntries(ctx context.Context, username, email string) ([]*metadata.GraylistEntry, error) {
	if username == "" && email == "" {
		return nil, ctx.Err()
	}

	db := s.tx(ctx).Model(&graylistRow{})
	switch {
	case username != "" && email != "":
		db = db.Where("username_key = ? OR email_key = ?", strings.ToLower(username), strings.ToLower(email))
	case username != "":
		db = db.Where("username_key = ?", strings.ToLower(username))
	default:
		db = db.Where("email_key = ?", strings.ToLower(email))
	}

	var rows []graylistRow
	if err := db.Order("banned_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search graylist: %w", err)
	}

	entries := make([]*metadata.GraylistEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntry()
	}
	return entries, nil
}

func (s *SQLMetadataStore) ListGraylist(ctx context.Context) ([]*metadata.GraylistEntry, error) {
	var rows []graylistRow
	if err := s.tx(ctx).Order("banned_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list graylist: %w", err)
	}

	entries := make([]*metadata.GraylistEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntry()
	}
	return entries, nil
}

func toUsers(rows []userRow) []*metadata.User {
	users := make([]*metadata.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toUser()
	}
	return users
}
