package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
	"gorm.io/gorm"
)

func (s *SQLMetadataStore) CreateFile(ctx context.Context, file *metadata.File) error {
	file.ID = newID(file.ID)
	err := s.tx(ctx).Create(newFileRow(file)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return metadata.NewAlreadyExistsError("file", "file %s already exists", file.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (s *SQLMetadataStore) GetFile(ctx context.Context, id string) (*metadata.File, error) {
	var row fileRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "file", id)
	}
	return row.toFile(), nil
}

func (s *SQLMetadataStore) UpdateFile(ctx context.Context, file *metadata.File) error {
	result := s.tx(ctx).Model(&fileRow{}).Where("id = ?", file.ID).Select("*").Updates(newFileRow(file))
	if result.Error != nil {
		return fmt.Errorf("failed to update file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewNotFoundError("file", file.ID)
	}
	return nil
}

// FindFiles translates q into a WHERE clause.
func (s *SQLMetadataStore) FindFiles(ctx context.Context, q metadata.FileQuery) ([]*metadata.File, error) {
	db := s.tx(ctx).Model(&fileRow{})

	if q.Scope != nil {
		cond := "visibility IN ? OR owner_id = ?"
		args := []any{
			[]string{string(metadata.VisibilityPublic), string(metadata.VisibilityUnlisted)},
			q.Scope.ViewerID,
		}
		if len(q.Scope.GrantedIDs) > 0 {
			cond += " OR (visibility = ? AND id IN ?)"
			args = append(args, string(metadata.VisibilityPrivate), q.Scope.GrantedIDs)
		}
		db = db.Where("("+cond+")", args...)
	}
	if q.OwnerID != "" {
		db = db.Where("owner_id = ?", q.OwnerID)
	}
	if q.OwnerIn != nil {
		if len(q.OwnerIn) == 0 {
			return []*metadata.File{}, ctx.Err()
		}
		db = db.Where("owner_id IN ?", q.OwnerIn)
	}
	if len(q.ExcludeOwners) > 0 {
		db = db.Where("owner_id NOT IN ?", q.ExcludeOwners)
	}
	if len(q.Categories) > 0 {
		db = db.Where("category IN ?", categoryNames(q.Categories))
	}
	if len(q.ExcludeCategories) > 0 {
		db = db.Where("category NOT IN ?", categoryNames(q.ExcludeCategories))
	}
	if q.TitleContains != "" {
		db = db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, likeContains(strings.ToLower(q.TitleContains)))
	}
	if q.DueBy != nil {
		db = db.Where("marked_for_deletion = ? AND deletion_scheduled_at IS NOT NULL AND deletion_scheduled_at <= ?",
			true, q.DueBy.UTC())
	}
	if q.HideDueAt != nil {
		db = db.Where("(marked_for_deletion = ? OR deletion_scheduled_at IS NULL OR deletion_scheduled_at > ?)",
			false, q.HideDueAt.UTC())
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	var rows []fileRow
	if err := db.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find files: %w", err)
	}

	files := make([]*metadata.File, len(rows))
	for i := range rows {
		files[i] = rows[i].toFile()
	}
	return files, nil
}

func categoryNames(categories []metadata.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return names
}

func (s *SQLMetadataStore) CountFiles(ctx context.Context) (int, error) {
	var count int64
	if err := s.tx(ctx).Model(&fileRow{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return int(count), nil
}

func (s *SQLMetadataStore) MarkOwnerFiles(ctx context.Context, ownerID string, at time.Time) (int, error) {
	result := s.tx(ctx).Model(&fileRow{}).Where("owner_id = ?", ownerID).Updates(map[string]any{
		"marked_for_deletion":   true,
		"deletion_scheduled_at": at.UTC(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark files of %s: %w", ownerID, result.Error)
	}
	return int(result.RowsAffected), nil
}

// RemoveFile deletes comments, grants and the file and releases the owner's
// usage in one transaction.
func (s *SQLMetadataStore) RemoveFile(ctx context.Context, id string) (*metadata.File, error) {
	var removed *metadata.File
	err := s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var row fileRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return notFound(err, "file", id)
		}

		if err := tx.Where("file_id = ?", id).Delete(&commentRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ?", id).Delete(&grantRow{}).Error; err != nil {
			return err
		}

		// A missing owner simply matches no row.
		err := tx.Model(&userRow{}).Where("id = ?", row.OwnerID).
			Update("used_bytes", gorm.Expr("MAX(0, used_bytes - ?)", row.SizeBytes)).Error
		if err != nil {
			return err
		}

		if err := tx.Where("id = ?", id).Delete(&fileRow{}).Error; err != nil {
			return err
		}
		removed = row.toFile()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *SQLMetadataStore) ListContentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.tx(ctx).Model(&fileRow{}).Where("content_id <> ''").Pluck("content_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list content ids: %w", err)
	}
	return ids, nil
}

func (s *SQLMetadataStore) ReplaceGrants(ctx context.Context, fileID string, userIDs []string) error {
	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&fileRow{}).Where("id = ?", fileID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return metadata.NewNotFoundError("file", fileID)
		}

		if err := tx.Where("file_id = ?", fileID).Delete(&grantRow{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}

		seen := make(map[string]struct{}, len(userIDs))
		rows := make([]grantRow, 0, len(userIDs))
		for _, userID := range userIDs {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			rows = append(rows, grantRow{FileID: fileID, UserID: userID})
		}
		return tx.Create(&rows).Error
	})
}

func (s *SQLMetadataStore) ListGrants(ctx context.Context, fileID string) ([]string, error) {
	ids := []string{}
	err := s.tx(ctx).Model(&grantRow{}).Where("file_id = ?", fileID).Order("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return ids, nil
}

func (s *SQLMetadataStore) HasGrant(ctx context.Context, fileID, userID string) (bool, error) {
	var count int64
	err := s.tx(ctx).Model(&grantRow{}).Where("file_id = ? AND user_id = ?", fileID, userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return count > 0, nil
}

func (s *SQLMetadataStore) GrantedFileIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.tx(ctx).Model(&grantRow{}).Where("user_id = ?", userID).Order("file_id").Pluck("file_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list granted files: %w", err)
	}
	return ids, nil
}

func (s *SQLMetadataStore) CreateComment(ctx context.Context, comment *metadata.Comment) error {
	comment.ID = newID(comment.ID)
	return s.tx(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&fileRow{}).Where("id = ?", comment.FileID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return metadata.NewNotFoundError("file", comment.FileID)
		}
		return tx.Create(newCommentRow(comment)).Error
	})
}

func (s *SQLMetadataStore) GetComment(ctx context.Context, id string) (*metadata.Comment, error) {
	var row commentRow
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, notFound(err, "comment", id)
	}
	return row.toComment(), nil
}

func (s *SQLMetadataStore) ListComments(ctx context.Context, fileID string) ([]*metadata.Comment, error) {
	var rows []commentRow
	err := s.tx(ctx).Where("file_id = ?", fileID).Order("created_at, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	comments := make([]*metadata.Comment, len(rows))
	for i := range rows {
		comments[i] = rows[i].toComment()
	}
	return comments, nil
}

func (s *SQLMetadataStore) DeleteComment(ctx context.Context, id string) error {
	result := s.tx(ctx).Where("id = ?", id).Delete(&commentRow{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete comment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return metadata.NewNotFoundError("comment", id)
	}
	return nil
}
