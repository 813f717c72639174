package badger

import (
	"context"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *BadgerMetadataStore) CreateFile(ctx context.Context, file *metadata.File) error {
	file.ID = newID(file.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyFile(file.ID)); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("file", "file %s already exists", file.ID)
		}
		return put(txn, keyFile(file.ID), file)
	})
}

func (s *BadgerMetadataStore) GetFile(ctx context.Context, id string) (*metadata.File, error) {
	var file *metadata.File
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		file, err = load[metadata.File](txn, keyFile(id), "file", id)
		return err
	})
	return file, err
}

func (s *BadgerMetadataStore) UpdateFile(ctx context.Context, file *metadata.File) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyFile(file.ID)); err != nil {
			return err
		} else if !ok {
			return metadata.NewNotFoundError("file", file.ID)
		}
		return put(txn, keyFile(file.ID), file)
	})
}

// FindFiles scans every file record and evaluates q in memory.
func (s *BadgerMetadataStore) FindFiles(ctx context.Context, q metadata.FileQuery) ([]*metadata.File, error) {
	var files []*metadata.File
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		files, err = scan(txn, []byte(prefixFile), q.Matches)
		return err
	})
	if err != nil {
		return nil, err
	}

	metadata.SortNewestFirst(files)
	if q.Limit > 0 && len(files) > q.Limit {
		files = files[:q.Limit]
	}
	return files, nil
}

func (s *BadgerMetadataStore) CountFiles(ctx context.Context) (int, error) {
	var count int
	err := s.view(ctx, func(txn *badger.Txn) error {
		keys, err := scanKeys(txn, []byte(prefixFile), nil)
		count = len(keys)
		return err
	})
	return count, err
}

func (s *BadgerMetadataStore) MarkOwnerFiles(ctx context.Context, ownerID string, at time.Time) (int, error) {
	var count int
	err := s.update(ctx, func(txn *badger.Txn) error {
		files, err := scan(txn, []byte(prefixFile), func(f *metadata.File) bool {
			return f.OwnerID == ownerID
		})
		if err != nil {
			return err
		}

		for _, f := range files {
			scheduled := at
			f.MarkedForDeletion = true
			f.DeletionScheduledAt = &scheduled
			if err := put(txn, keyFile(f.ID), f); err != nil {
				return err
			}
		}
		count = len(files)
		return nil
	})
	return count, err
}

// RemoveFile deletes the file with its comments and grants and releases the
// owner's usage in a single transaction.
func (s *BadgerMetadataStore) RemoveFile(ctx context.Context, id string) (*metadata.File, error) {
	var removed *metadata.File
	err := s.update(ctx, func(txn *badger.Txn) error {
		f, err := load[metadata.File](txn, keyFile(id), "file", id)
		if err != nil {
			return err
		}

		// Step 1: comments and their lookup index
		comments, err := scanKeys(txn, keyCommentPrefix(id), nil)
		if err != nil {
			return err
		}
		for _, key := range comments {
			_, commentID := splitKey(key, prefixComment)
			if err := txn.Delete(keyCommentIndex(commentID)); err != nil {
				return err
			}
		}
		if err := deleteKeys(txn, comments); err != nil {
			return err
		}

		// Step 2: grants
		grants, err := scanKeys(txn, keyGrantPrefix(id), nil)
		if err != nil {
			return err
		}
		if err := deleteKeys(txn, grants); err != nil {
			return err
		}

		// Step 3: owner usage, skipped when the owner is gone
		owner, err := load[metadata.User](txn, keyUser(f.OwnerID), "user", f.OwnerID)
		switch {
		case metadata.IsNotFound(err):
		case err != nil:
			return err
		default:
			owner.UsedBytes = max(0, owner.UsedBytes-f.SizeBytes)
			if err := put(txn, keyUser(owner.ID), owner); err != nil {
				return err
			}
		}

		// Step 4: the record itself
		if err := txn.Delete(keyFile(id)); err != nil {
			return err
		}
		removed = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *BadgerMetadataStore) ListContentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		files, err := scan[metadata.File](txn, []byte(prefixFile), nil)
		if err != nil {
			return err
		}
		ids = make([]string, 0, len(files))
		for _, f := range files {
			if f.ContentID != "" {
				ids = append(ids, f.ContentID)
			}
		}
		return nil
	})
	return ids, err
}

func (s *BadgerMetadataStore) ReplaceGrants(ctx context.Context, fileID string, userIDs []string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyFile(fileID)); err != nil {
			return err
		} else if !ok {
			return metadata.NewNotFoundError("file", fileID)
		}

		current, err := scanKeys(txn, keyGrantPrefix(fileID), nil)
		if err != nil {
			return err
		}
		if err := deleteKeys(txn, current); err != nil {
			return err
		}
		for _, userID := range userIDs {
			if err := txn.Set(keyGrant(fileID, userID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerMetadataStore) ListGrants(ctx context.Context, fileID string) ([]string, error) {
	ids := []string{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		keys, err := scanKeys(txn, keyGrantPrefix(fileID), nil)
		if err != nil {
			return err
		}
		for _, key := range keys {
			_, userID := splitKey(key, prefixGrant)
			ids = append(ids, userID)
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (s *BadgerMetadataStore) HasGrant(ctx context.Context, fileID, userID string) (bool, error) {
	var ok bool
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, keyGrant(fileID, userID))
		return err
	})
	return ok, err
}

func (s *BadgerMetadataStore) GrantedFileIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		keys, err := scanKeys(txn, []byte(prefixGrant), func(key []byte) bool {
			_, holder := splitKey(key, prefixGrant)
			return holder == userID
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			fileID, _ := splitKey(key, prefixGrant)
			ids = append(ids, fileID)
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (s *BadgerMetadataStore) CreateComment(ctx context.Context, comment *metadata.Comment) error {
	comment.ID = newID(comment.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyFile(comment.FileID)); err != nil {
			return err
		} else if !ok {
			return metadata.NewNotFoundError("file", comment.FileID)
		}
		if err := txn.Set(keyCommentIndex(comment.ID), []byte(comment.FileID)); err != nil {
			return err
		}
		return put(txn, keyComment(comment.FileID, comment.ID), comment)
	})
}

func (s *BadgerMetadataStore) GetComment(ctx context.Context, id string) (*metadata.Comment, error) {
	var comment *metadata.Comment
	err := s.view(ctx, func(txn *badger.Txn) error {
		fileID, ok, err := loadString(txn, keyCommentIndex(id))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("comment", id)
		}
		comment, err = load[metadata.Comment](txn, keyComment(fileID, id), "comment", id)
		return err
	})
	return comment, err
}

func (s *BadgerMetadataStore) ListComments(ctx context.Context, fileID string) ([]*metadata.Comment, error) {
	var comments []*metadata.Comment
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		comments, err = scan[metadata.Comment](txn, keyCommentPrefix(fileID), nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(comments, func(i, j int) bool {
		if !comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].CreatedAt.Before(comments[j].CreatedAt)
		}
		return comments[i].ID < comments[j].ID
	})
	return comments, nil
}

func (s *BadgerMetadataStore) DeleteComment(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		fileID, ok, err := loadString(txn, keyCommentIndex(id))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("comment", id)
		}
		if err := txn.Delete(keyComment(fileID, id)); err != nil {
			return err
		}
		return txn.Delete(keyCommentIndex(id))
	})
}
