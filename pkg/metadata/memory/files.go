package memory

import (
	"context"
	"sort"
	"time"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func cloneFile(f *metadata.File) *metadata.File {
	cp := *f
	if f.DeletionScheduledAt != nil {
		at := *f.DeletionScheduledAt
		cp.DeletionScheduledAt = &at
	}
	return &cp
}

func (s *MemoryMetadataStore) CreateFile(ctx context.Context, file *metadata.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file.ID = newID(file.ID)
	if _, exists := s.files[file.ID]; exists {
		return metadata.NewAlreadyExistsError("file", "file %s already exists", file.ID)
	}
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *MemoryMetadataStore) GetFile(ctx context.Context, id string) (*metadata.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError("file", id)
	}
	return cloneFile(f), nil
}

func (s *MemoryMetadataStore) UpdateFile(ctx context.Context, file *metadata.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[file.ID]; !ok {
		return metadata.NewNotFoundError("file", file.ID)
	}
	s.files[file.ID] = cloneFile(file)
	return nil
}

func (s *MemoryMetadataStore) FindFiles(ctx context.Context, q metadata.FileQuery) ([]*metadata.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*metadata.File, 0, len(s.files))
	for _, f := range s.files {
		all = append(all, cloneFile(f))
	}
	return q.Apply(all), nil
}

func (s *MemoryMetadataStore) CountFiles(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.files), nil
}

func (s *MemoryMetadataStore) MarkOwnerFiles(ctx context.Context, ownerID string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, f := range s.files {
		if f.OwnerID != ownerID {
			continue
		}
		scheduled := at
		f.MarkedForDeletion = true
		f.DeletionScheduledAt = &scheduled
		count++
	}
	return count, nil
}

func (s *MemoryMetadataStore) RemoveFile(ctx context.Context, id string) (*metadata.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, metadata.NewNotFoundError("file", id)
	}

	for cID, c := range s.comments {
		if c.FileID == id {
			delete(s.comments, cID)
		}
	}
	delete(s.grants, id)

	if owner, ok := s.users[f.OwnerID]; ok {
		owner.UsedBytes = max(0, owner.UsedBytes-f.SizeBytes)
	}

	delete(s.files, id)
	return cloneFile(f), nil
}

func (s *MemoryMetadataStore) ListContentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.files))
	for _, f := range s.files {
		if f.ContentID != "" {
			ids = append(ids, f.ContentID)
		}
	}
	return ids, nil
}

func (s *MemoryMetadataStore) ReplaceGrants(ctx context.Context, fileID string, userIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[fileID]; !ok {
		return metadata.NewNotFoundError("file", fileID)
	}

	if len(userIDs) == 0 {
		delete(s.grants, fileID)
		return nil
	}

	holders := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		holders[id] = struct{}{}
	}
	s.grants[fileID] = holders
	return nil
}

func (s *MemoryMetadataStore) ListGrants(ctx context.Context, fileID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.grants[fileID]))
	for id := range s.grants[fileID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryMetadataStore) HasGrant(ctx context.Context, fileID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[fileID][userID]
	return ok, nil
}

func (s *MemoryMetadataStore) GrantedFileIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for fileID, holders := range s.grants {
		if _, ok := holders[userID]; ok {
			ids = append(ids, fileID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryMetadataStore) CreateComment(ctx context.Context, comment *metadata.Comment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[comment.FileID]; !ok {
		return metadata.NewNotFoundError("file", comment.FileID)
	}

	comment.ID = newID(comment.ID)
	cp := *comment
	s.comments[cp.ID] = &cp
	return nil
}

func (s *MemoryMetadataStore) GetComment(ctx context.Context, id string) (*metadata.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, metadata.NewNotFoundError("comment", id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryMetadataStore) ListComments(ctx context.Context, fileID string) ([]*metadata.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.Comment
	for _, c := range s.comments {
		if c.FileID == fileID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryMetadataStore) DeleteComment(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return metadata.NewNotFoundError("comment", id)
	}
	delete(s.comments, id)
	return nil
}
