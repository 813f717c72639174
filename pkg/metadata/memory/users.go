package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *MemoryMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUniqueLocked(user, ""); err != nil {
		return err
	}

	user.ID = newID(user.ID)
	cp := *user
	s.users[cp.ID] = &cp
	return nil
}

// checkUniqueLocked rejects a username or email already held by a user
// other than selfID.
func (s *MemoryMetadataStore) checkUniqueLocked(user *metadata.User, selfID string) error {
	for _, u := range s.users {
		if u.ID == selfID {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) {
			return metadata.NewAlreadyExistsError("user", "username %q is taken", user.Username)
		}
		if user.Email != "" && strings.EqualFold(u.Email, user.Email) {
			return metadata.NewAlreadyExistsError("user", "email %q is taken", user.Email)
		}
	}
	return nil
}

func (s *MemoryMetadataStore) GetUser(ctx context.Context, id string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, metadata.NewNotFoundError("user", id)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryMetadataStore) GetUserByUsername(ctx context.Context, username string) (*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, metadata.NewNotFoundError("user", username)
}

func (s *MemoryMetadataStore) GetUsersByUsernames(ctx context.Context, usernames []string) ([]*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		wanted[strings.ToLower(name)] = struct{}{}
	}

	var out []*metadata.User
	for _, u := range s.users {
		if _, ok := wanted[strings.ToLower(u.Username)]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sortUsers(out)
	return out, nil
}

func (s *MemoryMetadataStore) FindUsers(ctx context.Context, q metadata.UserQuery) ([]*metadata.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.User
	for _, u := range s.users {
		if q.Matches(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sortUsers(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryMetadataStore) UpdateUser(ctx context.Context, user *metadata.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return metadata.NewNotFoundError("user", user.ID)
	}
	if err := s.checkUniqueLocked(user, user.ID); err != nil {
		return err
	}

	cp := *user
	s.users[cp.ID] = &cp
	return nil
}

func (s *MemoryMetadataStore) SetStorageUsed(ctx context.Context, userID string, used int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return metadata.NewNotFoundError("user", userID)
	}
	u.UsedBytes = used
	return nil
}

func (s *MemoryMetadataStore) DeleteUser(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return metadata.NewNotFoundError("user", id)
	}
	delete(s.users, id)

	for pair := range s.friendships {
		if pair.Contains(id) {
			delete(s.friendships, pair)
		}
	}
	for key, b := range s.blocks {
		if b.Involves(id) {
			delete(s.blocks, key)
		}
	}
	for reqID, r := range s.requests {
		if r.FromID == id || r.ToID == id {
			delete(s.requests, reqID)
		}
	}
	for _, holders := range s.grants {
		delete(holders, id)
	}
	for nID, n := range s.notifications {
		if n.RecipientID == id {
			delete(s.notifications, nID)
		}
	}
	return nil
}

func (s *MemoryMetadataStore) CountUsers(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	banned := 0
	for _, u := range s.users {
		if u.Banned {
			banned++
		}
	}
	return len(s.users), banned, nil
}

func (s *MemoryMetadataStore) AddGraylistEntry(ctx context.Context, entry *metadata.GraylistEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = newID(entry.ID)
	cp := *entry
	s.graylist = append(s.graylist, &cp)
	return nil
}

func (s *MemoryMetadataStore) FindGraylistEntries(ctx context.Context, username, email string) ([]*metadata.GraylistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*metadata.GraylistEntry
	for _, e := range s.graylist {
		if graylistMatches(e, username, email) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryMetadataStore) ListGraylist(ctx context.Context) ([]*metadata.GraylistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*metadata.GraylistEntry, len(s.graylist))
	for i, e := range s.graylist {
		cp := *e
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BannedAt.After(out[j].BannedAt)
	})
	return out, nil
}

func graylistMatches(e *metadata.GraylistEntry, username, email string) bool {
	if username != "" && strings.EqualFold(e.Username, username) {
		return true
	}
	return email != "" && strings.EqualFold(e.Email, email)
}

func sortUsers(users []*metadata.User) {
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
}
