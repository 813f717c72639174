package badger

import (
	"context"
	"slices"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

func (s *BadgerMetadataStore) CreateUser(ctx context.Context, user *metadata.User) error {
	user.ID = newID(user.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		if ok, err := exists(txn, keyUser(user.ID)); err != nil {
			return err
		} else if ok {
			return metadata.NewAlreadyExistsError("user", "user %s already exists", user.ID)
		}
		if err := claimIdentity(txn, user, nil); err != nil {
			return err
		}
		return put(txn, keyUser(user.ID), user)
	})
}

// claimIdentity writes the username and email index entries for user,
// rejecting names held by someone else. previous is the stored record when
// updating; its stale index entries are released.
func claimIdentity(txn *badger.Txn, user, previous *metadata.User) error {
	owner, ok, err := loadString(txn, keyUsername(user.Username))
	if err != nil {
		return err
	}
	if ok && owner != user.ID {
		return metadata.NewAlreadyExistsError("user", "username %q is taken", user.Username)
	}

	if user.Email != "" {
		owner, ok, err := loadString(txn, keyEmail(user.Email))
		if err != nil {
			return err
		}
		if ok && owner != user.ID {
			return metadata.NewAlreadyExistsError("user", "email %q is taken", user.Email)
		}
	}

	if previous != nil {
		if err := releaseIdentity(txn, previous); err != nil {
			return err
		}
	}

	if err := txn.Set(keyUsername(user.Username), []byte(user.ID)); err != nil {
		return err
	}
	if user.Email != "" {
		return txn.Set(keyEmail(user.Email), []byte(user.ID))
	}
	return nil
}

func releaseIdentity(txn *badger.Txn, user *metadata.User) error {
	if err := txn.Delete(keyUsername(user.Username)); err != nil {
		return err
	}
	if user.Email != "" {
		return txn.Delete(keyEmail(user.Email))
	}
	return nil
}

func (s *BadgerMetadataStore) GetUser(ctx context.Context, id string) (*metadata.User, error) {
	var user *metadata.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		user, err = load[metadata.User](txn, keyUser(id), "user", id)
		return err
	})
	return user, err
}

func (s *BadgerMetadataStore) GetUserByUsername(ctx context.Context, username string) (*metadata.User, error) {
	var user *metadata.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		id, ok, err := loadString(txn, keyUsername(username))
		if err != nil {
			return err
		}
		if !ok {
			return metadata.NewNotFoundError("user", username)
		}
		user, err = load[metadata.User](txn, keyUser(id), "user", username)
		return err
	})
	return user, err
}

func (s *BadgerMetadataStore) GetUsersByUsernames(ctx context.Context, usernames []string) ([]*metadata.User, error) {
	var users []*metadata.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		users = nil
		seen := make(map[string]struct{}, len(usernames))
		for _, name := range usernames {
			id, ok, err := loadString(txn, keyUsername(name))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			u, err := load[metadata.User](txn, keyUser(id), "user", id)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	sortUsers(users)
	return users, err
}

func (s *BadgerMetadataStore) FindUsers(ctx context.Context, q metadata.UserQuery) ([]*metadata.User, error) {
	var users []*metadata.User
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		users, err = scan(txn, []byte(prefixUser), q.Matches)
		return err
	})
	if err != nil {
		return nil, err
	}

	sortUsers(users)
	if q.Limit > 0 && len(users) > q.Limit {
		users = users[:q.Limit]
	}
	return users, nil
}

func (s *BadgerMetadataStore) UpdateUser(ctx context.Context, user *metadata.User) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		previous, err := load[metadata.User](txn, keyUser(user.ID), "user", user.ID)
		if err != nil {
			return err
		}
		if err := claimIdentity(txn, user, previous); err != nil {
			return err
		}
		return put(txn, keyUser(user.ID), user)
	})
}

func (s *BadgerMetadataStore) SetStorageUsed(ctx context.Context, userID string, used int64) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		u, err := load[metadata.User](txn, keyUser(userID), "user", userID)
		if err != nil {
			return err
		}
		u.UsedBytes = used
		return put(txn, keyUser(userID), u)
	})
}

// DeleteUser removes the user and, in the same transaction, every
// relationship, grant and notification that references them.
func (s *BadgerMetadataStore) DeleteUser(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		u, err := load[metadata.User](txn, keyUser(id), "user", id)
		if err != nil {
			return err
		}
		if err := releaseIdentity(txn, u); err != nil {
			return err
		}
		if err := txn.Delete(keyUser(id)); err != nil {
			return err
		}

		var doomed [][]byte

		friendships, err := scanKeys(txn, []byte(prefixFriendship), func(key []byte) bool {
			low, high := splitKey(key, prefixFriendship)
			return low == id || high == id
		})
		if err != nil {
			return err
		}
		doomed = append(doomed, friendships...)

		blocks, err := scanKeys(txn, []byte(prefixBlock), func(key []byte) bool {
			blocker, blocked := splitKey(key, prefixBlock)
			return blocker == id || blocked == id
		})
		if err != nil {
			return err
		}
		doomed = append(doomed, blocks...)

		grants, err := scanKeys(txn, []byte(prefixGrant), func(key []byte) bool {
			_, holder := splitKey(key, prefixGrant)
			return holder == id
		})
		if err != nil {
			return err
		}
		doomed = append(doomed, grants...)

		requests, err := scan(txn, []byte(prefixRequest), func(r *metadata.FriendRequest) bool {
			return r.FromID == id || r.ToID == id
		})
		if err != nil {
			return err
		}
		for _, r := range requests {
			doomed = append(doomed, keyRequest(r.ID))
		}

		notifications, err := scan(txn, []byte(prefixNotification), func(n *metadata.Notification) bool {
			return n.RecipientID == id
		})
		if err != nil {
			return err
		}
		for _, n := range notifications {
			doomed = append(doomed, keyNotification(n.ID))
		}

		return deleteKeys(txn, doomed)
	})
}

func (s *BadgerMetadataStore) CountUsers(ctx context.Context) (int, int, error) {
	var total, banned int
	err := s.view(ctx, func(txn *badger.Txn) error {
		users, err := scan[metadata.User](txn, []byte(prefixUser), nil)
		if err != nil {
			return err
		}
		total, banned = len(users), 0
		for _, u := range users {
			if u.Banned {
				banned++
			}
		}
		return nil
	})
	return total, banned, err
}

func (s *BadgerMetadataStore) AddGraylistEntry(ctx context.Context, entry *metadata.GraylistEntry) error {
	entry.ID = newID(entry.ID)
	return s.update(ctx, func(txn *badger.Txn) error {
		return put(txn, keyGraylist(entry.ID), entry)
	})
}

func (s *BadgerMetadataStore) FindGraylistEntries(ctx context.Context, username, email string) ([]*metadata.GraylistEntry, error) {
	if username == "" && email == "" {
		return nil, ctx.Err()
	}

	var entries []*metadata.GraylistEntry
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		entries, err = scan(txn, []byte(prefixGraylist), func(e *metadata.GraylistEntry) bool {
			if username != "" && strings.EqualFold(e.Username, username) {
				return true
			}
			return email != "" && strings.EqualFold(e.Email, email)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].BannedAt.Before(entries[j].BannedAt)
	})
	return entries, nil
}

func (s *BadgerMetadataStore) ListGraylist(ctx context.Context) ([]*metadata.GraylistEntry, error) {
	var entries []*metadata.GraylistEntry
	err := s.view(ctx, func(txn *badger.Txn) error {
		var err error
		entries, err = scan(txn, []byte(prefixGraylist), func(*metadata.GraylistEntry) bool { return true })
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(entries, func(a, b *metadata.GraylistEntry) int {
		return b.BannedAt.Compare(a.BannedAt)
	})
	return entries, nil
}

func sortUsers(users []*metadata.User) {
	slices.SortFunc(users, func(a, b *metadata.User) int {
		return strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username))
	})
}
