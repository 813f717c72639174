package metadata

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// ViewScope restricts a file query to what a viewer may see in listings:
// public or unlisted files, the viewer's own files, and private files the
// viewer holds a grant for.
type ViewScope struct {
	ViewerID   string
	GrantedIDs []string
}

// Allows evaluates the listing visibility predicate for f.
func (s *ViewScope) Allows(f *File) bool {
	switch {
	case f.Visibility == VisibilityPublic || f.Visibility == VisibilityUnlisted:
		return true
	case f.OwnerID == s.ViewerID:
		return true
	case f.Visibility == VisibilityPrivate:
		return slices.Contains(s.GrantedIDs, f.ID)
	}
	return false
}

// FileQuery is a conjunctive file filter. Zero-valued fields do not filter.
//
// OwnerIn distinguishes nil (no filter) from an empty slice (match nothing),
// so callers can pass a computed friend list directly.
type FileQuery struct {
	// Scope applies the listing visibility predicate when set
	Scope *ViewScope

	// OwnerID matches files owned by a single user
	OwnerID string

	// OwnerIn matches files whose owner is in the set
	OwnerIn []string

	// ExcludeOwners drops files owned by any of these users (hidden owners)
	ExcludeOwners []string

	// Categories matches files in any of these categories
	Categories []Category

	// ExcludeCategories drops files in any of these categories
	ExcludeCategories []Category

	// TitleContains is a case-insensitive substring match on the title
	TitleContains string

	// DueBy matches only files marked for deletion and scheduled at or before it
	DueBy *time.Time

	// HideDueAt drops files whose deletion time is at or before it
	HideDueAt *time.Time

	// Limit caps the number of results (0 = unlimited)
	Limit int
}

// Matches evaluates every filter except Limit against f.
func (q *FileQuery) Matches(f *File) bool {
	if q.Scope != nil && !q.Scope.Allows(f) {
		return false
	}
	if q.OwnerID != "" && f.OwnerID != q.OwnerID {
		return false
	}
	if q.OwnerIn != nil && !slices.Contains(q.OwnerIn, f.OwnerID) {
		return false
	}
	if slices.Contains(q.ExcludeOwners, f.OwnerID) {
		return false
	}
	if len(q.Categories) > 0 && !slices.Contains(q.Categories, f.Category) {
		return false
	}
	if slices.Contains(q.ExcludeCategories, f.Category) {
		return false
	}
	if q.TitleContains != "" &&
		!strings.Contains(strings.ToLower(f.Title), strings.ToLower(q.TitleContains)) {
		return false
	}
	if q.DueBy != nil && !f.DueForDeletion(*q.DueBy) {
		return false
	}
	if q.HideDueAt != nil && f.DueForDeletion(*q.HideDueAt) {
		return false
	}
	return true
}

// Apply filters, orders (newest first) and limits files. Stores without a
// query engine use it to evaluate a FileQuery in memory.
func (q *FileQuery) Apply(files []*File) []*File {
	out := make([]*File, 0, len(files))
	for _, f := range files {
		if q.Matches(f) {
			out = append(out, f)
		}
	}
	SortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// SortNewestFirst orders files by creation time descending, breaking ties by ID.
func SortNewestFirst(files []*File) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].ID > files[j].ID
	})
}

// UserQuery filters users for search.
type UserQuery struct {
	// Text matches username or display name, case-insensitive
	Text string

	// Exact requires Text to equal the username or the display name
	// instead of containing it
	Exact bool

	// ExcludeIDs drops these users from the result
	ExcludeIDs []string

	// Limit caps the number of results (0 = unlimited)
	Limit int
}

// Matches evaluates the query against u.
func (q *UserQuery) Matches(u *User) bool {
	if slices.Contains(q.ExcludeIDs, u.ID) {
		return false
	}
	if q.Text == "" {
		return true
	}
	text := strings.ToLower(q.Text)
	if q.Exact {
		return strings.ToLower(u.Username) == text || strings.ToLower(u.DisplayName) == text
	}
	return strings.Contains(strings.ToLower(u.Username), text) ||
		strings.Contains(strings.ToLower(u.DisplayName), text)
}

// FriendRequestQuery filters friend requests. Empty fields do not filter.
type FriendRequestQuery struct {
	FromID string
	ToID   string
	Status RequestStatus
}

// Matches evaluates the query against r.
func (q *FriendRequestQuery) Matches(r *FriendRequest) bool {
	if q.FromID != "" && r.FromID != q.FromID {
		return false
	}
	if q.ToID != "" && r.ToID != q.ToID {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	return true
}
