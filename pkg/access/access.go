// Package access decides who may see and modify files.
//
// Single-file checks (CanView, CanModify) look only at visibility,
// ownership, role and grants. Block relationships never affect them: a
// blocked user can still open a public file by direct link. Blocks only
// shape discovery, which is what ListingScope and ProfileScope produce.
package access

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// Viewer is the authenticated caller of an operation.
type Viewer struct {
	ID   string
	Role metadata.Role
}

// ViewerOf returns the Viewer for a user record.
func ViewerOf(u *metadata.User) Viewer {
	return Viewer{ID: u.ID, Role: u.Role}
}

// IsAdmin reports whether the viewer has the admin role.
func (v Viewer) IsAdmin() bool {
	return v.Role == metadata.RoleAdmin
}

// CanModify reports whether v may edit or delete f: owners and admins only.
func CanModify(v Viewer, f *metadata.File) bool {
	return f.OwnerID == v.ID || v.IsAdmin()
}

// CanView reports whether v may see f. granted tells whether v holds a grant
// for f; grants on non-private files are inert.
func CanView(v Viewer, f *metadata.File, granted bool) bool {
	switch {
	case f.Visibility == metadata.VisibilityPublic || f.Visibility == metadata.VisibilityUnlisted:
		return true
	case f.OwnerID == v.ID:
		return true
	case v.IsAdmin():
		return true
	case f.Visibility == metadata.VisibilityPrivate:
		return granted
	}
	return false
}

// Resolver evaluates access against the metadata store.
type Resolver struct {
	store metadata.Store
	clock clockwork.Clock
}

// NewResolver creates a Resolver.
func NewResolver(store metadata.Store, c clockwork.Clock) *Resolver {
	return &Resolver{store: store, clock: c}
}

// CanView is the store-backed variant of the package-level CanView. The
// grant is only looked up for private files the viewer neither owns nor
// administers. Files whose scheduled deletion time has passed are never
// servable, whatever the viewer.
func (r *Resolver) CanView(ctx context.Context, v Viewer, f *metadata.File) (bool, error) {
	if f.DueForDeletion(r.clock.Now()) {
		return false, nil
	}

	granted := false
	if f.Visibility == metadata.VisibilityPrivate && f.OwnerID != v.ID && !v.IsAdmin() {
		var err error
		granted, err = r.store.HasGrant(ctx, f.ID, v.ID)
		if err != nil {
			return false, fmt.Errorf("failed to check grant: %w", err)
		}
	}

	return CanView(v, f, granted), nil
}

// Authorize loads a file and checks that v may view it. Files v may not see
// are reported as not found so their existence is not disclosed.
func (r *Resolver) Authorize(ctx context.Context, v Viewer, fileID string) (*metadata.File, error) {
	f, err := r.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ok, err := r.CanView(ctx, v, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, metadata.NewNotFoundError("file", fileID)
	}
	return f, nil
}

// AuthorizeModify loads a file and checks that v may modify it.
func (r *Resolver) AuthorizeModify(ctx context.Context, v Viewer, fileID string) (*metadata.File, error) {
	f, err := r.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.DueForDeletion(r.clock.Now()) {
		return nil, metadata.NewNotFoundError("file", fileID)
	}
	if !CanModify(v, f) {
		return nil, metadata.NewForbiddenError("file", "%s may not modify %s", v.ID, fileID)
	}
	return f, nil
}

// HiddenOwners returns the users whose content is hidden from v in
// listings: everyone v blocked plus everyone who blocked v.
func (r *Resolver) HiddenOwners(ctx context.Context, v Viewer) ([]string, error) {
	blocks, err := r.store.ListBlocks(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	return HiddenFromBlocks(v.ID, blocks), nil
}

// HiddenFromBlocks computes the hidden-owner set of userID from the blocks
// involving it, deduplicated and in first-seen order.
func HiddenFromBlocks(userID string, blocks []*metadata.Block) []string {
	seen := make(map[string]struct{}, len(blocks))
	hidden := make([]string, 0, len(blocks))
	for _, b := range blocks {
		other := b.BlockedID
		if b.BlockedID == userID {
			other = b.BlockerID
		}
		if other == userID {
			continue
		}
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		hidden = append(hidden, other)
	}
	return hidden
}

// ListingScope returns the base query for any listing shown to v: the
// visibility predicate (public or unlisted, own, or private with a grant),
// hidden owners excluded and due files dropped. Callers add their own
// filters and limit.
func (r *Resolver) ListingScope(ctx context.Context, v Viewer) (metadata.FileQuery, error) {
	hidden, err := r.HiddenOwners(ctx, v)
	if err != nil {
		return metadata.FileQuery{}, err
	}

	granted, err := r.store.GrantedFileIDs(ctx, v.ID)
	if err != nil {
		return metadata.FileQuery{}, fmt.Errorf("failed to list grants: %w", err)
	}

	now := r.clock.Now()
	return metadata.FileQuery{
		Scope:         &metadata.ViewScope{ViewerID: v.ID, GrantedIDs: granted},
		ExcludeOwners: hidden,
		HideDueAt:     &now,
	}, nil
}

// ProfileScope returns the query for the files listed on ownerID's profile.
//
// Admins browsing someone else's profile see every file regardless of
// visibility or grants. Everyone else gets the listing scope restricted to
// the owner, which is empty when a block separates them.
func (r *Resolver) ProfileScope(ctx context.Context, v Viewer, ownerID string) (metadata.FileQuery, error) {
	now := r.clock.Now()

	if v.IsAdmin() && v.ID != ownerID {
		return metadata.FileQuery{OwnerID: ownerID, HideDueAt: &now}, nil
	}

	q, err := r.ListingScope(ctx, v)
	if err != nil {
		return metadata.FileQuery{}, err
	}
	q.OwnerID = ownerID
	return q, nil
}
