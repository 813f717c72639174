package content

import (
	"context"
	"errors"
)

// RemovalOutcome describes what happened to an artifact on a best-effort
// delete.
type RemovalOutcome int

const (
	// Removed means the artifact existed and was deleted
	Removed RemovalOutcome = iota

	// AlreadyAbsent means there was nothing to delete
	AlreadyAbsent

	// RemovalFailed means the backend refused or errored; the artifact may
	// now be orphaned
	RemovalFailed
)

func (o RemovalOutcome) String() string {
	switch o {
	case Removed:
		return "removed"
	case AlreadyAbsent:
		return "already-absent"
	case RemovalFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Removal is the result of Remove. Err is set only for RemovalFailed.
type Removal struct {
	ID      string
	Outcome RemovalOutcome
	Err     error
}

// Remove deletes an artifact and classifies the result instead of failing.
//
// An orphaned artifact is preferable to a record that can never be deleted,
// so callers log or count the outcome and carry on with metadata cleanup.
func Remove(ctx context.Context, store ContentStore, id string) Removal {
	if id == "" {
		return Removal{ID: id, Outcome: AlreadyAbsent}
	}

	err := store.Delete(ctx, id)
	switch {
	case err == nil:
		return Removal{ID: id, Outcome: Removed}
	case errors.Is(err, ErrContentNotFound):
		return Removal{ID: id, Outcome: AlreadyAbsent}
	default:
		return Removal{ID: id, Outcome: RemovalFailed, Err: err}
	}
}
