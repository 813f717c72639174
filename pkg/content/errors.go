package content

import "errors"

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all content store implementations. Callers check them with
// errors.Is; implementations wrap them with additional context:
//
//	return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)

var (
	// ErrContentNotFound indicates the requested content does not exist.
	//
	// This error is returned when:
	//   - ReadContent() called with non-existent ID
	//   - GetContentSize() called with non-existent ID
	//   - Delete() called with non-existent ID
	//
	// HTTP: 404 Not Found
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidContentID indicates an empty or malformed content ID.
	//
	// Content IDs become object keys and file names, so path separators and
	// empty IDs are rejected before touching the backend.
	ErrInvalidContentID = errors.New("invalid content id")

	// ErrStorageFull indicates the storage backend has no available space.
	//
	// This is a transient error - it may succeed after cleanup.
	//
	// HTTP: 507 Insufficient Storage
	ErrStorageFull = errors.New("storage full")
)
