package content

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// ContentStore holds the bytes of uploaded files (artifacts).
//
// The metadata store records, for every file, the opaque ID of its artifact.
// The content store knows nothing about files, owners or visibility: it maps
// IDs to byte streams.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent writes to the same ID are last-write-wins.
//
// Context Cancellation:
// All methods check the context before starting work. Long-running listing
// and batch operations check it periodically.
type ContentStore interface {
	// WriteContent stores everything read from r under id, replacing any
	// previous artifact, and returns the number of bytes written.
	WriteContent(ctx context.Context, id string, r io.Reader) (int64, error)

	// ReadContent returns a reader for the artifact. The caller must close it.
	//
	// Returns ErrContentNotFound when id does not exist.
	ReadContent(ctx context.Context, id string) (io.ReadCloser, error)

	// GetContentSize returns the artifact size in bytes.
	GetContentSize(ctx context.Context, id string) (int64, error)

	// ContentExists reports whether id exists. A missing artifact is not an
	// error.
	ContentExists(ctx context.Context, id string) (bool, error)

	// Delete removes the artifact.
	//
	// Returns ErrContentNotFound when id does not exist, so callers can
	// tell "removed" from "already absent" (see Remove).
	Delete(ctx context.Context, id string) error

	// ListAllContent returns every stored ID. Used by orphan collection.
	ListAllContent(ctx context.Context) ([]string, error)

	// DeleteBatch removes several artifacts. The map holds per-ID failures
	// (empty = all succeeded); the error is reserved for cancellation and
	// catastrophic failures.
	DeleteBatch(ctx context.Context, ids []string) (map[string]error, error)

	// GetStorageStats returns usage statistics for the backend.
	GetStorageStats(ctx context.Context) (*StorageStats, error)

	// Close releases backend resources.
	Close() error
}

// StorageStats contains storage statistics for a content store.
type StorageStats struct {
	// UsedSize is the sum of all artifact sizes in bytes
	UsedSize int64

	// ContentCount is the number of stored artifacts
	ContentCount int64

	// AverageSize is UsedSize / ContentCount (0 when empty)
	AverageSize int64
}

// NewStorageStats builds stats from a total size and count.
func NewStorageStats(used, count int64) *StorageStats {
	stats := &StorageStats{UsedSize: used, ContentCount: count}
	if count > 0 {
		stats.AverageSize = used / count
	}
	return stats
}

// ValidateID rejects IDs that cannot be used safely as keys or file names.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%q: %w", id, ErrInvalidContentID)
	}
	return nil
}
