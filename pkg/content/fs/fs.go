package fs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/mozaichub/pkg/content"
)

// tempSuffix marks partially written artifacts. They are invisible to
// listings and removed when the write fails.
const tempSuffix = ".partial"

// FSContentStore implements ContentStore using the local filesystem.
//
// Every artifact is a regular file directly under basePath. File names are
// the hex encoding of the content ID so arbitrary IDs map to safe names.
//
// Writes go to a temporary file that is renamed into place once complete,
// so readers never observe a half-written artifact.
//
// Thread Safety:
// Safe for concurrent use. Atomicity of individual writes and deletes is
// provided by the filesystem (rename / unlink).
type FSContentStore struct {
	basePath string
}

var _ content.ContentStore = (*FSContentStore)(nil)

// NewFSContentStore creates a filesystem content store rooted at basePath.
//
// The base directory is created with permissions 0755 if it doesn't exist.
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Create the base directory if it doesn't exist
	// ========================================================================

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{basePath: basePath}, nil
}

// getFilePath returns the full path for a given content ID.
func (r *FSContentStore) getFilePath(id string) string {
	return filepath.Join(r.basePath, hex.EncodeToString([]byte(id)))
}

// WriteContent streams r into a temporary file and renames it into place.
func (r *FSContentStore) WriteContent(ctx context.Context, id string, src io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Validate
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateID(id); err != nil {
		return 0, err
	}

	// ========================================================================
	// Step 2: Stream into a temporary file
	// ========================================================================

	path := r.getFilePath(id)
	tmp, err := os.CreateTemp(r.basePath, filepath.Base(path)+"-*"+tempSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write content %s: %w", id, err)
	}

	// ========================================================================
	// Step 3: Publish atomically
	// ========================================================================

	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to finalize content %s: %w", id, err)
	}

	return n, nil
}

// ReadContent opens the artifact for reading. The caller must close it.
func (r *FSContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.getFilePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content: %w", err)
	}
	return f, nil
}

func (r *FSContentStore) GetContentSize(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}
	return info.Size(), nil
}

func (r *FSContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(r.getFilePath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check content existence: %w", err)
}

// Delete unlinks the artifact, returning ErrContentNotFound when absent.
func (r *FSContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(r.getFilePath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// ListAllContent scans the base directory and decodes file names back into
// content IDs. Temporary files and names that are not valid hex are skipped.
func (r *FSContentStore) ListAllContent(ctx context.Context) ([]string, error) {
	// ========================================================================
	// Step 1: Check context before filesystem operation
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ========================================================================
	// Step 2: Read directory entries
	// ========================================================================

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	// ========================================================================
	// Step 3: Build list of content IDs
	// ========================================================================

	ids := make([]string, 0, len(entries))
	for i, entry := range entries {
		// Check context periodically (every 100 entries)
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if entry.IsDir() || strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		raw, err := hex.DecodeString(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, string(raw))
	}

	sort.Strings(ids)
	return ids, nil
}

// DeleteBatch removes several artifacts sequentially. Partial failures are
// returned in the map.
func (r *FSContentStore) DeleteBatch(ctx context.Context, ids []string) (map[string]error, error) {
	failures := make(map[string]error)

	for i, id := range ids {
		// Check context periodically (every 10 deletions)
		if i%10 == 0 {
			if err := ctx.Err(); err != nil {
				for j := i; j < len(ids); j++ {
					failures[ids[j]] = err
				}
				return failures, err
			}
		}

		if err := r.Delete(ctx, id); err != nil {
			failures[id] = err
		}
	}

	return failures, nil
}

// GetStorageStats walks the base directory and sums artifact sizes.
func (r *FSContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read content directory: %w", err)
	}

	var used, count int64
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed concurrently
			continue
		}
		used += info.Size()
		count++
	}

	return content.NewStorageStats(used, count), nil
}

// Close is a no-op; no descriptors are kept open between calls.
func (r *FSContentStore) Close() error {
	return nil
}
