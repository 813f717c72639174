package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marmos91/mozaichub/pkg/content"
)

// MemoryContentStore implements ContentStore using in-memory storage.
//
// This implementation stores all artifacts in a map. It's designed for:
//   - Testing and development
//   - Ephemeral single-process deployments
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on read
// and write so callers never share buffers with the store.
type MemoryContentStore struct {
	// data stores artifact bytes keyed by content ID
	data map[string][]byte

	// mu protects concurrent access to data
	mu sync.RWMutex
}

var _ content.ContentStore = (*MemoryContentStore)(nil)

// NewMemoryContentStore creates a new, empty in-memory content store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data: make(map[string][]byte),
	}, nil
}

// WriteContent reads r fully and stores the bytes under id.
func (s *MemoryContentStore) WriteContent(ctx context.Context, id string, r io.Reader) (int64, error) {
	// ========================================================================
	// Step 1: Validate before buffering
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := content.ValidateID(id); err != nil {
		return 0, err
	}

	// ========================================================================
	// Step 2: Buffer outside the lock
	// ========================================================================

	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read content %s: %w", id, err)
	}

	// ========================================================================
	// Step 3: Store
	// ========================================================================

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[id] = data
	return int64(len(data)), nil
}

// ReadContent returns a reader over a copy of the artifact.
func (s *MemoryContentStore) ReadContent(ctx context.Context, id string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return nil, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	return io.NopCloser(bytes.NewReader(dataCopy)), nil
}

func (s *MemoryContentStore) GetContentSize(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return int64(len(data)), nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[id]
	return exists, nil
}

// Delete removes the artifact, returning ErrContentNotFound when absent.
func (s *MemoryContentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	delete(s.data, id)
	return nil
}

// ListAllContent returns all IDs in sorted order.
func (s *MemoryContentStore) ListAllContent(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteBatch removes several artifacts under a single lock. Missing IDs
// are reported as failures wrapping ErrContentNotFound.
func (s *MemoryContentStore) DeleteBatch(ctx context.Context, ids []string) (map[string]error, error) {
	failures := make(map[string]error)

	if err := ctx.Err(); err != nil {
		for _, id := range ids {
			failures[id] = err
		}
		return failures, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, exists := s.data[id]; !exists {
			failures[id] = fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
			continue
		}
		delete(s.data, id)
	}

	return failures, nil
}

func (s *MemoryContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var used int64
	for _, data := range s.data {
		used += int64(len(data))
	}
	return content.NewStorageStats(used, int64(len(s.data))), nil
}

// Close is a no-op; data is released with the store.
func (s *MemoryContentStore) Close() error {
	return nil
}
