package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// It is designed for tests, development and single-process deployments that
// do not need persistence. All records are copied on the way in and on the
// way out so callers never share memory with the store.
//
// Thread Safety:
// All operations are protected by a single sync.RWMutex, which also makes
// RemoveFile trivially atomic.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	users    map[string]*metadata.User
	graylist []*metadata.GraylistEntry

	files    map[string]*metadata.File
	grants   map[string]map[string]struct{} // fileID -> set of userIDs
	comments map[string]*metadata.Comment

	requests    map[string]*metadata.FriendRequest
	friendships map[metadata.Pair]*metadata.Friendship
	blocks      map[blockKey]*metadata.Block

	threads      map[string]*metadata.Thread
	threadByPair map[metadata.Pair]string
	messages     map[string][]*metadata.Message // threadID -> oldest first

	notifications map[string]*metadata.Notification
}

var _ metadata.Store = (*MemoryMetadataStore)(nil)

type blockKey struct {
	blocker string
	blocked string
}

// NewMemoryMetadataStore creates an empty in-memory store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		users:         make(map[string]*metadata.User),
		files:         make(map[string]*metadata.File),
		grants:        make(map[string]map[string]struct{}),
		comments:      make(map[string]*metadata.Comment),
		requests:      make(map[string]*metadata.FriendRequest),
		friendships:   make(map[metadata.Pair]*metadata.Friendship),
		blocks:        make(map[blockKey]*metadata.Block),
		threads:       make(map[string]*metadata.Thread),
		threadByPair:  make(map[metadata.Pair]string),
		messages:      make(map[string][]*metadata.Message),
		notifications: make(map[string]*metadata.Notification),
	}
}

// Healthcheck always succeeds unless the context is done.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
