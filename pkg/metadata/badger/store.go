// Package badger implements metadata.Store on top of BadgerDB.
//
// Every record is a JSON value under a namespaced key (see keys.go).
// Multi-record operations such as RemoveFile and DeleteUser run inside a
// single read-write transaction, so they are atomic with respect to every
// other operation on the store.
package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
)

// maxConflictRetries bounds how often a transaction that lost an optimistic
// concurrency race is replayed.
const maxConflictRetries = 5

// BadgerMetadataStore implements metadata.Store using BadgerDB for
// persistence.
//
// Thread Safety:
// BadgerDB transactions are serializable snapshots; write conflicts are
// detected at commit time and the transaction is replayed.
type BadgerMetadataStore struct {
	db *badger.DB
}

var _ metadata.Store = (*BadgerMetadataStore)(nil)

// BadgerMetadataStoreConfig contains configuration for the BadgerDB store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk (tests)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB database.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DBPath == "" && !config.InMemory {
		return nil, errors.New("badger metadata store requires db_path")
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(config.DBPath)
	}

	// Records are small JSON documents; compression is not worth it.
	opts = opts.WithLoggingLevel(badger.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	indexCacheMB := config.IndexCacheSizeMB
	if indexCacheMB == 0 {
		indexCacheMB = 32
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)
	opts = opts.WithIndexCacheSize(indexCacheMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("Opened badger metadata store at %q (in_memory=%v)", config.DBPath, config.InMemory)
	return &BadgerMetadataStore{db: db}, nil
}

// view runs fn in a read-only transaction.
func (s *BadgerMetadataStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, replaying it on commit
// conflicts. fn must not accumulate state across attempts.
func (s *BadgerMetadataStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			logger.Debug("Badger transaction conflict, retrying (attempt %d)", attempt+1)
			continue
		}
		return err
	}
}

// Healthcheck verifies the database is open and readable.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger metadata store is closed")
	}
	return s.view(ctx, func(txn *badger.Txn) error {
		_, err := exists(txn, keyUser(""))
		return err
	})
}

// Close closes the database. The store must not be used afterwards.
func (s *BadgerMetadataStore) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
