// Package sql implements metadata.Store on a relational database through
// gorm. The bundled driver is SQLite (pure Go, no cgo), which suits the
// single-node deployment model.
//
// Multi-row operations (RemoveFile, DeleteUser, GetOrCreateThread) run in a
// database transaction.
package sql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"gorm.io/gorm"
)

// SQLMetadataStore implements metadata.Store with gorm.
type SQLMetadataStore struct {
	db *gorm.DB
}

var _ metadata.Store = (*SQLMetadataStore)(nil)

// SQLMetadataStoreConfig configures the SQL store.
type SQLMetadataStoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in RAM.
	Path string `mapstructure:"path"`

	// Debug logs every statement at debug level
	Debug bool `mapstructure:"debug"`
}

// NewSQLMetadataStore opens the database and migrates the schema.
func NewSQLMetadataStore(ctx context.Context, config SQLMetadataStoreConfig) (*SQLMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, errors.New("sql metadata store requires path")
	}

	dsn := config.Path
	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLog(config.Debug),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", config.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	// SQLite serializes writers anyway, and every ":memory:" connection
	// would otherwise get its own empty database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).AutoMigrate(allModels...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Debug("Opened sql metadata store at %q", config.Path)
	return &SQLMetadataStore{db: db}, nil
}

// Healthcheck pings the database.
func (s *SQLMetadataStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQLMetadataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLMetadataStore) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound converts gorm.ErrRecordNotFound into a domain NotFound error and
// wraps anything else.
func notFound(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metadata.NewNotFoundError(entity, id)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, id, err)
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// likeContains builds a case-insensitive LIKE pattern for a substring,
// escaping the wildcard characters with '\'.
func likeContains(text string) string {
	escaped := make([]rune, 0, len(text)+2)
	escaped = append(escaped, '%')
	for _, r := range text {
		if r == '%' || r == '_' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	escaped = append(escaped, '%')
	return string(escaped)
}
