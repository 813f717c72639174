package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/mozaichub/internal/logger"
	"github.com/marmos91/mozaichub/pkg/adapter"
	httpadapter "github.com/marmos91/mozaichub/pkg/adapter/http"
	"github.com/marmos91/mozaichub/pkg/content"
	contentFs "github.com/marmos91/mozaichub/pkg/content/fs"
	contentMemory "github.com/marmos91/mozaichub/pkg/content/memory"
	contentS3 "github.com/marmos91/mozaichub/pkg/content/s3"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/library"
	"github.com/marmos91/mozaichub/pkg/metadata"
	"github.com/marmos91/mozaichub/pkg/metadata/badger"
	"github.com/marmos91/mozaichub/pkg/metadata/memory"
	sqlstore "github.com/marmos91/mozaichub/pkg/metadata/sql"
	"github.com/marmos91/mozaichub/pkg/notify"
	"github.com/marmos91/mozaichub/pkg/registry"
	"github.com/mitchellh/mapstructure"
)

// decodeOptions decodes a store option map into out, accepting duration
// strings such as "30s".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": pkg/metadata/memory (ephemeral)
//   - "badger": pkg/metadata/badger (embedded key-value store)
//   - "sql": pkg/metadata/sql (SQLite through gorm)
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return memory.NewMemoryMetadataStore(), nil
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	case "sql":
		return createSQLMetadataStore(ctx, cfg.SQL)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger, sql)", cfg.Type)
	}
}

// createBadgerMetadataStore creates a BadgerDB-based persistent metadata store.
func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	var storeCfg badger.BadgerMetadataStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger metadata store: db_path is required")
	}

	store, err := badger.NewBadgerMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}

	logger.Info("Badger metadata store initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

// createSQLMetadataStore creates a SQLite-backed metadata store.
func createSQLMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	var storeCfg sqlstore.SQLMetadataStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode sql metadata store options: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("sql metadata store: path is required")
	}

	store, err := sqlstore.NewSQLMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create sql metadata store: %w", err)
	}

	logger.Info("SQL metadata store initialized: path=%s", storeCfg.Path)
	return store, nil
}

// CreateContentStore creates a content store based on configuration.
//
// Supported types:
//   - "filesystem": pkg/content/fs (local directory)
//   - "memory": pkg/content/memory (ephemeral, tests and demos)
//   - "s3": pkg/content/s3 (Amazon S3 or compatible storage)
func CreateContentStore(ctx context.Context, cfg *ContentConfig) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		store, err := contentMemory.NewMemoryContentStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory content store: %w", err)
		}
		return store, nil
	case "s3":
		return createS3ContentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// createFilesystemContentStore creates a filesystem-based content store.
func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	type FilesystemContentStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemContentStoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}

	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}

	return store, nil
}

// S3Options are the recognised keys of the content.s3 section.
type S3Options struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// createS3ContentStore creates an S3-based content store.
func createS3ContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	var storeCfg S3Options
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := NewS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.NewS3ContentStore(ctx, contentS3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}

// NewS3Client builds an S3 client from the content.s3 options.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(opts.Region),
	}

	// Static credentials when given, otherwise the default credential chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// MinIO, Localstack and friends need a custom endpoint with path-style addressing
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// CreatePublisher creates the notification publisher: NATS when enabled,
// a no-op otherwise.
func CreatePublisher(cfg *NotificationsConfig) (notify.Publisher, error) {
	if !cfg.NATS.Enabled {
		return notify.NoopPublisher{}, nil
	}

	publisher, err := notify.NewNATSPublisher(notify.NATSConfig{
		Servers:       cfg.NATS.Servers,
		Name:          cfg.NATS.Name,
		SubjectPrefix: cfg.NATS.SubjectPrefix,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       cfg.NATS.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
	}

	logger.Info("Publishing notifications to NATS: servers=%v, prefix=%s",
		cfg.NATS.Servers, cfg.NATS.SubjectPrefix)
	return publisher, nil
}

// CreateRegistry creates every store and service described by cfg. The
// caller owns the returned registry and must Close it.
func CreateRegistry(ctx context.Context, cfg *Config, m *MetricsResult) (*registry.Registry, error) {
	if m == nil {
		m = noopMetrics()
	}

	metaStore, err := CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, err
	}

	contentStore, err := CreateContentStore(ctx, &cfg.Content)
	if err != nil {
		_ = metaStore.Close()
		return nil, err
	}

	publisher, err := CreatePublisher(&cfg.Notifications)
	if err != nil {
		_ = contentStore.Close()
		_ = metaStore.Close()
		return nil, err
	}

	reg, err := registry.New(metaStore, contentStore, publisher, registry.Options{
		Hasher: identity.NewBcryptHasher(cfg.Auth.BcryptCost),
		Identity: identity.Config{
			DefaultQuota: cfg.Quota.DefaultQuota,
			FirstAdmin: identity.AdminSeed{
				Username: cfg.Auth.FirstAdmin.Username,
				Email:    cfg.Auth.FirstAdmin.Email,
				Password: cfg.Auth.FirstAdmin.Password,
			},
		},
		Library: library.Config{
			MaxUploadSize: cfg.Quota.MaxUploadSize,
		},
		Deletion:            DeletionSweeperConfig(&cfg.Deletion),
		DeletionMetrics:     m.DeletionMetrics,
		QuotaMetrics:        m.QuotaMetrics,
		NotificationMetrics: m.NotificationMetrics,
	})
	if err != nil {
		_ = publisher.Close()
		_ = contentStore.Close()
		_ = metaStore.Close()
		return nil, err
	}

	return reg, nil
}

// DeletionSweeperConfig converts the deletion section into sweeper settings.
func DeletionSweeperConfig(cfg *DeletionConfig) gc.Config {
	return gc.Config{
		Enabled:        cfg.Enabled,
		Interval:       cfg.SweepInterval,
		Grace:          cfg.Grace,
		CollectOrphans: cfg.CollectOrphans,
		BatchSize:      cfg.BatchSize,
		DryRun:         cfg.DryRun,
	}
}

// CreateAdapters creates all enabled transport adapters from the configuration.
func CreateAdapters(cfg *Config, m *MetricsResult) ([]adapter.Adapter, error) {
	if m == nil {
		m = noopMetrics()
	}

	var adapters []adapter.Adapter

	if cfg.Adapters.HTTP.Enabled {
		httpAdapter, err := httpadapter.New(cfg.Adapters.HTTP, httpadapter.TokenConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			TTL:    cfg.Auth.TokenTTL,
		}, m.HTTPMetrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create http adapter: %w", err)
		}
		adapters = append(adapters, httpAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}

// ShutdownContext returns a context bounded by the configured shutdown timeout.
func ShutdownContext(cfg *Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
