package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/mozaichub/pkg/access"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/notify"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir()},
	}

	store, err := CreateContentStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create filesystem content store: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func TestCreateContentStore_FilesystemMissingPath(t *testing.T) {
	cfg := &ContentConfig{Type: "filesystem", Filesystem: map[string]any{}}

	_, err := CreateContentStore(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	store, err := CreateContentStore(context.Background(), &ContentConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory content store: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func TestCreateContentStore_S3MissingBucket(t *testing.T) {
	cfg := &ContentConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}

	_, err := CreateContentStore(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected 'bucket is required' error, got: %v", err)
	}
}

func TestCreateContentStore_Unknown(t *testing.T) {
	if _, err := CreateContentStore(context.Background(), &ContentConfig{Type: "tape"}); err == nil {
		t.Fatal("Expected error for unknown content store type")
	}
}

func TestCreateMetadataStore(t *testing.T) {
	tests := []struct {
		name string
		cfg  MetadataConfig
	}{
		{"memory", MetadataConfig{Type: "memory"}},
		{"badger", MetadataConfig{Type: "badger", Badger: map[string]any{
			"db_path":             filepath.Join(t.TempDir(), "badger"),
			"block_cache_size_mb": "16",
		}}},
		{"sql", MetadataConfig{Type: "sql", SQL: map[string]any{
			"path": filepath.Join(t.TempDir(), "meta.db"),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := CreateMetadataStore(ctx, &tt.cfg)
			if err != nil {
				t.Fatalf("Failed to create %s metadata store: %v", tt.name, err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Healthcheck(ctx); err != nil {
				t.Errorf("Healthcheck failed: %v", err)
			}
		})
	}
}

func TestCreateMetadataStore_MissingPaths(t *testing.T) {
	for _, typ := range []string{"badger", "sql"} {
		t.Run(typ, func(t *testing.T) {
			_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: typ})
			if err == nil || !strings.Contains(err.Error(), "required") {
				t.Errorf("Expected required path error, got: %v", err)
			}
		})
	}
}

func TestCreateMetadataStore_Unknown(t *testing.T) {
	_, err := CreateMetadataStore(context.Background(), &MetadataConfig{Type: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "unknown metadata store type") {
		t.Errorf("Expected unknown type error, got: %v", err)
	}
}

func TestCreatePublisher_DisabledIsNoop(t *testing.T) {
	publisher, err := CreatePublisher(&NotificationsConfig{})
	if err != nil {
		t.Fatalf("CreatePublisher failed: %v", err)
	}
	if _, ok := publisher.(notify.NoopPublisher); !ok {
		t.Errorf("Expected NoopPublisher, got %T", publisher)
	}
}

func TestCreateRegistry(t *testing.T) {
	ctx := context.Background()
	cfg := validConfig()
	cfg.Metadata.Type = "memory"
	cfg.Content.Type = "memory"
	cfg.Auth.BcryptCost = 4
	cfg.Auth.FirstAdmin.Password = "correct horse battery"

	reg, err := CreateRegistry(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("CreateRegistry failed: %v", err)
	}
	defer func() { _ = reg.Close() }()

	admin, created, err := reg.Identity.EnsureFirstAdmin(ctx)
	if err != nil {
		t.Fatalf("EnsureFirstAdmin failed: %v", err)
	}
	if !created || !admin.IsAdmin() {
		t.Fatalf("Expected a new admin, got created=%v role=%s", created, admin.Role)
	}

	res, err := reg.Identity.Register(ctx, identity.NewAccount{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if res.User.QuotaBytes != cfg.Quota.DefaultQuota {
		t.Errorf("Expected configured quota %d, got %d", cfg.Quota.DefaultQuota, res.User.QuotaBytes)
	}

	stats, err := reg.Identity.Stats(ctx, access.ViewerOf(admin))
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Users != 2 {
		t.Errorf("Expected 2 users, got %d", stats.Users)
	}
}

func TestCreateAdapters(t *testing.T) {
	cfg := validConfig()

	adapters, err := CreateAdapters(cfg, nil)
	if err != nil {
		t.Fatalf("CreateAdapters failed: %v", err)
	}
	if len(adapters) != 1 || adapters[0].Protocol() != "HTTP" {
		t.Fatalf("Expected one HTTP adapter, got %v", adapters)
	}

	cfg.Adapters.HTTP.Enabled = false
	if _, err := CreateAdapters(cfg, nil); err == nil {
		t.Fatal("Expected error with no adapters enabled")
	}
}

func TestDeletionSweeperConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Deletion.DryRun = true

	gcCfg := DeletionSweeperConfig(&cfg.Deletion)
	if gcCfg.Interval != cfg.Deletion.SweepInterval || gcCfg.Grace != cfg.Deletion.Grace {
		t.Errorf("Unexpected sweeper config: %+v", gcCfg)
	}
	if !gcCfg.DryRun || !gcCfg.Enabled {
		t.Errorf("Expected flags to carry over: %+v", gcCfg)
	}
}
