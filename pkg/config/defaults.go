package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	httpadapter "github.com/marmos91/mozaichub/pkg/adapter/http"
	"github.com/marmos91/mozaichub/pkg/gc"
	"github.com/marmos91/mozaichub/pkg/identity"
	"github.com/marmos91/mozaichub/pkg/library"
)

const (
	// DefaultSubjectPrefix is the NATS subject prefix for notifications
	DefaultSubjectPrefix = "mozaichub.notifications"

	// DefaultBcryptCost matches bcrypt.DefaultCost
	DefaultBcryptCost = 10
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyQuotaDefaults(&cfg.Quota)
	applyDeletionDefaults(&cfg.Deletion)
	applyNotificationsDefaults(&cfg.Notifications)
	applyAuthDefaults(&cfg.Auth)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// dataDir is the default root for on-disk state.
func dataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "mozaichub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mozaichub")
	}
	return filepath.Join(home, ".local", "share", "mozaichub")
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.SQL == nil {
		cfg.SQL = make(map[string]any)
	}

	// Defaults for every store type, so `init` documents them all
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(dataDir(), "metadata")
	}
	if _, ok := cfg.SQL["path"]; !ok {
		cfg.SQL["path"] = filepath.Join(dataDir(), "mozaichub.db")
	}
}

// applyContentDefaults sets content store defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = filepath.Join(dataDir(), "uploads")
	}
}

// applyQuotaDefaults sets quota defaults.
func applyQuotaDefaults(cfg *QuotaConfig) {
	if cfg.DefaultQuota == 0 {
		cfg.DefaultQuota = identity.DefaultQuota
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = library.DefaultMaxUploadSize
	}
}

// applyDeletionDefaults sets sweeper defaults. Enabled has no default here:
// GetDefaultConfig turns it on, an explicit false in a file is respected.
func applyDeletionDefaults(cfg *DeletionConfig) {
	if cfg.Grace == 0 {
		cfg.Grace = gc.DefaultGrace
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = gc.DefaultInterval
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = gc.DefaultBatchSize
	}
}

// applyNotificationsDefaults sets NATS publisher defaults.
func applyNotificationsDefaults(cfg *NotificationsConfig) {
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.NATS.Name == "" {
		cfg.NATS.Name = "mozaichub"
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = 2 * time.Second
	}
	if cfg.NATS.Timeout == 0 {
		cfg.NATS.Timeout = 5 * time.Second
	}
	if cfg.NATS.Servers == nil {
		cfg.NATS.Servers = []string{}
	}
}

// applyAuthDefaults sets auth defaults.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.FirstAdmin.Username == "" {
		cfg.FirstAdmin.Username = "admin"
	}
	if cfg.FirstAdmin.Email == "" {
		cfg.FirstAdmin.Email = "admin@mozaichub.local"
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A freshly loaded config without an adapters section still serves the
	// API. An explicit port signals deliberate configuration, so enabled:
	// false is then respected.
	if !cfg.HTTP.Enabled && cfg.HTTP.Port == 0 {
		cfg.HTTP.Enabled = true
	}

	applyHTTPDefaults(&cfg.HTTP)
}

// applyHTTPDefaults sets HTTP adapter defaults.
func applyHTTPDefaults(cfg *httpadapter.Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.AuthRateLimit.RequestsPerMinute == 0 {
		cfg.AuthRateLimit.RequestsPerMinute = 30
	}
	if cfg.AuthRateLimit.Burst == 0 {
		cfg.AuthRateLimit.Burst = 10
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Deletion: DeletionConfig{
			Enabled: true,
		},
		Adapters: AdaptersConfig{
			HTTP: httpadapter.Config{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
