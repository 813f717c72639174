package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	httpadapter "github.com/marmos91/mozaichub/pkg/adapter/http"
	"github.com/spf13/viper"
)

// Config represents the complete MozaicHub configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (MOZAICHUB_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct carries type-specific option maps (e.g. metadata.badger,
// content.s3) and only the map matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Content specifies the content store type and type-specific configuration
	Content ContentConfig `mapstructure:"content"`

	// Quota contains storage accounting limits
	Quota QuotaConfig `mapstructure:"quota"`

	// Deletion configures the deferred deletion sweeper
	Deletion DeletionConfig `mapstructure:"deletion"`

	// Notifications configures event publishing of new notifications
	Notifications NotificationsConfig `mapstructure:"notifications"`

	// Auth contains credential and token settings
	Auth AuthConfig `mapstructure:"auth"`

	// Adapters contains transport adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls metrics collection and exposure.
type MetricsConfig struct {
	// Enabled turns on Prometheus metrics collection
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics listener port
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// MetadataConfig specifies metadata store configuration.
type MetadataConfig struct {
	// Type specifies which metadata store implementation to use
	// Valid values: memory, badger, sql
	Type string `mapstructure:"type" validate:"required,oneof=memory badger sql"`

	// Memory contains memory-specific configuration (currently no options)
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// SQL contains SQLite-specific configuration
	// Only used when Type = "sql"
	SQL map[string]any `mapstructure:"sql"`
}

// ContentConfig specifies content store configuration.
type ContentConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem contains filesystem-specific configuration
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory contains memory-specific configuration (currently no options)
	Memory map[string]any `mapstructure:"memory"`

	// S3 contains S3-specific configuration
	S3 map[string]any `mapstructure:"s3"`
}

// QuotaConfig contains storage accounting limits, in bytes.
type QuotaConfig struct {
	// DefaultQuota is assigned to new accounts
	DefaultQuota int64 `mapstructure:"default_quota" validate:"gt=0"`

	// MaxUploadSize rejects larger uploads before any byte is stored
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"gt=0"`
}

// DeletionConfig configures the deferred deletion sweeper.
type DeletionConfig struct {
	// Enabled runs the sweeper in the background while serving
	Enabled bool `mapstructure:"enabled"`

	// Grace delays deletion of files owned by banned accounts
	Grace time.Duration `mapstructure:"grace" validate:"min=0"`

	// SweepInterval is how often the background sweep runs
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`

	// CollectOrphans also removes unreferenced artifacts after each sweep
	CollectOrphans bool `mapstructure:"collect_orphans"`

	// BatchSize is the number of orphaned artifacts deleted per batch
	BatchSize int `mapstructure:"batch_size" validate:"gt=0"`

	// DryRun logs orphaned artifacts instead of deleting them
	DryRun bool `mapstructure:"dry_run"`
}

// NotificationsConfig configures notification event publishing.
type NotificationsConfig struct {
	NATS NATSConfig `mapstructure:"nats"`
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	// Enabled publishes every new notification to NATS
	Enabled bool `mapstructure:"enabled"`

	// Servers lists the NATS URLs, e.g. nats://127.0.0.1:4222
	Servers []string `mapstructure:"servers"`

	// SubjectPrefix is prepended to the recipient ID
	SubjectPrefix string `mapstructure:"subject_prefix"`

	// Name identifies this connection on the NATS server
	Name string `mapstructure:"name"`

	// ReconnectWait is the delay between reconnect attempts
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" validate:"min=0"`

	// Timeout bounds the initial connection
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// AuthConfig contains credential and token settings.
type AuthConfig struct {
	// JWTSecret signs bearer tokens (HS256). Required when the HTTP adapter is enabled.
	JWTSecret string `mapstructure:"jwt_secret"`

	// TokenTTL is the lifetime of issued tokens
	TokenTTL time.Duration `mapstructure:"token_ttl" validate:"gt=0"`

	// BcryptCost is the bcrypt work factor for password hashes
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`

	// FirstAdmin is created on startup when the user table is empty
	FirstAdmin FirstAdminConfig `mapstructure:"first_admin"`
}

// FirstAdminConfig describes the bootstrap administrator.
type FirstAdminConfig struct {
	Username string `mapstructure:"username" validate:"required"`
	Email    string `mapstructure:"email" validate:"omitempty,email"`

	// Password may be left empty to generate a random one, which is logged once
	Password string `mapstructure:"password"`
}

// AdaptersConfig contains all transport adapter configurations.
type AdaptersConfig struct {
	// HTTP contains the JSON API configuration.
	// Uses the httpadapter.Config type directly to avoid duplication.
	HTTP httpadapter.Config `mapstructure:"http"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MOZAICHUB_*)
//  2. Configuration file
//  3. Default values
//
// An empty configPath uses the default location.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envBindings lists the keys that may be set from the environment without
// appearing in the config file. AutomaticEnv only resolves keys viper
// already knows about.
var envBindings = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"metadata.type",
	"content.type",
	"quota.default_quota",
	"quota.max_upload_size",
	"deletion.enabled",
	"deletion.grace",
	"deletion.sweep_interval",
	"deletion.collect_orphans",
	"deletion.dry_run",
	"notifications.nats.enabled",
	"notifications.nats.servers",
	"notifications.nats.subject_prefix",
	"auth.jwt_secret",
	"auth.token_ttl",
	"auth.bcrypt_cost",
	"auth.first_admin.username",
	"auth.first_admin.email",
	"auth.first_admin.password",
	"adapters.http.enabled",
	"adapters.http.port",
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: MOZAICHUB_AUTH_JWT_SECRET=...
	v.SetEnvPrefix("MOZAICHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envBindings {
		_ = v.BindEnv(key)
	}

	// Booleans that default to true cannot be filled in by ApplyDefaults
	v.SetDefault("deletion.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/mozaichub/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist falls back to defaults too
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mozaichub")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "mozaichub")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
