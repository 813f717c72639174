package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a sample configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path. The file
// contains every default plus a freshly generated JWT secret.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := GetDefaultConfig()
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	cfg.Auth.JWTSecret = secret

	data, err := GenerateYAMLWithComments(cfg)
	if err != nil {
		return err
	}

	// The file holds the signing secret
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateSecret returns 32 random bytes, hex encoded.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// section is one top-level block of the generated file.
type section struct {
	key     string
	comment string
	value   any
}

// GenerateYAMLWithComments renders cfg as YAML, one commented block per
// section. Durations are written in their string form ("30s").
func GenerateYAMLWithComments(cfg *Config) ([]byte, error) {
	sections := []section{
		{
			key:     "logging",
			comment: "Log level: DEBUG, INFO, WARN, ERROR. Format: text or json.\nOutput: stdout, stderr or a file path.",
			value: map[string]any{
				"level":  cfg.Logging.Level,
				"format": cfg.Logging.Format,
				"output": cfg.Logging.Output,
			},
		},
		{
			key:     "server",
			comment: "Graceful shutdown budget and the Prometheus endpoint.",
			value: map[string]any{
				"shutdown_timeout": cfg.Server.ShutdownTimeout.String(),
				"metrics": map[string]any{
					"enabled": cfg.Server.Metrics.Enabled,
					"port":    cfg.Server.Metrics.Port,
				},
			},
		},
		{
			key:     "metadata",
			comment: "Where users, files, relationships and notifications live.\nType: memory, badger or sql (SQLite). Only the matching section is used.",
			value: map[string]any{
				"type":   cfg.Metadata.Type,
				"badger": cfg.Metadata.Badger,
				"sql":    cfg.Metadata.SQL,
			},
		},
		{
			key:     "content",
			comment: "Where uploaded bytes live. Type: filesystem, memory or s3.\nFor s3 set region and bucket; endpoint enables MinIO-style servers.",
			value: map[string]any{
				"type":       cfg.Content.Type,
				"filesystem": cfg.Content.Filesystem,
				"s3":         cfg.Content.S3,
			},
		},
		{
			key:     "quota",
			comment: "Sizes in bytes.",
			value: map[string]any{
				"default_quota":   cfg.Quota.DefaultQuota,
				"max_upload_size": cfg.Quota.MaxUploadSize,
			},
		},
		{
			key:     "deletion",
			comment: "Deferred deletion. Files of banned accounts are removed after the grace period.",
			value: map[string]any{
				"enabled":         cfg.Deletion.Enabled,
				"grace":           cfg.Deletion.Grace.String(),
				"sweep_interval":  cfg.Deletion.SweepInterval.String(),
				"collect_orphans": cfg.Deletion.CollectOrphans,
				"batch_size":      cfg.Deletion.BatchSize,
				"dry_run":         cfg.Deletion.DryRun,
			},
		},
		{
			key:     "notifications",
			comment: "Optional NATS fan-out of new notifications to <subject_prefix>.<recipient id>.",
			value: map[string]any{
				"nats": map[string]any{
					"enabled":        cfg.Notifications.NATS.Enabled,
					"servers":        cfg.Notifications.NATS.Servers,
					"subject_prefix": cfg.Notifications.NATS.SubjectPrefix,
					"name":           cfg.Notifications.NATS.Name,
					"reconnect_wait": cfg.Notifications.NATS.ReconnectWait.String(),
					"timeout":        cfg.Notifications.NATS.Timeout.String(),
				},
			},
		},
		{
			key:     "auth",
			comment: "Keep jwt_secret private. An empty first_admin password is generated and logged once.",
			value: map[string]any{
				"jwt_secret":  cfg.Auth.JWTSecret,
				"token_ttl":   cfg.Auth.TokenTTL.String(),
				"bcrypt_cost": cfg.Auth.BcryptCost,
				"first_admin": map[string]any{
					"username": cfg.Auth.FirstAdmin.Username,
					"email":    cfg.Auth.FirstAdmin.Email,
					"password": cfg.Auth.FirstAdmin.Password,
				},
			},
		},
		{
			key:     "adapters",
			comment: "JSON API served under /api/v1.\nauth_rate_limit throttles login and registration per client address.",
			value: map[string]any{
				"http": map[string]any{
					"enabled":          cfg.Adapters.HTTP.Enabled,
					"port":             cfg.Adapters.HTTP.Port,
					"read_timeout":     cfg.Adapters.HTTP.ReadTimeout.String(),
					"write_timeout":    cfg.Adapters.HTTP.WriteTimeout.String(),
					"idle_timeout":     cfg.Adapters.HTTP.IdleTimeout.String(),
					"shutdown_timeout": cfg.Adapters.HTTP.ShutdownTimeout.String(),
					"auth_rate_limit": map[string]any{
						"requests_per_minute": cfg.Adapters.HTTP.AuthRateLimit.RequestsPerMinute,
						"burst":               cfg.Adapters.HTTP.AuthRateLimit.Burst,
					},
				},
			},
		},
	}

	var buf bytes.Buffer
	buf.WriteString("# MozaicHub Configuration File\n")
	buf.WriteString("#\n")
	buf.WriteString("# Every key can be overridden from the environment with the MOZAICHUB_\n")
	buf.WriteString("# prefix, e.g. MOZAICHUB_LOGGING_LEVEL=DEBUG.\n")

	for _, s := range sections {
		node := &yaml.Node{}
		if err := node.Encode(map[string]any{s.key: s.value}); err != nil {
			return nil, fmt.Errorf("failed to encode %s section: %w", s.key, err)
		}
		node.Content[0].HeadComment = s.comment

		out, err := yaml.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s section: %w", s.key, err)
		}
		buf.WriteString("\n")
		buf.Write(out)
	}

	return buf.Bytes(), nil
}
