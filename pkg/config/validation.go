package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// minJWTSecretLength is the shortest accepted HS256 signing secret.
const minJWTSecretLength = 32

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults; validation accepts
// both uppercase and lowercase levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation that cannot be expressed in tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Adapters.HTTP.Enabled {
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret: required when the http adapter is enabled (run `mozaichub init` or set MOZAICHUB_AUTH_JWT_SECRET)")
		}
		if len(cfg.Auth.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("auth.jwt_secret: must be at least %d characters", minJWTSecretLength)
		}
	}

	if cfg.Server.Metrics.Enabled && cfg.Adapters.HTTP.Enabled &&
		cfg.Server.Metrics.Port == cfg.Adapters.HTTP.Port {
		return fmt.Errorf("server.metrics.port: %d is already used by the http adapter", cfg.Server.Metrics.Port)
	}

	if cfg.Quota.MaxUploadSize > cfg.Quota.DefaultQuota {
		return fmt.Errorf("quota.max_upload_size: %d exceeds quota.default_quota %d",
			cfg.Quota.MaxUploadSize, cfg.Quota.DefaultQuota)
	}

	if cfg.Notifications.NATS.Enabled && len(cfg.Notifications.NATS.Servers) == 0 {
		return fmt.Errorf("notifications.nats: enabled but no servers configured")
	}

	if cfg.Content.Type == "s3" && (cfg.Content.S3["bucket"] == nil || cfg.Content.S3["region"] == nil) {
		return fmt.Errorf("content.s3: bucket and region are required")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
