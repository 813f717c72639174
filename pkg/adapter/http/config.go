package httpadapter

import (
	"fmt"
	"time"
)

// Config holds configuration parameters for the HTTP API server.
//
// Default values (applied by New if zero):
//   - ReadTimeout: 5m (uploads stream through the request body)
//   - WriteTimeout: 5m (downloads stream through the response)
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//
// Port 0 binds a free port; Port() reports it once Serve is listening.
type Config struct {
	// Enabled controls whether the HTTP adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ReadTimeout bounds reading a full request, body included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a full response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is how long in-flight requests may drain on shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// AuthRateLimit throttles login and registration per client address.
	AuthRateLimit RateLimitConfig `mapstructure:"auth_rate_limit"`
}

// RateLimitConfig is a per-client token bucket. A zero RequestsPerMinute
// disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"min=0"`
	Burst             int `mapstructure:"burst" validate:"min=0"`
}

// TokenConfig configures bearer token issuing and verification.
type TokenConfig struct {
	// Secret is the HMAC key. At least 32 bytes.
	Secret []byte

	// TTL is the lifetime of issued tokens. Defaults to 24h.
	TTL time.Duration
}

const minSecretLength = 32

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be >= 0", c.ShutdownTimeout)
	}
	if c.AuthRateLimit.RequestsPerMinute < 0 || c.AuthRateLimit.Burst < 0 {
		return fmt.Errorf("auth rate limit values must be >= 0")
	}
	return nil
}

func (t *TokenConfig) applyDefaults() {
	if t.TTL <= 0 {
		t.TTL = 24 * time.Hour
	}
}

func (t *TokenConfig) validate() error {
	if len(t.Secret) < minSecretLength {
		return fmt.Errorf("token secret must be at least %d bytes, got %d", minSecretLength, len(t.Secret))
	}
	return nil
}
