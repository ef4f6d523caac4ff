package api

import (
	"fmt"
	"os"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
)

// EnvControlPlaneSecret overrides controlplane.jwt.secret when set.
const EnvControlPlaneSecret = "FILESERV_CONTROLPLANE_SECRET"

// MinJWTSecretLength is the shortest HMAC key the server accepts.
const MinJWTSecretLength = 32

const (
	defaultAPIPort      = 8080
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
)

// APIConfig configures the HTTP server that carries health probes, login,
// the admin API, link issuance and the public /s/{token} endpoints.
type APIConfig struct {
	// Port defaults to 8080.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port,omitempty"`

	// ReadTimeout bounds reading a whole request including its body.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout,omitempty"`

	// WriteTimeout bounds writing a response. Share link downloads clear it.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout,omitempty"`

	// IdleTimeout bounds keep-alive waits. Zero falls back to ReadTimeout.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout,omitempty"`

	JWT JWTConfig `mapstructure:"jwt" yaml:"jwt" json:"jwt"`
}

// JWTConfig holds the token signing key and lifetimes.
type JWTConfig struct {
	// Secret is the HMAC key, at least MinJWTSecretLength characters.
	// EnvControlPlaneSecret takes precedence.
	Secret string `mapstructure:"secret" yaml:"secret" json:"secret,omitempty"`

	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" yaml:"access_token_duration" json:"access_token_duration,omitempty"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" yaml:"refresh_token_duration" json:"refresh_token_duration,omitempty"`
}

// ApplyDefaults fills zero fields.
func (c *APIConfig) ApplyDefaults() {
	setDuration := func(d *time.Duration, def time.Duration) {
		if *d == 0 {
			*d = def
		}
	}
	if c.Port == 0 {
		c.Port = defaultAPIPort
	}
	setDuration(&c.ReadTimeout, defaultReadTimeout)
	setDuration(&c.WriteTimeout, defaultWriteTimeout)
	setDuration(&c.IdleTimeout, defaultIdleTimeout)
	setDuration(&c.JWT.AccessTokenDuration, defaultAccessTTL)
	setDuration(&c.JWT.RefreshTokenDuration, defaultRefreshTTL)
}

// Addr is the listen address.
func (c *APIConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GetJWTSecret returns the environment secret if set, else the configured one.
func (c *APIConfig) GetJWTSecret() string {
	env := os.Getenv(EnvControlPlaneSecret)
	if env == "" {
		return c.JWT.Secret
	}
	if c.JWT.Secret != "" && c.JWT.Secret != env {
		logger.Warn("JWT secret from environment overrides the configured value", "env_var", EnvControlPlaneSecret)
	}
	return env
}

// HasJWTSecret reports whether any secret is configured.
func (c *APIConfig) HasJWTSecret() bool {
	return c.GetJWTSecret() != ""
}

// signingSecret returns the secret, rejecting short keys.
func (c *APIConfig) signingSecret() (string, error) {
	secret := c.GetJWTSecret()
	if len(secret) < MinJWTSecretLength {
		return "", fmt.Errorf("JWT secret must be at least %d characters; set via %s env var or config",
			MinJWTSecretLength, EnvControlPlaneSecret)
	}
	return secret, nil
}
