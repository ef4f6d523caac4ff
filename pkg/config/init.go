package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned when init would overwrite a file without force.
var ErrConfigExists = errors.New("configuration file already exists")

const configHeader = `# fileserv configuration file
#
# Generated by 'fileserv init'. Every key can be overridden with an
# environment variable: FILESERV_<SECTION>_<KEY>, e.g. FILESERV_LOGGING_LEVEL.
# Pools, zones and permissions live in the database; manage them with
# 'fileserv pool', 'fileserv zone' or the REST API.
#
# The JWT secret below was generated for development use. In production set
# FILESERV_CONTROLPLANE_SECRET instead.

`

// NewInitialConfig returns the default configuration with a freshly
// generated JWT secret.
func NewInitialConfig() (*Config, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}
	cfg := GetDefaultConfig()
	cfg.ControlPlane.JWT.Secret = secret
	return cfg, nil
}

// InitConfig writes a sample configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	cfg, err := NewInitialConfig()
	if err != nil {
		return err
	}
	return WriteInitialConfig(cfg, path, force)
}

// WriteInitialConfig writes cfg with an explanatory header. An existing
// file is only replaced when force is set.
func WriteInitialConfig(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
