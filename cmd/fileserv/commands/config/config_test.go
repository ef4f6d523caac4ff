package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileserv/pkg/config"
)

func TestSchemaUsesYAMLNames(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "controlplane")
	assert.Contains(t, props, "quota")
	assert.Contains(t, props, "shutdown_timeout")

	timeout := props["shutdown_timeout"].(map[string]any)
	assert.Equal(t, "string", timeout["type"])

	quota := props["quota"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, quota["block_cache_size"], "oneOf")
}

func TestRedactSecrets(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.ControlPlane.JWT.Secret = "s"
	cfg.Admin.PasswordHash = "h"

	redactSecrets(cfg)
	assert.Equal(t, redacted, cfg.ControlPlane.JWT.Secret)
	assert.Equal(t, redacted, cfg.Admin.PasswordHash)
	assert.Empty(t, cfg.Database.Postgres.Password)
}

func TestWarnings(t *testing.T) {
	t.Setenv("FILESERV_CONTROLPLANE_SECRET", "")
	cfg := config.GetDefaultConfig()
	cfg.Quota.LedgerPath = ""

	warnings := Warnings(cfg)
	assert.Len(t, warnings, 4)

	cfg.ControlPlane.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Quota.LedgerPath = "/var/lib/fileserv/quota"
	cfg.Admin.PasswordHash = "$2a$10$x"
	cfg.Links.DefaultExpiry = 1
	assert.Empty(t, Warnings(cfg))
}
