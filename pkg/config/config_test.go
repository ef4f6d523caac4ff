package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fileserv/internal/bytesize"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
)

// yamlSafePath keeps Windows paths from being read as YAML escapes.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
logging:
  level: "info"

database:
  type: sqlite
  sqlite:
    path: "`+yamlSafePath(dir)+`/controlplane.db"

controlplane:
  port: 8081
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8081, cfg.ControlPlane.Port)
	assert.Equal(t, 15*time.Minute, cfg.ControlPlane.JWT.AccessTokenDuration)
	assert.Equal(t, 32, cfg.Links.TokenBytes)
	assert.Equal(t, time.Duration(0), cfg.Links.ReapInterval)
	assert.Equal(t, time.Minute, cfg.DiskStats.RefreshInterval)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, DefaultLedgerCacheSize, cfg.Quota.BlockCacheSize)
}

func TestLoad_DecodesDurationsAndSizes(t *testing.T) {
	path := writeConfig(t, `
shutdown_timeout: 45s
quota:
  ledger_path: /var/lib/fileserv/quota
  gc_interval: 1h
  block_cache_size: 16Mi
links:
  default_expiry: 168h
  reap_interval: 15m
  bcrypt_cost: 12
disk_stats:
  refresh_interval: 30s
controlplane:
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
    access_token_duration: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/fileserv/quota", cfg.Quota.LedgerPath)
	assert.Equal(t, time.Hour, cfg.Quota.GCInterval)
	assert.Equal(t, 16*bytesize.MiB, cfg.Quota.BlockCacheSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Links.DefaultExpiry)
	assert.Equal(t, 15*time.Minute, cfg.Links.ReapInterval)
	assert.Equal(t, 12, cfg.Links.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.DiskStats.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.ControlPlane.JWT.AccessTokenDuration)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.ControlPlane.Port)
	assert.Equal(t, store.DatabaseTypeSQLite, cfg.Database.Type)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
`)
	t.Setenv("FILESERV_LOGGING_LEVEL", "debug")
	t.Setenv("FILESERV_CONTROLPLANE_PORT", "9999")
	t.Setenv("FILESERV_LINKS_REAP_INTERVAL", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 9999, cfg.ControlPlane.Port)
	assert.Equal(t, 2*time.Minute, cfg.Links.ReapInterval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad level", "logging:\n  level: LOUD\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"bad duration", "shutdown_timeout: soon\n"},
		{"bad size", "quota:\n  block_cache_size: lots\n"},
		{"short token", "links:\n  token_bytes: 4\n"},
		{"bad port", "controlplane:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "logging: [unterminated\n"))
	assert.Error(t, err)
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := MustLoad(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fileserv init --config")

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err = MustLoad("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fileserv init")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.ControlPlane.JWT.Secret = "test-secret-key-for-testing-minimum-32-chars"
	cfg.Links.ReapInterval = time.Hour
	cfg.Quota.BlockCacheSize = 32 * bytesize.MiB

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ControlPlane.JWT.Secret, loaded.ControlPlane.JWT.Secret)
	assert.Equal(t, time.Hour, loaded.Links.ReapInterval)
	assert.Equal(t, 32*bytesize.MiB, loaded.Quota.BlockCacheSize)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\n")

	var level atomic.Value
	require.NoError(t, Watch(path, func(cfg *Config) {
		level.Store(cfg.Logging.Level)
	}, nil))

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: WARN\n"), 0600))

	assert.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "WARN"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}

func TestGetConfigDir_UsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "fileserv"), GetConfigDir())
	assert.Equal(t, filepath.Join(dir, "fileserv", "config.yaml"), GetDefaultConfigPath())
	assert.False(t, DefaultConfigExists())
}
