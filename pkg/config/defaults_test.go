package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "warn", Format: "json", Output: "stderr"},
		ShutdownTimeout: 5 * time.Second,
		Metrics:         MetricsConfig{Enabled: true, Port: 9191},
		Links:           LinksConfig{TokenBytes: 48, BcryptCost: 12},
		DiskStats:       DiskStatsConfig{RefreshInterval: 10 * time.Second},
		Admin:           AdminConfig{Username: "root"},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, 48, cfg.Links.TokenBytes)
	assert.Equal(t, 12, cfg.Links.BcryptCost)
	assert.Equal(t, 10*time.Second, cfg.DiskStats.RefreshInterval)
	assert.Equal(t, "root", cfg.Admin.Username)
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, "http://localhost:4040", cfg.Telemetry.Profiling.Endpoint)
	assert.Contains(t, cfg.Telemetry.Profiling.ProfileTypes, "cpu")
	assert.False(t, cfg.Metrics.Enabled)
	assert.Zero(t, cfg.Metrics.Port)
	assert.Equal(t, 8080, cfg.ControlPlane.Port)
	assert.Equal(t, filepath.Join(state, "fileserv", "quota"), cfg.Quota.LedgerPath)
	assert.Equal(t, DefaultLedgerGCInterval, cfg.Quota.GCInterval)
	assert.Equal(t, 10, cfg.Links.BcryptCost)
	assert.Zero(t, cfg.Links.ReapInterval)
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, Validate(GetDefaultConfig()))
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	res := InitializeMetrics(GetDefaultConfig())
	assert.Nil(t, res.Server)
	assert.Nil(t, res.Access)
	assert.Nil(t, res.Quota)
	assert.Nil(t, res.Links)
	assert.Nil(t, res.Capacity)
	assert.Nil(t, res.Ledger)
}

func TestInitializeMetrics_Enabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9191

	res := InitializeMetrics(cfg)
	assert.NotNil(t, res.Server)
	assert.NotNil(t, res.Access)
	assert.NotNil(t, res.Quota)
	assert.NotNil(t, res.Links)
	assert.NotNil(t, res.Capacity)
	assert.NotNil(t, res.Ledger)
	assert.Equal(t, 9191, res.Server.Port())
}
