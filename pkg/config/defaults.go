package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/fileserv/internal/bytesize"
	"github.com/marmos91/fileserv/pkg/access/sharelink"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
	"github.com/marmos91/fileserv/pkg/diskstats"
)

// Defaults for sections not covered by their own packages.
const (
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMetricsPort      = 9090
	DefaultLedgerGCInterval = 10 * time.Minute
	DefaultLedgerCacheSize  = 8 * bytesize.MiB
	DefaultAdminUsername    = "admin"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	applyDatabaseDefaults(&cfg.Database)
	applyMetricsDefaults(&cfg.Metrics)
	cfg.ControlPlane.ApplyDefaults()
	applyQuotaDefaults(&cfg.Quota)
	applyLinksDefaults(&cfg.Links)
	if cfg.DiskStats.RefreshInterval == 0 {
		cfg.DiskStats.RefreshInterval = diskstats.DefaultRefreshInterval
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = DefaultAdminUsername
	}
}

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

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyQuotaDefaults(cfg *QuotaConfig) {
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = filepath.Join(GetStateDir(), "quota")
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultLedgerGCInterval
	}
	if cfg.BlockCacheSize == 0 {
		cfg.BlockCacheSize = DefaultLedgerCacheSize
	}
}

func applyLinksDefaults(cfg *LinksConfig) {
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = sharelink.DefaultTokenBytes
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = models.DefaultBcryptCost
	}
	// ReapInterval stays 0: the reaper is opt-in.
}

// GetDefaultConfig returns a Config with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{Type: store.DatabaseTypeSQLite},
	}
	ApplyDefaults(cfg)
	return cfg
}
