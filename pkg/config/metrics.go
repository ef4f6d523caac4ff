package config

import (
	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/marmos91/fileserv/pkg/metrics/prometheus"
)

// MetricsResult holds the metrics server and the per-component collectors.
// Every field is nil when metrics are disabled, which components treat as
// no-op.
type MetricsResult struct {
	Server   *metrics.Server
	Access   metrics.AccessMetrics
	Quota    metrics.QuotaMetrics
	Links    metrics.LinkMetrics
	Capacity metrics.CapacityMetrics
	Ledger   metrics.LedgerMetrics
}

// InitializeMetrics initializes the metrics registry and creates the
// collectors and HTTP server when metrics are enabled.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	metrics.InitRegistry()
	return MetricsResult{
		Server:   metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Access:   prometheus.NewAccessMetrics(),
		Quota:    prometheus.NewQuotaMetrics(),
		Links:    prometheus.NewLinkMetrics(),
		Capacity: prometheus.NewCapacityMetrics(),
		Ledger:   prometheus.NewLedgerMetrics(),
	}
}
