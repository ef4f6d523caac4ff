// Package metrics provides Prometheus metrics collection for fileserv
// components.
//
// All metrics are optional - if not initialized, constructors in
// pkg/metrics/prometheus return nil and components skip recording with zero
// overhead. Components depend only on the interfaces declared here.
//
// Usage:
//
//	// Initialize global registry (typically in the start command)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	accessMetrics := prometheus.NewAccessMetrics()
//	pipe := pipeline.New(reg, tracker, pipeline.WithMetrics(accessMetrics))
//
//	// Or use nil for no-op behavior
//	pipe := pipeline.New(reg, tracker)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all fileserv metrics.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
