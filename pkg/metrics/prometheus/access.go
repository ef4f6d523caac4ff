// Package prometheus implements the pkg/metrics interfaces with
// Prometheus collectors registered on the global metrics registry.
package prometheus

import (
	"time"

	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================================
// Access pipeline
// ============================================================================

type accessMetrics struct {
	decisions   *prometheus.CounterVec
	pathEscapes *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewAccessMetrics creates Prometheus-backed pipeline metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAccessMetrics() metrics.AccessMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &accessMetrics{
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserv_access_decisions_total",
				Help: "Total number of authorization decisions by zone, kind and outcome",
			},
			[]string{"zone", "kind", "result", "reason"},
		),
		pathEscapes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserv_access_path_escapes_total",
				Help: "Total number of path traversal attempts by zone",
			},
			[]string{"zone"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fileserv_access_authorize_duration_milliseconds",
				Help:    "Duration of a full authorize pass in milliseconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 50},
			},
		),
	}
}

func (m *accessMetrics) RecordDecision(zone, kind string, allowed bool, reason string) {
	if m == nil {
		return
	}
	result := metrics.ResultAllowed
	if !allowed {
		result = metrics.ResultDenied
	}
	m.decisions.WithLabelValues(zone, kind, result, reason).Inc()
}

func (m *accessMetrics) RecordPathEscape(zone string) {
	if m == nil {
		return
	}
	m.pathEscapes.WithLabelValues(zone).Inc()
}

func (m *accessMetrics) ObserveAuthorize(duration time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(float64(duration.Microseconds()) / 1000.0)
}

// ============================================================================
// Quota
// ============================================================================

type quotaMetrics struct {
	reservations *prometheus.CounterVec
	reserved     prometheus.Counter
	usage        *prometheus.GaugeVec
	overQuota    prometheus.Gauge
}

// NewQuotaMetrics creates Prometheus-backed quota metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewQuotaMetrics() metrics.QuotaMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &quotaMetrics{
		reservations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserv_quota_reservations_total",
				Help: "Total number of quota reservations by result",
			},
			[]string{"result"},
		),
		reserved: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fileserv_quota_reserved_bytes_total",
				Help: "Total bytes reserved by successful reservations",
			},
		),
		usage: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fileserv_quota_usage_bytes",
				Help: "Committed usage by subject and pool",
			},
			[]string{"subject", "pool"},
		),
		overQuota: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fileserv_quota_over_quota_accounts",
				Help: "Number of accounts currently flagged over quota",
			},
		),
	}
}

func (m *quotaMetrics) RecordReservation(result string, bytes int64) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
	if result == metrics.ResultAllowed && bytes > 0 {
		m.reserved.Add(float64(bytes))
	}
}

func (m *quotaMetrics) SetUsage(subject, pool string, bytes int64) {
	if m == nil {
		return
	}
	m.usage.WithLabelValues(subject, pool).Set(float64(bytes))
}

func (m *quotaMetrics) SetOverQuota(accounts int) {
	if m == nil {
		return
	}
	m.overQuota.Set(float64(accounts))
}

// ============================================================================
// Share links
// ============================================================================

type linkMetrics struct {
	accesses *prometheus.CounterVec
	reaped   prometheus.Counter
}

// NewLinkMetrics creates Prometheus-backed share link metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLinkMetrics() metrics.LinkMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &linkMetrics{
		accesses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserv_link_accesses_total",
				Help: "Total number of share link accesses by action and result",
			},
			[]string{"action", "result"},
		),
		reaped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fileserv_link_reaped_total",
				Help: "Total number of share links soft deleted by the reaper",
			},
		),
	}
}

func (m *linkMetrics) RecordAccess(action, result string) {
	if m == nil {
		return
	}
	m.accesses.WithLabelValues(action, result).Inc()
}

func (m *linkMetrics) RecordReaped(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.reaped.Add(float64(count))
}

// ============================================================================
// Pool capacity
// ============================================================================

type capacityMetrics struct {
	bytes  *prometheus.GaugeVec
	errors *prometheus.CounterVec
}

// NewCapacityMetrics creates Prometheus-backed pool capacity metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCapacityMetrics() metrics.CapacityMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &capacityMetrics{
		bytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fileserv_pool_capacity_bytes",
				Help: "Pool capacity figures by pool and kind",
			},
			[]string{"pool", "kind"}, // "total", "used", "free"
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fileserv_pool_capacity_refresh_errors_total",
				Help: "Total number of failed capacity refreshes by pool",
			},
			[]string{"pool"},
		),
	}
}

func (m *capacityMetrics) SetCapacity(pool string, total, used, free int64) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(pool, "total").Set(float64(total))
	m.bytes.WithLabelValues(pool, "used").Set(float64(used))
	m.bytes.WithLabelValues(pool, "free").Set(float64(free))
}

func (m *capacityMetrics) RecordRefreshError(pool string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(pool).Inc()
}
