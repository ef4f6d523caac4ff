package metrics

import "time"

// Outcome labels shared by the metrics interfaces.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// AccessMetrics observes the operation pipeline.
//
// Implementations must be safe for concurrent use. Pass nil to disable
// collection.
type AccessMetrics interface {
	// RecordDecision records an authorization outcome. reason is the denial
	// code name ("NoGrant", "PathEscape", ...) or empty when allowed.
	RecordDecision(zone, kind string, allowed bool, reason string)

	// RecordPathEscape counts a traversal attempt against a zone.
	RecordPathEscape(zone string)

	// ObserveAuthorize records how long a full pipeline pass took.
	ObserveAuthorize(duration time.Duration)
}

// QuotaMetrics observes the quota tracker.
type QuotaMetrics interface {
	// RecordReservation counts a reservation attempt by result
	// ("allowed", "denied").
	RecordReservation(result string, bytes int64)

	// SetUsage publishes committed usage of a subject in a pool.
	SetUsage(subject, pool string, bytes int64)

	// SetOverQuota publishes the number of accounts flagged over quota.
	SetOverQuota(accounts int)
}

// LinkMetrics observes share link traffic.
type LinkMetrics interface {
	// RecordAccess counts a link access by action ("view", "download",
	// "resolve") and result (the link state or denial code name).
	RecordAccess(action, result string)

	// RecordReaped counts links soft deleted by the reaper.
	RecordReaped(count int64)
}

// LedgerMetrics observes the durable quota ledger.
type LedgerMetrics interface {
	// ObserveApply records a ledger write.
	ObserveApply(duration time.Duration, err error)

	// RecordGC records a value log garbage collection pass; rewritten is
	// false when there was nothing to collect.
	RecordGC(rewritten bool)
}

// CapacityMetrics observes pool capacity refreshes.
type CapacityMetrics interface {
	// SetCapacity publishes the capacity figures of a pool.
	SetCapacity(pool string, total, used, free int64)

	// RecordRefreshError counts a failed statfs on a pool root.
	RecordRefreshError(pool string)
}
