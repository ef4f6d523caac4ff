package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRecord(t *testing.T) {
	metrics.InitRegistry()

	access := NewAccessMetrics()
	require.NotNil(t, access)
	access.RecordDecision("team", "write", false, "NoGrant")
	access.RecordDecision("team", "write", false, "NoGrant")
	access.RecordPathEscape("team")
	access.ObserveAuthorize(time.Millisecond)

	am := access.(*accessMetrics)
	assert.Equal(t, 2.0, testutil.ToFloat64(am.decisions.WithLabelValues("team", "write", metrics.ResultDenied, "NoGrant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.pathEscapes.WithLabelValues("team")))

	quota := NewQuotaMetrics()
	require.NotNil(t, quota)
	quota.RecordReservation(metrics.ResultAllowed, 100)
	quota.RecordReservation(metrics.ResultDenied, 100)
	quota.SetUsage("user:alice", "data", 42)
	quota.SetOverQuota(3)

	qm := quota.(*quotaMetrics)
	assert.Equal(t, 100.0, testutil.ToFloat64(qm.reserved))
	assert.Equal(t, 42.0, testutil.ToFloat64(qm.usage.WithLabelValues("user:alice", "data")))
	assert.Equal(t, 3.0, testutil.ToFloat64(qm.overQuota))

	links := NewLinkMetrics()
	require.NotNil(t, links)
	links.RecordAccess("download", "LinkLimitReached")
	links.RecordReaped(5)
	links.RecordReaped(0)
	assert.Equal(t, 5.0, testutil.ToFloat64(links.(*linkMetrics).reaped))

	capacity := NewCapacityMetrics()
	require.NotNil(t, capacity)
	capacity.SetCapacity("data", 1000, 400, 600)
	assert.Equal(t, 600.0, testutil.ToFloat64(capacity.(*capacityMetrics).bytes.WithLabelValues("data", "free")))

	ledger := NewLedgerMetrics()
	require.NotNil(t, ledger)
	ledger.ObserveApply(time.Millisecond, errors.New("disk full"))
	ledger.RecordGC(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(ledger.(*ledgerMetrics).applyErrors))
}

func TestNilReceiversAreNoops(t *testing.T) {
	var a *accessMetrics
	var q *quotaMetrics
	var l *linkMetrics
	var c *capacityMetrics
	var g *ledgerMetrics

	assert.NotPanics(t, func() {
		a.RecordDecision("z", "read", true, "")
		q.SetUsage("s", "p", 1)
		l.RecordAccess("view", "active")
		c.RecordRefreshError("p")
		g.RecordGC(true)
	})
}
