package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pool1 = "pool-1"
	zoneA = "zone-a"
	zoneB = "zone-b"
)

var alice = UserSubject("alice")

func fixedLimit(bytes int64) LimitSource {
	return LimitFunc(func(Subject, string, string) Limit { return Limit{Bytes: bytes} })
}

func newTracker(t *testing.T, limits LimitSource, opts ...Option) *Tracker {
	t.Helper()
	tr, err := NewTracker(context.Background(), limits, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestSubject(t *testing.T) {
	assert.Equal(t, Subject("user:alice"), UserSubject("alice"))
	assert.True(t, GroupSubject("eng").IsGroup())
	assert.False(t, alice.IsGroup())
	assert.Equal(t, "eng", GroupSubject("eng").Name())
	assert.Equal(t, "bare", Subject("bare").Name())
}

func TestEffectiveLimit(t *testing.T) {
	pool := &models.StoragePool{DefaultUserQuota: 100, DefaultGroupQuota: 1000}
	zone := &models.ShareZone{MaxQuotaPerUser: 10}

	assert.Equal(t, Limit{Bytes: 10, PerZone: true}, EffectiveLimit(alice, pool, zone))
	assert.Equal(t, Limit{Bytes: 100}, EffectiveLimit(alice, pool, &models.ShareZone{}))
	assert.Equal(t, Limit{Bytes: 100}, EffectiveLimit(alice, pool, nil))
	assert.Equal(t, Limit{Bytes: 1000}, EffectiveLimit(GroupSubject("eng"), pool, zone))
	assert.True(t, EffectiveLimit(alice, nil, nil).Unlimited())
}

func TestReserveCommit(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), tr.Usage(alice, pool1).Reserved)

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 50)
	require.Error(t, err)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err))

	require.NoError(t, res.Commit(40))
	u := tr.Usage(alice, pool1)
	assert.Equal(t, int64(40), u.Used)
	assert.Equal(t, int64(0), u.Reserved)
	assert.Equal(t, int64(100), u.Limit)
	assert.Equal(t, int64(40), u.Zones[zoneA])

	// Committing twice is an error.
	assert.ErrorIs(t, res.Commit(40), ErrReservationNotFound)

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 60)
	assert.NoError(t, err, "exactly at the limit must fit")
}

func TestReserveRejectsInvalidInput(t *testing.T) {
	tr := newTracker(t, fixedLimit(0))

	_, err := tr.Reserve(context.Background(), alice, pool1, zoneA, -1)
	assert.ErrorIs(t, err, ErrInvalidReservation)
	_, err = tr.Reserve(context.Background(), "", pool1, zoneA, 1)
	assert.ErrorIs(t, err, ErrInvalidReservation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnlimited(t *testing.T) {
	tr := newTracker(t, fixedLimit(0))

	res, err := tr.Reserve(context.Background(), alice, pool1, zoneA, 1<<50)
	require.NoError(t, err)
	require.NoError(t, res.Commit(1<<50))
	assert.False(t, tr.Usage(alice, pool1).OverQuota)
}

func TestRelease(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))

	res, err := tr.Reserve(context.Background(), alice, pool1, zoneA, 100)
	require.NoError(t, err)
	assert.True(t, res.Release())
	assert.False(t, res.Release(), "second release is a no-op")
	assert.Equal(t, int64(0), tr.Usage(alice, pool1).Reserved)
	assert.Equal(t, 0, tr.Pending())
}

func TestReleaseOnCancellation(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))
	ctx, cancel := context.WithCancel(context.Background())

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 100)
	require.NoError(t, err)
	require.Equal(t, 1, tr.Pending())

	cancel()
	require.Eventually(t, func() bool { return tr.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), tr.Usage(alice, pool1).Reserved)
	assert.ErrorIs(t, res.Commit(10), ErrReservationNotFound)

	_, err = tr.Reserve(context.Background(), alice, pool1, zoneA, 100)
	assert.NoError(t, err)
}

func TestCommitStopsCancellation(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))
	ctx, cancel := context.WithCancel(context.Background())

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 50)
	require.NoError(t, err)
	require.NoError(t, res.Commit(50))
	cancel()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(50), tr.Usage(alice, pool1).Used)
}

func TestOverQuotaFlag(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 10)
	require.NoError(t, err)
	// The upload turned out bigger than declared.
	require.NoError(t, res.Commit(150))

	u := tr.Usage(alice, pool1)
	assert.True(t, u.OverQuota)
	require.Len(t, tr.OverQuota(), 1)
	assert.Equal(t, alice, tr.OverQuota()[0].Subject)

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 1)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err))

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 0)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err), "sizeless writes are denied too")

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 40))
	assert.True(t, tr.Usage(alice, pool1).OverQuota, "still above the limit")

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 10))
	assert.False(t, tr.Usage(alice, pool1).OverQuota, "back at the limit")
	assert.Empty(t, tr.OverQuota())
}

func TestSizelessWriteNeedsHeadroom(t *testing.T) {
	tr := newTracker(t, fixedLimit(50))
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 0)
	require.NoError(t, err)
	require.NoError(t, res.Commit(1000))
	assert.True(t, tr.Usage(alice, pool1).OverQuota)

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 0)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err))

	// Exactly at the limit leaves no room for a write of unknown size.
	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 950))
	assert.False(t, tr.Usage(alice, pool1).OverQuota)
	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 0)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err))

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 1))
	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 0)
	assert.NoError(t, err)
}

func TestOverQuotaAcrossZones(t *testing.T) {
	limits := LimitFunc(func(Subject, string, string) Limit { return Limit{Bytes: 10, PerZone: true} })
	ledger := NewMemoryLedger(
		Entry{Subject: alice, PoolID: pool1, ZoneID: zoneA, Used: 20},
		Entry{Subject: alice, PoolID: pool1, ZoneID: zoneB, Used: 20},
	)
	tr := newTracker(t, limits, WithLedger(ledger))
	ctx := context.Background()
	require.Len(t, tr.OverQuota(), 1)

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 20))
	assert.True(t, tr.Usage(alice, pool1).OverQuota, "zone B is still over its limit")
	_, err := tr.Reserve(ctx, alice, pool1, zoneA, 1)
	assert.Equal(t, accesserrors.ErrQuotaExceeded, accesserrors.CodeOf(err))

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneB, 15))
	assert.False(t, tr.Usage(alice, pool1).OverQuota)
	assert.Empty(t, tr.OverQuota())
}

func TestReleaseUsageFloorsAtZero(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))

	res, err := tr.Reserve(context.Background(), alice, pool1, zoneA, 10)
	require.NoError(t, err)
	require.NoError(t, res.Commit(10))

	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 1000))
	require.NoError(t, tr.ReleaseUsage(alice, pool1, zoneB, 5))
	u := tr.Usage(alice, pool1)
	assert.Equal(t, int64(0), u.Used)
	assert.Empty(t, u.Zones)
	assert.NoError(t, tr.ReleaseUsage(alice, pool1, zoneA, 0))
}

func TestPerZoneLimit(t *testing.T) {
	limits := LimitFunc(func(_ Subject, _, zoneID string) Limit {
		if zoneID == zoneA {
			return Limit{Bytes: 10, PerZone: true}
		}
		return Limit{Bytes: 100}
	})
	tr := newTracker(t, limits)
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 10)
	require.NoError(t, err)
	require.NoError(t, res.Commit(10))

	_, err = tr.Reserve(ctx, alice, pool1, zoneA, 1)
	assert.Error(t, err, "zone override is exhausted")

	_, err = tr.Reserve(ctx, alice, pool1, zoneB, 90)
	assert.NoError(t, err, "other zones count against the pool roll-up")
}

func TestConcurrentReservationsNeverOvershoot(t *testing.T) {
	const (
		limit   = 1000
		size    = 100
		workers = 50
	)
	tr := newTracker(t, fixedLimit(limit))

	var (
		wg      sync.WaitGroup
		success atomic.Int64
		denied  atomic.Int64
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := tr.Reserve(context.Background(), alice, pool1, zoneA, size)
			if err != nil {
				if accesserrors.HasCode(err, accesserrors.ErrQuotaExceeded) {
					denied.Add(1)
				}
				return
			}
			success.Add(1)
			_ = res.Commit(size)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(limit/size), success.Load())
	assert.Equal(t, int64(workers-limit/size), denied.Load())
	assert.Equal(t, int64(limit), tr.Usage(alice, pool1).Used)
}

func TestLastUnitContention(t *testing.T) {
	tr := newTracker(t, fixedLimit(100))
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 99)
	require.NoError(t, err)
	require.NoError(t, res.Commit(99))

	var (
		wg      sync.WaitGroup
		success atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tr.Reserve(ctx, alice, pool1, zoneA, 1); err == nil {
				success.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), success.Load())
}

func TestAccountsAreIndependent(t *testing.T) {
	tr := newTracker(t, fixedLimit(10))
	ctx := context.Background()

	_, err := tr.Reserve(ctx, alice, pool1, zoneA, 10)
	require.NoError(t, err)
	_, err = tr.Reserve(ctx, UserSubject("bob"), pool1, zoneA, 10)
	require.NoError(t, err)
	_, err = tr.Reserve(ctx, alice, "pool-2", zoneA, 10)
	require.NoError(t, err)
}

func TestLedgerPersistence(t *testing.T) {
	ledger := NewMemoryLedger()
	tr := newTracker(t, fixedLimit(100), WithLedger(ledger))
	ctx := context.Background()

	res, err := tr.Reserve(ctx, alice, pool1, zoneA, 30)
	require.NoError(t, err)
	require.NoError(t, res.Commit(30))

	entries, err := ledger.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Subject: alice, PoolID: pool1, ZoneID: zoneA, Used: 30}, entries[0])

	// A new tracker over the same ledger resumes from committed usage.
	restarted := newTracker(t, fixedLimit(100), WithLedger(ledger))
	assert.Equal(t, int64(30), restarted.Usage(alice, pool1).Used)

	require.NoError(t, restarted.ReleaseUsage(alice, pool1, zoneA, 30))
	entries, err = ledger.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFlagsOverQuota(t *testing.T) {
	ledger := NewMemoryLedger(Entry{Subject: alice, PoolID: pool1, ZoneID: zoneA, Used: 500})
	tr := newTracker(t, fixedLimit(100), WithLedger(ledger))

	assert.True(t, tr.Usage(alice, pool1).OverQuota)
}

type failingLedger struct{ *MemoryLedger }

func (failingLedger) Apply(context.Context, Entry) error { return errors.New("disk full") }

func TestCommitReportsLedgerFailure(t *testing.T) {
	tr := newTracker(t, fixedLimit(100), WithLedger(failingLedger{NewMemoryLedger()}))

	res, err := tr.Reserve(context.Background(), alice, pool1, zoneA, 10)
	require.NoError(t, err)
	assert.Error(t, res.Commit(10))
	// In-memory usage still reflects the write.
	assert.Equal(t, int64(10), tr.Usage(alice, pool1).Used)
}

func TestSubjectUsage(t *testing.T) {
	tr := newTracker(t, fixedLimit(0))
	ctx := context.Background()

	for _, p := range []string{"pool-b", "pool-a"} {
		res, err := tr.Reserve(ctx, alice, p, zoneA, 5)
		require.NoError(t, err)
		require.NoError(t, res.Commit(5))
	}

	usage := tr.SubjectUsage(alice)
	require.Len(t, usage, 2)
	assert.Equal(t, "pool-a", usage[0].PoolID)
	assert.Empty(t, tr.SubjectUsage(UserSubject("nobody")))
}
