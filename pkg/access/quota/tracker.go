package quota

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fileserv/internal/logger"
	accesserrors "github.com/marmos91/fileserv/pkg/access/errors"
	"github.com/marmos91/fileserv/pkg/metrics"
)

// Reservation is a booking of bytes against an account. It is released
// automatically when the context passed to Reserve is cancelled before
// Commit.
type Reservation struct {
	ID        string
	Subject   Subject
	PoolID    string
	ZoneID    string
	Bytes     int64
	CreatedAt time.Time

	tracker *Tracker
	stop    func() bool
}

// Commit records actual bytes written and ends the reservation.
func (r *Reservation) Commit(actual int64) error {
	return r.tracker.Commit(r.ID, actual)
}

// Release drops the reservation without charging anything.
func (r *Reservation) Release() bool {
	return r.tracker.Release(r.ID)
}

type accountKey struct {
	subject Subject
	pool    string
}

type account struct {
	mu sync.Mutex

	used         int64            // committed, pool roll-up
	reserved     int64            // outstanding, pool roll-up
	zoneUsed     map[string]int64 // committed per zone
	zoneReserved map[string]int64 // outstanding per zone

	over bool
}

func newAccount() *account {
	return &account{
		zoneUsed:     make(map[string]int64),
		zoneReserved: make(map[string]int64),
	}
}

// current returns the usage a limit is compared against, including
// outstanding reservations when withReserved is set.
func (a *account) current(limit Limit, zoneID string, withReserved bool) int64 {
	if limit.PerZone {
		n := a.zoneUsed[zoneID]
		if withReserved {
			n += a.zoneReserved[zoneID]
		}
		return n
	}
	n := a.used
	if withReserved {
		n += a.reserved
	}
	return n
}

func (a *account) exceeds(limit Limit, zoneID string) bool {
	return !limit.Unlimited() && a.current(limit, zoneID, false) > limit.Bytes
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMetrics attaches quota metrics. Nil disables collection.
func WithMetrics(m metrics.QuotaMetrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithLedger persists committed usage. Defaults to a MemoryLedger.
func WithLedger(l Ledger) Option {
	return func(t *Tracker) { t.ledger = l }
}

// Tracker enforces quotas.
type Tracker struct {
	limits  LimitSource
	ledger  Ledger
	metrics metrics.QuotaMetrics

	mu           sync.Mutex
	accounts     map[accountKey]*account
	reservations map[string]*Reservation

	overAccounts atomic.Int64
}

// NewTracker creates a tracker and loads committed usage from the ledger.
func NewTracker(ctx context.Context, limits LimitSource, opts ...Option) (*Tracker, error) {
	if limits == nil {
		return nil, fmt.Errorf("quota tracker requires a limit source")
	}
	t := &Tracker{
		limits:       limits,
		accounts:     make(map[accountKey]*account),
		reservations: make(map[string]*Reservation),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.ledger == nil {
		t.ledger = NewMemoryLedger()
	}

	entries, err := t.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quota ledger: %w", err)
	}
	for _, e := range entries {
		if e.Used <= 0 {
			continue
		}
		acct := t.account(e.Subject, e.PoolID)
		acct.mu.Lock()
		acct.zoneUsed[e.ZoneID] += e.Used
		acct.used += e.Used
		t.reevaluate(acct, e.Subject, e.PoolID, e.ZoneID)
		acct.mu.Unlock()
	}

	logger.Debug("Quota tracker loaded", "entries", len(entries), "over_quota", t.overAccounts.Load())
	return t, nil
}

// Close closes the ledger.
func (t *Tracker) Close() error {
	return t.ledger.Close()
}

func (t *Tracker) account(subject Subject, poolID string) *account {
	key := accountKey{subject, poolID}

	t.mu.Lock()
	defer t.mu.Unlock()

	acct, ok := t.accounts[key]
	if !ok {
		acct = newAccount()
		t.accounts[key] = acct
	}
	return acct
}

// ============================================================================
// Reservations
// ============================================================================

// Reserve books bytes for subject in zoneID of poolID. It fails with a
// QuotaExceeded *AccessError when the booking does not fit the effective
// limit or the account is flagged over quota. Nothing is booked on
// failure.
func (t *Tracker) Reserve(ctx context.Context, subject Subject, poolID, zoneID string, bytes int64) (*Reservation, error) {
	if bytes < 0 || subject == "" || poolID == "" {
		return nil, fmt.Errorf("%w: subject=%q pool=%q bytes=%d", ErrInvalidReservation, subject, poolID, bytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := t.limits.Limit(subject, poolID, zoneID)
	acct := t.account(subject, poolID)

	acct.mu.Lock()
	if acct.over {
		acct.mu.Unlock()
		t.recordReservation(metrics.ResultDenied, bytes)
		return nil, accesserrors.New(accesserrors.ErrQuotaExceeded,
			fmt.Sprintf("%s is over quota in pool %s", subject, poolID), "")
	}
	if !limit.Unlimited() {
		// A write without a size hint still needs headroom.
		current := acct.current(limit, zoneID, true)
		if bytes > limit.Bytes-current || (bytes == 0 && current >= limit.Bytes) {
			acct.mu.Unlock()
			t.recordReservation(metrics.ResultDenied, bytes)
			logger.DebugCtx(ctx, "Quota reservation denied",
				logger.KeySubject, string(subject),
				logger.KeyPool, poolID,
				logger.KeyBytes, bytes,
				logger.KeyUsage, current,
				logger.KeyLimit, limit.Bytes)
			return nil, accesserrors.NewQuotaExceededError(string(subject), bytes, limit.Bytes)
		}
	}
	acct.reserved += bytes
	acct.zoneReserved[zoneID] += bytes
	acct.mu.Unlock()

	res := &Reservation{
		ID:        uuid.NewString(),
		Subject:   subject,
		PoolID:    poolID,
		ZoneID:    zoneID,
		Bytes:     bytes,
		CreatedAt: time.Now(),
		tracker:   t,
	}

	t.mu.Lock()
	t.reservations[res.ID] = res
	id := res.ID
	res.stop = context.AfterFunc(ctx, func() {
		if t.Release(id) {
			logger.Debug("Quota reservation released on cancellation", logger.KeyReservation, id)
		}
	})
	t.mu.Unlock()

	t.recordReservation(metrics.ResultAllowed, bytes)
	return res, nil
}

// take removes a reservation from the pending set.
func (t *Tracker) take(id string) (*Reservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.reservations[id]
	if ok {
		delete(t.reservations, id)
		res.stop()
	}
	return res, ok
}

// unbook removes the booking of res. Callers must hold acct.mu.
func unbook(acct *account, res *Reservation) {
	acct.reserved -= res.Bytes
	acct.zoneReserved[res.ZoneID] -= res.Bytes
	if acct.zoneReserved[res.ZoneID] <= 0 {
		delete(acct.zoneReserved, res.ZoneID)
	}
}

// Commit replaces the booking with the actual bytes written. When usage
// then exceeds the limit the account is flagged over quota; the write
// itself stands.
func (t *Tracker) Commit(id string, actual int64) error {
	res, ok := t.take(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	if actual < 0 {
		actual = 0
	}

	acct := t.account(res.Subject, res.PoolID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	unbook(acct, res)
	acct.used += actual
	acct.zoneUsed[res.ZoneID] += actual
	t.reevaluate(acct, res.Subject, res.PoolID, res.ZoneID)

	return t.persist(acct, res.Subject, res.PoolID, res.ZoneID)
}

// Release drops a reservation. It reports whether the reservation was
// still pending.
func (t *Tracker) Release(id string) bool {
	res, ok := t.take(id)
	if !ok {
		return false
	}

	acct := t.account(res.Subject, res.PoolID)
	acct.mu.Lock()
	unbook(acct, res)
	acct.mu.Unlock()
	return true
}

// ReleaseUsage records a deletion of bytes, floored at zero usage. It
// clears the over quota flag once usage is back within the limit.
func (t *Tracker) ReleaseUsage(subject Subject, poolID, zoneID string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}

	acct := t.account(subject, poolID)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	dec := min(bytes, acct.zoneUsed[zoneID])
	acct.zoneUsed[zoneID] -= dec
	if acct.zoneUsed[zoneID] == 0 {
		delete(acct.zoneUsed, zoneID)
	}
	acct.used = max(acct.used-dec, 0)
	t.reevaluate(acct, subject, poolID, zoneID)

	return t.persist(acct, subject, poolID, zoneID)
}

// reevaluate updates the over quota flag after usage changed in zoneID.
// Callers must hold acct.mu.
func (t *Tracker) reevaluate(acct *account, subject Subject, poolID, zoneID string) {
	over, ok := t.firstOverZone(acct, subject, poolID, zoneID)
	switch {
	case ok && !acct.over:
		acct.over = true
		t.setOverCount(t.overAccounts.Add(1))
		limit := t.limits.Limit(subject, poolID, over)
		logger.Warn("Account over quota",
			logger.KeySubject, string(subject),
			logger.KeyPool, poolID,
			logger.KeyZone, over,
			logger.KeyUsage, acct.current(limit, over, false),
			logger.KeyLimit, limit.Bytes)
	case !ok && acct.over:
		acct.over = false
		t.setOverCount(t.overAccounts.Add(-1))
		logger.Info("Account back within quota", logger.KeySubject, string(subject), logger.KeyPool, poolID)
	}
}

// firstOverZone returns a zone whose effective limit the account exceeds,
// checking changed first and then every zone with committed usage.
func (t *Tracker) firstOverZone(acct *account, subject Subject, poolID, changed string) (string, bool) {
	if acct.exceeds(t.limits.Limit(subject, poolID, changed), changed) {
		return changed, true
	}
	zones := make([]string, 0, len(acct.zoneUsed))
	for z := range acct.zoneUsed {
		if z != changed {
			zones = append(zones, z)
		}
	}
	sort.Strings(zones)
	for _, z := range zones {
		if acct.exceeds(t.limits.Limit(subject, poolID, z), z) {
			return z, true
		}
	}
	return "", false
}

// persist writes the zone entry to the ledger. Callers must hold acct.mu,
// which keeps ledger writes for one account in order.
func (t *Tracker) persist(acct *account, subject Subject, poolID, zoneID string) error {
	if t.metrics != nil {
		t.metrics.SetUsage(string(subject), poolID, acct.used)
	}
	entry := Entry{Subject: subject, PoolID: poolID, ZoneID: zoneID, Used: acct.zoneUsed[zoneID]}
	if err := t.ledger.Apply(context.Background(), entry); err != nil {
		logger.Error("Quota ledger write failed", logger.KeySubject, string(subject), logger.KeyError, err)
		return fmt.Errorf("persist quota usage: %w", err)
	}
	return nil
}

func (t *Tracker) recordReservation(result string, bytes int64) {
	if t.metrics != nil {
		t.metrics.RecordReservation(result, bytes)
	}
}

func (t *Tracker) setOverCount(n int64) {
	if t.metrics != nil {
		t.metrics.SetOverQuota(int(n))
	}
}

// ============================================================================
// Reporting
// ============================================================================

// Usage reports the account of subject in poolID. Limit is the pool-level
// effective limit.
func (t *Tracker) Usage(subject Subject, poolID string) Usage {
	acct := t.account(subject, poolID)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return t.usageLocked(acct, subject, poolID)
}

func (t *Tracker) usageLocked(acct *account, subject Subject, poolID string) Usage {
	zones := make(map[string]int64, len(acct.zoneUsed))
	for z, n := range acct.zoneUsed {
		zones[z] = n
	}
	return Usage{
		Subject:   subject,
		PoolID:    poolID,
		Used:      acct.used,
		Reserved:  acct.reserved,
		Limit:     t.limits.Limit(subject, poolID, "").Bytes,
		OverQuota: acct.over,
		Zones:     zones,
	}
}

// SubjectUsage reports every account of subject, ordered by pool.
func (t *Tracker) SubjectUsage(subject Subject) []Usage {
	var out []Usage
	for key, acct := range t.snapshotAccounts() {
		if key.subject != subject {
			continue
		}
		acct.mu.Lock()
		out = append(out, t.usageLocked(acct, key.subject, key.pool))
		acct.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out
}

// OverQuota reports every account flagged over quota, ordered by subject
// and pool.
func (t *Tracker) OverQuota() []Usage {
	var out []Usage
	for key, acct := range t.snapshotAccounts() {
		acct.mu.Lock()
		if acct.over {
			out = append(out, t.usageLocked(acct, key.subject, key.pool))
		}
		acct.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].PoolID < out[j].PoolID
	})
	return out
}

// Pending returns the number of outstanding reservations.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.reservations)
}

func (t *Tracker) snapshotAccounts() map[accountKey]*account {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[accountKey]*account, len(t.accounts))
	for k, v := range t.accounts {
		out[k] = v
	}
	return out
}
