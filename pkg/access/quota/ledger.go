package quota

import (
	"context"
	"sync"
)

// Entry is the committed usage of a subject in one zone of a pool.
type Entry struct {
	Subject Subject `json:"subject"`
	PoolID  string  `json:"pool_id"`
	ZoneID  string  `json:"zone_id"`
	Used    int64   `json:"used"`
}

// Ledger persists committed usage so it survives restarts. Apply stores the
// absolute value of an entry; an entry with Used 0 may be dropped.
//
// Implementations must be safe for concurrent use.
type Ledger interface {
	Load(ctx context.Context) ([]Entry, error)
	Apply(ctx context.Context, entry Entry) error
	Close() error
}

type ledgerKey struct {
	subject Subject
	pool    string
	zone    string
}

// MemoryLedger keeps usage in memory. Used by tests and deployments that
// recompute usage at startup.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[ledgerKey]int64
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger(initial ...Entry) *MemoryLedger {
	l := &MemoryLedger{entries: make(map[ledgerKey]int64)}
	for _, e := range initial {
		l.entries[ledgerKey{e.Subject, e.PoolID, e.ZoneID}] = e.Used
	}
	return l
}

// Load returns every stored entry.
func (l *MemoryLedger) Load(_ context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for k, used := range l.entries {
		out = append(out, Entry{Subject: k.subject, PoolID: k.pool, ZoneID: k.zone, Used: used})
	}
	return out, nil
}

// Apply stores entry.
func (l *MemoryLedger) Apply(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{entry.Subject, entry.PoolID, entry.ZoneID}
	if entry.Used <= 0 {
		delete(l.entries, key)
		return nil
	}
	l.entries[key] = entry.Used
	return nil
}

// Close is a no-op.
func (l *MemoryLedger) Close() error {
	return nil
}
