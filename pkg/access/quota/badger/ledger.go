// Package badger persists quota usage in an embedded BadgerDB database.
//
// Each (subject, pool, zone) entry is one key holding the committed usage
// as a big-endian int64:
//
//	quota:<subject>\x00<pool>\x00<zone> -> used
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/marmos91/fileserv/pkg/metrics"
)

const (
	keyPrefix = "quota:"
	keySep    = 0x00
)

// DefaultBlockCacheSize is used when Config.BlockCacheSize is unset.
const DefaultBlockCacheSize = 8 << 20

// Config configures the ledger.
type Config struct {
	// Path is the database directory. Empty runs in memory.
	Path string

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// BlockCacheSize is the block cache size in bytes. Default: 8MiB.
	BlockCacheSize int64

	// Metrics is optional.
	Metrics metrics.LedgerMetrics
}

// Ledger is a quota.Ledger backed by BadgerDB.
type Ledger struct {
	db      *badgerdb.DB
	metrics metrics.LedgerMetrics

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

var _ quota.Ledger = (*Ledger)(nil)

// Open opens or creates the ledger.
func Open(cfg Config) (*Ledger, error) {
	opts := badgerdb.DefaultOptions(cfg.Path)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	cacheSize := cfg.BlockCacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultBlockCacheSize
	}
	// Entries are a few bytes each; compression and big caches do not pay.
	opts = opts.WithLoggingLevel(badgerdb.WARNING).
		WithCompression(options.None).
		WithBlockCacheSize(cacheSize).
		WithIndexCacheSize(4 << 20)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota ledger at %s: %w", cfg.Path, err)
	}

	l := &Ledger{db: db, metrics: cfg.Metrics, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && cfg.Path != "" {
		l.wg.Add(1)
		go l.runGC(cfg.GCInterval)
	}

	logger.Debug("Quota ledger opened", "path", cfg.Path)
	return l, nil
}

func encodeKey(e quota.Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(keyPrefix)
	buf.WriteString(string(e.Subject))
	buf.WriteByte(keySep)
	buf.WriteString(e.PoolID)
	buf.WriteByte(keySep)
	buf.WriteString(e.ZoneID)
	return buf.Bytes()
}

func decodeKey(key []byte) (quota.Entry, error) {
	parts := bytes.Split(bytes.TrimPrefix(key, []byte(keyPrefix)), []byte{keySep})
	if len(parts) != 3 {
		return quota.Entry{}, fmt.Errorf("malformed ledger key %q", key)
	}
	return quota.Entry{
		Subject: quota.Subject(parts[0]),
		PoolID:  string(parts[1]),
		ZoneID:  string(parts[2]),
	}, nil
}

// Load returns every stored entry.
func (l *Ledger) Load(ctx context.Context) ([]quota.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []quota.Entry
	err := l.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			entry, err := decodeKey(item.KeyCopy(nil))
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				if len(val) != 8 {
					return fmt.Errorf("malformed ledger value for %q", item.Key())
				}
				entry.Used = int64(binary.BigEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load quota ledger: %w", err)
	}
	return entries, nil
}

// Apply stores the absolute usage of entry, deleting the key at zero.
func (l *Ledger) Apply(ctx context.Context, entry quota.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	key := encodeKey(entry)
	err := l.db.Update(func(txn *badgerdb.Txn) error {
		if entry.Used <= 0 {
			return txn.Delete(key)
		}
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(entry.Used))
		return txn.Set(key, val)
	})
	if l.metrics != nil {
		l.metrics.ObserveApply(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("apply quota entry: %w", err)
	}
	return nil
}

// Healthcheck verifies the database is accessible.
func (l *Ledger) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close stops GC and closes the database.
func (l *Ledger) Close() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stop)
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

func (l *Ledger) runGC(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			// RunValueLogGC returns ErrNoRewrite when there is nothing to do.
			err := l.db.RunValueLogGC(0.5)
			if l.metrics != nil {
				l.metrics.RecordGC(err == nil)
			}
			if err != nil && err != badgerdb.ErrNoRewrite {
				logger.Warn("Quota ledger GC failed", logger.KeyError, err)
			}
		}
	}
}
