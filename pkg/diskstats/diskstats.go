// Package diskstats measures the capacity of the filesystems backing
// storage pools and pushes the figures into the registry.
package diskstats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/internal/telemetry"
	"github.com/marmos91/fileserv/pkg/metrics"
	"github.com/marmos91/fileserv/pkg/registry"
)

// ErrUnsupported is returned on platforms without statfs.
var ErrUnsupported = errors.New("disk stats are not supported on this platform")

// DefaultRefreshInterval is used when the refresher is given no interval.
const DefaultRefreshInterval = time.Minute

// Stats are the capacity figures of a filesystem, in bytes.
type Stats struct {
	Total int64
	Used  int64
	// Free is what unprivileged users can still write.
	Free int64
}

// Provider measures the filesystem containing path.
type Provider interface {
	Stats(path string) (Stats, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(path string) (Stats, error)

// Stats implements Provider.
func (f ProviderFunc) Stats(path string) (Stats, error) {
	return f(path)
}

// Target receives refreshed capacity. *registry.Registry implements it.
type Target interface {
	Snapshot() *registry.Snapshot
	UpdateCapacity(ctx context.Context, poolID string, total, used, free int64) error
}

// Refresher periodically measures every pool.
type Refresher struct {
	provider Provider
	target   Target
	interval time.Duration
	metrics  metrics.CapacityMetrics

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRefresher creates a refresher. A nil provider uses statfs.
func NewRefresher(target Target, provider Provider, interval time.Duration, m metrics.CapacityMetrics) *Refresher {
	if provider == nil {
		provider = Statfs{}
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		provider: provider,
		target:   target,
		interval: interval,
		metrics:  m,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RefreshOnce measures every enabled pool. A failing pool does not stop
// the others; the first error is returned.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanDiskStatsRefresh)
	defer span.End()

	var firstErr error
	for _, pool := range r.target.Snapshot().Pools() {
		if !pool.Enabled {
			continue
		}
		if err := r.refreshPool(ctx, pool.ID, pool.Name, pool.Path); err != nil {
			logger.WarnCtx(ctx, "Capacity refresh failed",
				logger.KeyPool, pool.Name, logger.KeyPoolPath, pool.Path, logger.KeyError, err)
			if r.metrics != nil {
				r.metrics.RecordRefreshError(pool.Name)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		telemetry.RecordError(ctx, firstErr)
	}
	return firstErr
}

func (r *Refresher) refreshPool(ctx context.Context, id, name, path string) error {
	st, err := r.provider.Stats(path)
	if err != nil {
		return err
	}
	if err := r.target.UpdateCapacity(ctx, id, st.Total, st.Used, st.Free); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.SetCapacity(name, st.Total, st.Used, st.Free)
	}
	return nil
}

// Start refreshes immediately and then on every interval until Stop or
// ctx cancellation.
func (r *Refresher) Start(ctx context.Context) {
	go func() {
		defer close(r.done)

		_ = r.RefreshOnce(ctx)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				_ = r.RefreshOnce(ctx)
			}
		}
	}()
	logger.Debug("Capacity refresher started", "interval", r.interval)
}

// Stop ends the refresh loop and waits for it. Only valid after Start.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}
