package sharelink

import (
	"context"
	"time"

	"github.com/marmos91/fileserv/internal/logger"
)

// Reap soft deletes every link that is expired or exhausted now.
func (m *Manager) Reap(ctx context.Context) (int64, error) {
	n, err := m.store.ReapLinks(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if m.metrics != nil {
		m.metrics.RecordReaped(n)
	}
	if n > 0 {
		logger.InfoCtx(ctx, "Reaped share links", logger.KeyCount, n)
	}
	return n, nil
}

// RunReaper reaps on every tick until ctx is cancelled. A non-positive
// interval returns immediately.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reap(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Share link reap failed", logger.KeyError, err)
			}
		}
	}
}
