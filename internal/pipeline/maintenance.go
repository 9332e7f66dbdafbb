package pipeline

import (
	"context"
	"time"

	"bobbin/internal/logging"
)

func (m *Manager) runMaintenance(ctx context.Context) {
	defer m.wg.Done()
	interval := m.sweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass: retention expiry for collections, expired
// fingerprint purge, and expired lock cleanup. Each step is independent; a
// failing step logs and the rest still run.
func (m *Manager) Sweep(ctx context.Context) {
	logger := m.logger.With(logging.String("task", "sweep"))

	if _, err := m.collections.ExpireStale(ctx); err != nil {
		logger.Warn("collection expiry sweep failed", logging.Error(err))
	}

	purged, err := m.fingerprints.Purge(ctx, m.now())
	if err != nil {
		logger.Warn("fingerprint purge failed", logging.Error(err))
	} else if purged > 0 {
		m.metrics.FingerprintsPurgedBy(purged)
		logger.Info("purged expired fingerprints", logging.Int64("count", purged))
	}

	if _, err := m.locks.Sweep(ctx); err != nil {
		logger.Warn("lock sweep failed", logging.Error(err))
	}
}
