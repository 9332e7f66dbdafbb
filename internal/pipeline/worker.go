package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bobbin/internal/logging"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Worker 0 doubles as the reclaimer so crashed claims return to the
		// queue even when every other worker is busy.
		if index == 0 {
			m.reclaimStale(ctx, logger)
		}

		item, err := m.store.ClaimNextPending(ctx, m.now())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to claim next item", logging.Error(err))
			m.waitOrShutdown(ctx, m.errorRetryInterval)
			continue
		}
		if item == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processItem(ctx, logger, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) processItem(ctx context.Context, logger *slog.Logger, item *store.Item) error {
	itemCtx := services.WithItemID(ctx, item.ID)
	itemCtx = services.WithGroupID(itemCtx, item.GroupID)
	itemCtx = services.WithStage(itemCtx, "review")
	log := logging.WithContext(itemCtx, logger)

	if err := m.review.Prepare(itemCtx, item); err != nil {
		log.Error("item rejected during prepare", logging.Error(err))
		return m.failItem(itemCtx, log, item, err)
	}

	hbCtx, stopHeartbeat := context.WithCancel(itemCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeatLoop(hbCtx, &hbWG, item.ID)

	err := m.review.Execute(itemCtx, item)
	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown mid-item: leave it in classifying for the reclaimer.
			return err
		}
		log.Error("classification failed", logging.Error(err))
		return m.failItem(itemCtx, log, item, err)
	}
	return nil
}

func (m *Manager) failItem(ctx context.Context, log *slog.Logger, item *store.Item, cause error) error {
	if err := m.store.MarkItemFailed(ctx, item.ID, cause.Error(), m.now()); err != nil {
		log.Error("failed to mark item failed", logging.Error(err))
		return fmt.Errorf("mark item %d failed: %w", item.ID, err)
	}
	return cause
}

func (m *Manager) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, itemID int64) {
	defer wg.Done()
	if m.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, itemID, m.now()); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldItemID, itemID),
					logging.Error(err))
			}
		}
	}
}

func (m *Manager) reclaimStale(ctx context.Context, logger *slog.Logger) {
	if m.heartbeatTimeout <= 0 {
		return
	}
	now := m.now()
	reclaimed, err := m.store.ReclaimStaleClassifying(ctx, now.Add(-m.heartbeatTimeout), now)
	if err != nil {
		logger.Warn("reclaim stale items failed; stuck items may remain", logging.Error(err))
		return
	}
	if reclaimed > 0 {
		m.metrics.StaleItemsReclaimedBy(reclaimed)
		logger.Info("reclaimed stale items", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		delay = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
