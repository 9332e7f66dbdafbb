package pipeline

import (
	"context"
	"errors"
	"fmt"

	"bobbin/internal/cadence"
	"bobbin/internal/logging"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

// SnapshotHandoff is the result of a successful snapshot request. The caller
// holds the group lock until it calls ReleaseLock with the token.
type SnapshotHandoff struct {
	SnapshotID string
	ItemCount  int
	LockToken  string
	EpisodeID  string
}

// RequestSnapshot composes the full consumption flow for a group: cadence
// check, readiness check, lock acquisition, and the atomic snapshot rotation.
// Denials come back as typed outcomes (ErrCadenceDenied, ErrNotReady,
// ErrLocked) with the skip reason recorded for observers. On success the
// lock stays held for the consumer; every failure path releases it.
func (m *Manager) RequestSnapshot(ctx context.Context, groupID, episodeID string) (*SnapshotHandoff, error) {
	if groupID == "" || episodeID == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "request snapshot", "group and episode ids are required", nil)
	}
	ctx = services.WithGroupID(ctx, groupID)
	log := logging.WithContext(ctx, m.logger)

	if err := m.cadence.Permit(ctx, groupID); err != nil {
		if errors.Is(err, services.ErrCadenceDenied) {
			m.recordSkip(ctx, groupID, cadence.SkipCadence)
		}
		return nil, err
	}

	readiness, err := m.collections.Readiness(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !readiness.Ready {
		reason := cadence.SkipNotReady
		if readiness.Building == nil && m.lastCollectionExpired(ctx, groupID) {
			reason = cadence.SkipExpired
		}
		m.recordSkip(ctx, groupID, reason)
		return nil, services.Wrap(services.ErrNotReady, "pipeline", "request snapshot",
			fmt.Sprintf("group %s has %d of %d items required", groupID, readiness.ItemCount, readiness.MinItems), nil)
	}

	token, err := m.locks.Acquire(ctx, groupID)
	if err != nil {
		if errors.Is(err, services.ErrLocked) {
			m.recordSkip(ctx, groupID, cadence.SkipLocked)
		}
		return nil, err
	}

	result, err := m.collections.Snapshot(ctx, groupID, episodeID)
	if err != nil {
		// The consumer never saw the lock; do not leave the group stuck
		// until the TTL.
		if releaseErr := m.locks.Release(ctx, groupID, token); releaseErr != nil {
			log.Warn("lock release after failed snapshot", logging.Error(releaseErr))
		}
		return nil, err
	}

	if err := m.cadence.RecordSuccess(ctx, groupID); err != nil {
		// The snapshot is already handed off; cadence bookkeeping must not
		// unwind it.
		log.Warn("cadence success record failed", logging.Error(err))
	}

	return &SnapshotHandoff{
		SnapshotID: result.Snapshot.ID,
		ItemCount:  result.ItemCount,
		LockToken:  token,
		EpisodeID:  episodeID,
	}, nil
}

// ReleaseLock frees a group lock held by a snapshot consumer.
func (m *Manager) ReleaseLock(ctx context.Context, groupID, token string) error {
	return m.locks.Release(ctx, groupID, token)
}

func (m *Manager) recordSkip(ctx context.Context, groupID, reason string) {
	if err := m.cadence.RecordSkip(ctx, groupID, reason); err != nil {
		logging.WithContext(ctx, m.logger).Warn("skip record failed", logging.Error(err))
	}
}

func (m *Manager) lastCollectionExpired(ctx context.Context, groupID string) bool {
	collections, err := m.collections.List(ctx, groupID)
	if err != nil || len(collections) == 0 {
		return false
	}
	return collections[0].Status == store.CollectionExpired
}
