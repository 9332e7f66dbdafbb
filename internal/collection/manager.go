// Package collection manages the per-group batch lifecycle: one building
// collection per group, derived readiness, atomic snapshot rotation, and
// retention sweeps.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bobbin/internal/config"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/settings"
	"bobbin/internal/store"
)

// Manager owns collection lifecycle decisions.
type Manager struct {
	store    *store.Store
	settings *settings.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger

	retentionDays int

	now   func() time.Time
	newID func() string
}

// Option customizes the manager.
type Option func(*Manager)

// WithClock overrides the manager clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides how collection ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// NewManager wires a collection manager.
func NewManager(cfg *config.Config, st *store.Store, settingsSvc *settings.Service, mtr *metrics.Metrics, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:         st,
		settings:      settingsSvc,
		metrics:       mtr,
		logger:        logger.With(logging.String(logging.FieldComponent, "collection")),
		retentionDays: cfg.Collections.RetentionDays,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureBuilding returns the group's building collection, creating one when
// absent.
func (m *Manager) EnsureBuilding(ctx context.Context, groupID string) (*store.Collection, error) {
	coll, err := m.store.GetOrCreateBuilding(ctx, groupID, m.newID(), m.now())
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "collection", "ensure building", "get or create building collection", err)
	}
	return coll, nil
}

// Readiness describes whether a group's building collection can be consumed.
type Readiness struct {
	Ready     bool
	ItemCount int
	MinItems  int
	Building  *store.Collection
}

// Readiness derives consumption readiness from the live item count. Nothing
// is stored: readiness can regress only by tuning min_items_for_ready, never
// by item mutation, and appends after ready remain legal.
func (m *Manager) Readiness(ctx context.Context, groupID string) (Readiness, error) {
	snap, err := m.settings.Snapshot(ctx)
	if err != nil {
		return Readiness{}, err
	}
	building, err := m.store.BuildingForGroup(ctx, groupID)
	if err != nil {
		return Readiness{}, services.Wrap(services.ErrTransient, "collection", "readiness", "load building collection", err)
	}
	readiness := Readiness{MinItems: snap.MinItemsForReady, Building: building}
	if building == nil {
		return readiness, nil
	}
	count, err := m.store.CountItemsInCollection(ctx, building.ID)
	if err != nil {
		return Readiness{}, services.Wrap(services.ErrTransient, "collection", "readiness", "count collection items", err)
	}
	readiness.ItemCount = count
	readiness.Ready = count >= snap.MinItemsForReady
	return readiness, nil
}

// Snapshot freezes the group's building collection for the given consumer and
// opens an empty successor. Callers are expected to hold the group lock and
// to have verified readiness.
func (m *Manager) Snapshot(ctx context.Context, groupID, episodeID string) (*store.SnapshotResult, error) {
	result, err := m.store.SnapshotBuilding(ctx, groupID, episodeID, m.newID(), m.now())
	if errors.Is(err, store.ErrNoBuildingCollection) {
		return nil, services.Wrap(services.ErrNotReady, "collection", "snapshot", "group has no building collection", err)
	}
	if errors.Is(err, store.ErrSnapshotConflict) {
		return nil, services.Wrap(services.ErrConflict, "collection", "snapshot", "building collection rotated concurrently", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "collection", "snapshot", "snapshot rotation", err)
	}
	m.metrics.SnapshotTaken()
	m.logger.InfoContext(ctx, "collection snapshot taken",
		logging.String(logging.FieldGroupID, groupID),
		logging.String(logging.FieldCollectionID, result.Snapshot.ID),
		logging.String(logging.FieldEpisodeID, episodeID),
		logging.Int("items", result.ItemCount))
	return result, nil
}

// ExpireStale marks building collections idle past the retention window as
// expired. Only unconsumed collections expire; snapshots already bound to an
// episode keep their status as the audit record of that consumption.
func (m *Manager) ExpireStale(ctx context.Context) (int64, error) {
	now := m.now()
	cutoff := now.Add(-time.Duration(m.retentionDays) * 24 * time.Hour)
	expired, err := m.store.ExpireIdleBuilding(ctx, cutoff, now)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "collection", "expire stale", "expire idle building collections", err)
	}
	if expired > 0 {
		m.metrics.CollectionsExpiredBy(expired)
		m.logger.InfoContext(ctx, "expired idle building collections", logging.Int64("count", expired))
	}
	return expired, nil
}

// List returns the collections for a group, or every collection when groupID
// is empty.
func (m *Manager) List(ctx context.Context, groupID string) ([]*store.Collection, error) {
	collections, err := m.store.ListCollections(ctx, groupID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "collection", "list", "list collections", err)
	}
	return collections, nil
}

// Items returns the members of one collection.
func (m *Manager) Items(ctx context.Context, collectionID string) ([]*store.Item, error) {
	coll, err := m.store.CollectionByID(ctx, collectionID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "collection", "items", "load collection", err)
	}
	if coll == nil {
		return nil, services.Wrap(services.ErrNotFound, "collection", "items", fmt.Sprintf("collection %s not found", collectionID), nil)
	}
	items, err := m.store.ItemsInCollection(ctx, collectionID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "collection", "items", "list collection items", err)
	}
	return items, nil
}
