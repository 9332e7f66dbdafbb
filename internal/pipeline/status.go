package pipeline

import (
	"context"

	"bobbin/internal/metrics"
	"bobbin/internal/stage"
	"bobbin/internal/store"
)

// GroupStatus summarizes one group for the status surface.
type GroupStatus struct {
	GroupID        string
	BuildingID     string
	ItemCount      int
	Ready          bool
	Interval       store.IntervalClass
	LastConsumedAt string
	LastSkipReason string
	Locked         bool
}

// Status is the daemon-wide view surfaced over the API and CLI.
type Status struct {
	Running bool
	Queue   store.HealthSummary
	Metrics metrics.Snapshot
	Review  stage.Health
	Groups  []GroupStatus
}

// Status assembles the full pipeline view.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running: m.Running(),
		Metrics: m.metrics.Read(),
		Review:  m.review.HealthCheck(ctx),
	}

	health, err := m.store.Health(ctx)
	if err != nil {
		return status, err
	}
	status.Queue = health

	states, err := m.cadence.States(ctx)
	if err != nil {
		return status, err
	}
	seen := make(map[string]bool, len(states))
	for _, state := range states {
		group, err := m.groupStatus(ctx, state.GroupID, state)
		if err != nil {
			return status, err
		}
		status.Groups = append(status.Groups, group)
		seen[state.GroupID] = true
	}

	// Groups with building collections but no cadence history yet.
	collections, err := m.collections.List(ctx, "")
	if err != nil {
		return status, err
	}
	for _, coll := range collections {
		if coll.Status != store.CollectionBuilding || seen[coll.GroupID] {
			continue
		}
		group, err := m.groupStatus(ctx, coll.GroupID, nil)
		if err != nil {
			return status, err
		}
		status.Groups = append(status.Groups, group)
		seen[coll.GroupID] = true
	}
	return status, nil
}

func (m *Manager) groupStatus(ctx context.Context, groupID string, state *store.CadenceState) (GroupStatus, error) {
	group := GroupStatus{GroupID: groupID}
	if state != nil {
		group.Interval = state.Interval
		group.LastSkipReason = state.LastSkipReason
		if state.LastConsumedAt != nil {
			group.LastConsumedAt = state.LastConsumedAt.UTC().Format("2006-01-02 15:04")
		}
	}

	readiness, err := m.collections.Readiness(ctx, groupID)
	if err != nil {
		return group, err
	}
	if readiness.Building != nil {
		group.BuildingID = readiness.Building.ID
		group.ItemCount = readiness.ItemCount
		group.Ready = readiness.Ready
	}

	lock, err := m.locks.Holder(ctx, groupID)
	if err != nil {
		return group, err
	}
	group.Locked = lock != nil && lock.ExpiresAt.After(m.now())
	return group, nil
}

// Collections lists collections for a group (or all groups).
func (m *Manager) Collections(ctx context.Context, groupID string) ([]*store.Collection, error) {
	return m.collections.List(ctx, groupID)
}

// CollectionItems lists the members of one collection.
func (m *Manager) CollectionItems(ctx context.Context, collectionID string) ([]*store.Item, error) {
	return m.collections.Items(ctx, collectionID)
}

// QueueItems lists queue items filtered by status.
func (m *Manager) QueueItems(ctx context.Context, statuses ...store.Status) ([]*store.Item, error) {
	return m.store.List(ctx, statuses...)
}

// RetryFailed moves failed items back to pending.
func (m *Manager) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	return m.store.RetryFailed(ctx, m.now(), ids...)
}
