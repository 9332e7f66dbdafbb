package collection_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bobbin/internal/collection"
	"bobbin/internal/metrics"
	"bobbin/internal/services"
	"bobbin/internal/settings"
	"bobbin/internal/store"
	"bobbin/internal/testsupport"
)

type fixture struct {
	store    *store.Store
	settings *settings.Service
	manager  *collection.Manager
	now      time.Time
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	settingsSvc := settings.NewService(st, cfg)
	f := &fixture{
		store:    st,
		settings: settingsSvc,
		now:      time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	var counter int
	f.manager = collection.NewManager(cfg, st, settingsSvc, &metrics.Metrics{}, nil,
		collection.WithClock(func() time.Time { return f.now }),
		collection.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("coll-%d", counter)
		}),
	)
	return f
}

func (f *fixture) annotate(t *testing.T, title, groupID string) {
	t.Helper()
	item := testsupport.NewItem(t, f.store, title, groupID, f.now)
	if _, err := f.store.ClaimNextPending(context.Background(), f.now); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	err := f.store.SaveAnnotation(context.Background(), item.ID, groupID, store.Annotation{
		Tags:        []string{"t"},
		Confidence:  0.9,
		Tier:        store.TierFast,
		ProcessedAt: f.now,
	}, "coll-seed-"+title, f.now)
	if err != nil {
		t.Fatalf("SaveAnnotation: %v", err)
	}
}

func TestEnsureBuildingIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.manager.EnsureBuilding(ctx, "news")
	if err != nil {
		t.Fatalf("EnsureBuilding: %v", err)
	}
	second, err := f.manager.EnsureBuilding(ctx, "news")
	if err != nil {
		t.Fatalf("second EnsureBuilding: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("building collection not stable: %s != %s", first.ID, second.ID)
	}
}

func TestReadinessThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.manager.Readiness(ctx, "news")
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if r.Ready || r.Building != nil {
		t.Fatalf("empty group reported ready: %+v", r)
	}

	// Default min_items_for_ready is 3.
	f.annotate(t, "one", "news")
	f.annotate(t, "two", "news")
	r, err = f.manager.Readiness(ctx, "news")
	if err != nil {
		t.Fatalf("Readiness at 2: %v", err)
	}
	if r.Ready || r.ItemCount != 2 {
		t.Fatalf("expected not ready with 2 items, got %+v", r)
	}

	f.annotate(t, "three", "news")
	r, err = f.manager.Readiness(ctx, "news")
	if err != nil {
		t.Fatalf("Readiness at 3: %v", err)
	}
	if !r.Ready || r.ItemCount != 3 {
		t.Fatalf("expected ready with 3 items, got %+v", r)
	}
}

func TestReadinessTracksSettingChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "one", "news")
	f.annotate(t, "two", "news")

	if err := f.settings.Update(ctx, store.SettingMinItemsForReady, "2"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	r, err := f.manager.Readiness(ctx, "news")
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if !r.Ready {
		t.Fatal("loosened threshold not applied")
	}
}

func TestSnapshotConservesItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		f.annotate(t, title, "news")
	}

	result, err := f.manager.Snapshot(ctx, "news", "episode-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if result.ItemCount != 3 {
		t.Fatalf("expected 3 frozen items, got %d", result.ItemCount)
	}

	// Late arrival lands in the fresh successor, not the frozen snapshot.
	f.annotate(t, "late", "news")
	successorItems, err := f.store.ItemsInCollection(ctx, result.SuccessorID)
	if err != nil {
		t.Fatalf("ItemsInCollection: %v", err)
	}
	if len(successorItems) != 1 {
		t.Fatalf("expected 1 successor item, got %d", len(successorItems))
	}
	frozen, err := f.store.ItemsInCollection(ctx, result.Snapshot.ID)
	if err != nil {
		t.Fatalf("ItemsInCollection frozen: %v", err)
	}
	if len(frozen) != 3 {
		t.Fatalf("frozen membership changed: %d", len(frozen))
	}
}

func TestSnapshotWithoutBuildingIsNotReady(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Snapshot(context.Background(), "never-seen", "episode-1")
	if !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "a", "news")
	if _, err := f.manager.Snapshot(ctx, "news", "episode-1"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Default retention is 14 days; jump past it. The idle successor building
	// collection expires while the consumed snapshot stays on record.
	f.now = f.now.Add(15 * 24 * time.Hour)
	expired, err := f.manager.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired collection, got %d", expired)
	}

	r, err := f.manager.Readiness(ctx, "news")
	if err != nil {
		t.Fatalf("Readiness: %v", err)
	}
	if r.Building != nil {
		t.Fatal("idle building collection survived the sweep")
	}

	collections, err := f.manager.List(ctx, "news")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, coll := range collections {
		if coll.ConsumedByEpisodeID != "" && coll.Status != store.CollectionSnapshot {
			t.Fatalf("consumed collection %s rewritten to %s", coll.ID, coll.Status)
		}
	}
}

func TestItemsUnknownCollection(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Items(context.Background(), "missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
