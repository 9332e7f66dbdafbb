package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bobbin/internal/store"
	"bobbin/internal/testsupport"
)

func testClock() time.Time {
	return time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func TestInsertAndClaimItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	item := testsupport.NewItem(t, st, "first-post", "news", now)
	if item.Status != store.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.ArrivedAt.IsZero() {
		t.Fatal("expected arrival timestamp")
	}

	claimed, err := st.ClaimNextPending(ctx, now.Add(time.Second))
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed item")
	}
	if claimed.ID != item.ID {
		t.Fatalf("claimed wrong item: %d != %d", claimed.ID, item.ID)
	}
	if claimed.Status != store.StatusClassifying {
		t.Fatalf("expected classifying status, got %s", claimed.Status)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("expected heartbeat on claim")
	}

	again, err := st.ClaimNextPending(ctx, now.Add(2*time.Second))
	if err != nil {
		t.Fatalf("second ClaimNextPending: %v", err)
	}
	if again != nil {
		t.Fatalf("expected empty queue, claimed item %d", again.ID)
	}
}

func TestClaimOrdersByArrival(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	older := testsupport.NewItem(t, st, "older", "news", now)
	testsupport.NewItem(t, st, "newer", "news", now.Add(time.Minute))

	claimed, err := st.ClaimNextPending(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed == nil || claimed.ID != older.ID {
		t.Fatalf("expected oldest item %d first", older.ID)
	}
}

func TestSaveAnnotationAppendsToBuildingCollection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	item := testsupport.NewItem(t, st, "annotated", "tech", now)
	if _, err := st.ClaimNextPending(ctx, now); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}

	ann := store.Annotation{
		Tags:        []string{"go", "databases"},
		Summary:     "short summary",
		Confidence:  0.91,
		Tier:        store.TierFast,
		ProcessedAt: now,
	}
	if err := st.SaveAnnotation(ctx, item.ID, "tech", ann, "coll-1", now); err != nil {
		t.Fatalf("SaveAnnotation: %v", err)
	}

	saved, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if saved.Status != store.StatusClassified {
		t.Fatalf("expected classified status, got %s", saved.Status)
	}
	if !saved.Annotated() {
		t.Fatal("expected annotation fields")
	}
	if len(saved.Tags) != 2 || saved.Tags[0] != "go" {
		t.Fatalf("unexpected tags: %v", saved.Tags)
	}
	if saved.CollectionID != "coll-1" {
		t.Fatalf("expected collection coll-1, got %q", saved.CollectionID)
	}

	building, err := st.BuildingForGroup(ctx, "tech")
	if err != nil {
		t.Fatalf("BuildingForGroup: %v", err)
	}
	if building == nil || building.ID != "coll-1" {
		t.Fatal("expected building collection coll-1")
	}

	count, err := st.CountItemsInCollection(ctx, "coll-1")
	if err != nil {
		t.Fatalf("CountItemsInCollection: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 member, got %d", count)
	}
}

func TestSaveAnnotationReusesExistingBuilding(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	for i, title := range []string{"one", "two"} {
		item := testsupport.NewItem(t, st, title, "tech", now.Add(time.Duration(i)*time.Second))
		if _, err := st.ClaimNextPending(ctx, now); err != nil {
			t.Fatalf("ClaimNextPending: %v", err)
		}
		err := st.SaveAnnotation(ctx, item.ID, "tech", store.Annotation{
			Tags:        []string{"t"},
			Confidence:  0.8,
			Tier:        store.TierFast,
			ProcessedAt: now,
		}, "candidate-"+title, now)
		if err != nil {
			t.Fatalf("SaveAnnotation %s: %v", title, err)
		}
	}

	building, err := st.BuildingForGroup(ctx, "tech")
	if err != nil {
		t.Fatalf("BuildingForGroup: %v", err)
	}
	if building.ID != "candidate-one" {
		t.Fatalf("expected first candidate id to win, got %s", building.ID)
	}
	count, err := st.CountItemsInCollection(ctx, building.ID)
	if err != nil {
		t.Fatalf("CountItemsInCollection: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both items in one collection, got %d", count)
	}
}

func TestSaveAnnotationRequiresClassifyingState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	item := testsupport.NewItem(t, st, "still-pending", "tech", now)
	err := st.SaveAnnotation(ctx, item.ID, "tech", store.Annotation{
		Tier:        store.TierFast,
		ProcessedAt: now,
	}, "coll-x", now)
	if !errors.Is(err, store.ErrItemStateChanged) {
		t.Fatalf("expected ErrItemStateChanged, got %v", err)
	}
}

func TestMarkFailedAndRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	item := testsupport.NewItem(t, st, "flaky", "tech", now)
	if _, err := st.ClaimNextPending(ctx, now); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if err := st.MarkItemFailed(ctx, item.ID, "scorer unavailable", now); err != nil {
		t.Fatalf("MarkItemFailed: %v", err)
	}

	failed, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if failed.Status != store.StatusFailed || failed.ErrorMessage == "" {
		t.Fatalf("expected failed state with message, got %s %q", failed.Status, failed.ErrorMessage)
	}

	retried, err := st.RetryFailed(ctx, now.Add(time.Minute), item.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried)
	}

	pending, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem after retry: %v", err)
	}
	if pending.Status != store.StatusPending || pending.ErrorMessage != "" {
		t.Fatalf("expected clean pending item, got %s %q", pending.Status, pending.ErrorMessage)
	}
}

func TestReclaimStaleClassifying(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	item := testsupport.NewItem(t, st, "stale", "tech", now)
	if _, err := st.ClaimNextPending(ctx, now); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}

	reclaimed, err := st.ReclaimStaleClassifying(ctx, now.Add(-time.Minute), now)
	if err != nil {
		t.Fatalf("ReclaimStaleClassifying: %v", err)
	}
	if reclaimed != 0 {
		t.Fatalf("fresh heartbeat reclaimed: %d", reclaimed)
	}

	reclaimed, err = st.ReclaimStaleClassifying(ctx, now.Add(time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleClassifying stale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", reclaimed)
	}

	back, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if back.Status != store.StatusPending || back.LastHeartbeat != nil {
		t.Fatalf("expected reclaimed pending item, got %s", back.Status)
	}
}

func TestStatsAndQueueDepth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := testClock()

	testsupport.NewItem(t, st, "a", "g1", now)
	testsupport.NewItem(t, st, "b", "g1", now)
	item := testsupport.NewItem(t, st, "c", "g2", now)
	if _, err := st.ClaimNextPending(ctx, now); err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if err := st.MarkItemFailed(ctx, item.ID, "boom", now); err != nil {
		t.Fatalf("MarkItemFailed: %v", err)
	}

	depth, err := st.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth: %v", err)
	}
	if depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}

	health, err := st.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}
