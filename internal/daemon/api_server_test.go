package daemon_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bobbin/internal/api"
	"bobbin/internal/config"
	"bobbin/internal/services"
	"bobbin/internal/store"
)

func submitReq(title, groupID string) api.SubmitRequest {
	return api.SubmitRequest{
		SourceURL:   "https://example.com/" + title,
		Title:       title,
		PublishedAt: time.Now().UTC().Add(-time.Hour),
		Body:        "body of " + title,
		GroupID:     groupID,
	}
}

func TestAPISubmitAndQueue(t *testing.T) {
	_, client, _ := startDaemon(t, func(cfg *config.Config) {
		cfg.Workflow.QueuePollInterval = 1
	})
	ctx := context.Background()

	resp, err := client.Submit(ctx, submitReq("story", "news"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.ItemID == 0 || resp.Duplicate {
		t.Fatalf("unexpected submit response: %+v", resp)
	}

	dup, err := client.Submit(ctx, submitReq("story", "news"))
	if err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}
	if !dup.Duplicate {
		t.Fatalf("expected duplicate flag, got %+v", dup)
	}

	waitForClassified(t, client, 1)

	items, err := client.Queue(ctx, string(store.StatusClassified))
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 classified item, got %d", len(items))
	}
	if items[0].Tier == "" || items[0].CollectionID == "" {
		t.Fatalf("expected annotated item, got %+v", items[0])
	}
}

func TestAPISubmitValidation(t *testing.T) {
	_, client, _ := startDaemon(t)

	_, err := client.Submit(context.Background(), api.SubmitRequest{Title: "missing fields"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAPISnapshotDenials(t *testing.T) {
	_, client, _ := startDaemon(t)
	ctx := context.Background()

	_, err := client.Snapshot(ctx, "news", "ep-1")
	if !errors.Is(err, services.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for empty group, got %v", err)
	}

	_, err = client.Snapshot(ctx, "", "ep-1")
	if err == nil {
		t.Fatal("expected error for missing group id")
	}
}

func TestAPISnapshotAndRelease(t *testing.T) {
	_, client, _ := startDaemon(t, func(cfg *config.Config) {
		cfg.Workflow.QueuePollInterval = 1
	})
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if _, err := client.Submit(ctx, submitReq(title, "news")); err != nil {
			t.Fatalf("Submit %s: %v", title, err)
		}
	}
	waitForClassified(t, client, 3)

	snap, err := client.Snapshot(ctx, "news", "ep-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.SnapshotID == "" || snap.LockToken == "" || snap.ItemCount != 3 {
		t.Fatalf("unexpected snapshot response: %+v", snap)
	}

	items, err := client.CollectionItems(ctx, snap.SnapshotID)
	if err != nil {
		t.Fatalf("CollectionItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 collection items, got %d", len(items))
	}

	collections, err := client.Collections(ctx, "news")
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(collections) == 0 {
		t.Fatal("expected at least one collection")
	}

	if err := client.Release(ctx, "news", snap.LockToken); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAPIQueueRetryAndClear(t *testing.T) {
	_, client, _ := startDaemon(t)
	ctx := context.Background()

	if _, err := client.Submit(ctx, submitReq("pending item", "news")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	retried, err := client.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried.Retried != 0 {
		t.Fatalf("expected no failed items, got %d", retried.Retried)
	}

	cleared, err := client.ClearQueue(ctx, string(store.StatusPending))
	if err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("expected 1 removed, got %d", cleared.Removed)
	}

	if _, err := client.Queue(ctx, "bogus"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad status, got %v", err)
	}
}

func TestAPISettingsRoundTrip(t *testing.T) {
	_, client, _ := startDaemon(t)
	ctx := context.Background()

	payload, err := client.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if payload.Settings[store.SettingConfidenceThreshold] == "" {
		t.Fatalf("expected seeded settings, got %+v", payload.Settings)
	}

	if err := client.UpdateSetting(ctx, store.SettingConfidenceThreshold, "0.5"); err != nil {
		t.Fatalf("UpdateSetting: %v", err)
	}
	payload, err = client.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings after update: %v", err)
	}
	if payload.Settings[store.SettingConfidenceThreshold] != "0.5" {
		t.Fatalf("expected updated threshold, got %q", payload.Settings[store.SettingConfidenceThreshold])
	}

	if err := client.UpdateSetting(ctx, store.SettingConfidenceThreshold, "nonsense"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad value, got %v", err)
	}
	if err := client.UpdateSetting(ctx, "unknown_key", "1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown key, got %v", err)
	}
}

func TestAPIAuthToken(t *testing.T) {
	d, _, cfg := startDaemon(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "secret"
	})
	ctx := context.Background()

	authed, err := api.NewClient(d.APIAddr(), cfg.Paths.APIToken)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := authed.Status(ctx); err != nil {
		t.Fatalf("authorized Status: %v", err)
	}

	anon, err := api.NewClient(d.APIAddr(), "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := anon.Status(ctx); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	wrong, err := api.NewClient(d.APIAddr(), "not-the-token")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := wrong.Status(ctx); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestAPIStatusGroups(t *testing.T) {
	_, client, _ := startDaemon(t, func(cfg *config.Config) {
		cfg.Workflow.QueuePollInterval = 1
	})
	ctx := context.Background()

	if _, err := client.Submit(ctx, submitReq("solo", "tech")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForClassified(t, client, 1)

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if !status.Review.Ready {
		t.Fatalf("expected healthy review stage: %+v", status.Review)
	}
	var found bool
	for _, group := range status.Groups {
		if group.GroupID == "tech" {
			found = true
			if group.ItemCount != 1 || group.BuildingID == "" {
				t.Fatalf("unexpected group status: %+v", group)
			}
		}
	}
	if !found {
		t.Fatalf("expected tech group in status, got %+v", status.Groups)
	}
}
