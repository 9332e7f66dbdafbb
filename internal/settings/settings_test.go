package settings_test

import (
	"context"
	"errors"
	"testing"

	"bobbin/internal/services"
	"bobbin/internal/settings"
	"bobbin/internal/store"
	"bobbin/internal/testsupport"
)

func TestSnapshotReflectsStoredValues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfidenceThreshold(0.7))
	st := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(st, cfg)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected seeded threshold 0.7, got %f", snap.ConfidenceThreshold)
	}

	if err := svc.Update(ctx, store.SettingConfidenceThreshold, "0.85"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Update(ctx, store.SettingEscalatedTierEnabled, "false"); err != nil {
		t.Fatalf("Update escalated: %v", err)
	}

	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if snap.ConfidenceThreshold != 0.85 {
		t.Fatalf("expected updated threshold, got %f", snap.ConfidenceThreshold)
	}
	if snap.EscalatedEnabled {
		t.Fatal("expected escalation disabled")
	}
}

func TestSnapshotModelOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Classifier.Fast.Model = "tagger-small"
	st := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(st, cfg)
	ctx := context.Background()

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.FastModel != cfg.Classifier.Fast.Model {
		t.Fatalf("expected file config model %q, got %q", cfg.Classifier.Fast.Model, snap.FastModel)
	}

	if err := svc.Update(ctx, store.SettingFastModel, "scorer-large"); err != nil {
		t.Fatalf("Update fast model: %v", err)
	}
	if err := svc.Update(ctx, store.SettingEscalatedModel, "scorer-xl"); err != nil {
		t.Fatalf("Update escalated model: %v", err)
	}

	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if snap.FastModel != "scorer-large" {
		t.Fatalf("expected updated fast model, got %q", snap.FastModel)
	}
	if snap.EscalatedModel != "scorer-xl" {
		t.Fatalf("expected updated escalated model, got %q", snap.EscalatedModel)
	}

	// Clearing the stored value restores the file config model.
	if err := svc.Update(ctx, store.SettingFastModel, ""); err != nil {
		t.Fatalf("clear fast model: %v", err)
	}
	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("third Snapshot: %v", err)
	}
	if snap.FastModel != cfg.Classifier.Fast.Model {
		t.Fatalf("expected file config fallback, got %q", snap.FastModel)
	}
}

func TestSnapshotFallsBackOnMalformedValue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfidenceThreshold(0.7))
	st := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(st, cfg)
	ctx := context.Background()

	// Corrupt the stored value directly; Update would reject it.
	if err := st.SetSetting(ctx, store.SettingConfidenceThreshold, "not-a-number"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ConfidenceThreshold != 0.7 {
		t.Fatalf("expected config fallback 0.7, got %f", snap.ConfidenceThreshold)
	}
}

func TestUpdateValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(st, cfg)
	ctx := context.Background()

	cases := []struct {
		key   string
		value string
	}{
		{store.SettingConfidenceThreshold, "1.5"},
		{store.SettingConfidenceThreshold, "abc"},
		{store.SettingEscalatedTierEnabled, "maybe"},
		{store.SettingMinItemsForReady, "0"},
		{store.SettingCadenceFloorHours, "-3"},
		{"unknown_key", "1"},
	}
	for _, tc := range cases {
		err := svc.Update(ctx, tc.key, tc.value)
		if !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Update(%s, %s): expected validation error, got %v", tc.key, tc.value, err)
		}
	}
}
