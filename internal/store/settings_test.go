package store_test

import (
	"context"
	"testing"

	"bobbin/internal/store"
	"bobbin/internal/testsupport"
)

func TestSettingsSeededFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfidenceThreshold(0.6))
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	value, err := st.GetSetting(ctx, store.SettingConfidenceThreshold)
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if value != "0.6" {
		t.Fatalf("expected seeded threshold 0.6, got %q", value)
	}

	all, err := st.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings: %v", err)
	}
	for _, key := range store.KnownSettingKeys() {
		if _, ok := all[key]; !ok {
			t.Fatalf("missing seeded setting %s", key)
		}
	}
}

func TestSettingsSurviveReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SetSetting(ctx, store.SettingConfidenceThreshold, "0.9"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening with the original file config must not clobber the tuned value.
	reopened := testsupport.MustOpenStore(t, cfg)
	value, err := reopened.GetSetting(ctx, store.SettingConfidenceThreshold)
	if err != nil {
		t.Fatalf("GetSetting after reopen: %v", err)
	}
	if value != "0.9" {
		t.Fatalf("stored setting overwritten on reopen: %q", value)
	}
}

func TestGetSettingMissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	value, err := st.GetSetting(context.Background(), "unknown_key")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if value != "" {
		t.Fatalf("expected empty value, got %q", value)
	}
}
