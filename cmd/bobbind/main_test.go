package main

import (
	"context"
	"testing"

	"bobbin/internal/logging"
	"bobbin/internal/testsupport"
)

func TestBuildPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	pm := buildPipeline(cfg, st, logging.NewNop())
	if pm == nil {
		t.Fatal("expected pipeline manager")
	}
	if pm.Running() {
		t.Fatal("pipeline should not run before Start")
	}

	if err := pm.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pm.Stop()
}

func TestBuildSettingsSeeded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	svc := buildSettings(cfg, st)
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ConfidenceThreshold != cfg.Classifier.ConfidenceThreshold {
		t.Fatalf("expected threshold %v, got %v", cfg.Classifier.ConfidenceThreshold, snap.ConfidenceThreshold)
	}
}
