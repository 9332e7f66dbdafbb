package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bobbin/internal/api"
	"bobbin/internal/cadence"
	"bobbin/internal/classifier"
	"bobbin/internal/collection"
	"bobbin/internal/daemon"
	"bobbin/internal/fingerprint"
	"bobbin/internal/grouplock"
	"bobbin/internal/logging"
	"bobbin/internal/metrics"
	"bobbin/internal/pipeline"
	"bobbin/internal/review"
	"bobbin/internal/settings"
	"bobbin/internal/testsupport"
)

type stubScorer struct {
	result classifier.Result
}

func (s *stubScorer) Score(context.Context, classifier.Input) (classifier.Result, error) {
	return s.result, nil
}

func (s *stubScorer) HealthCheck(context.Context) error { return nil }

func startTestDaemon(t *testing.T) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	scorer := &stubScorer{result: classifier.Result{Tags: []string{"t"}, Summary: "s", Confidence: 0.9}}
	mtr := &metrics.Metrics{}
	settingsSvc := settings.NewService(st, cfg)
	pm := pipeline.NewManager(cfg, pipeline.Deps{
		Store:        st,
		Settings:     settingsSvc,
		Fingerprints: fingerprint.NewService(st, nil),
		Collections:  collection.NewManager(cfg, st, settingsSvc, mtr, nil),
		Locks:        grouplock.NewManager(cfg, st, mtr, nil),
		Cadence:      cadence.NewScheduler(cfg, st, settingsSvc, mtr, nil),
		Review:       review.NewStage(cfg, st, settingsSvc, scorer, scorer, mtr, nil),
		Metrics:      mtr,
	})

	d, err := daemon.New(cfg, st, logging.NewNop(), pm, settingsSvc)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d.APIAddr()
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bobbin.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[classifier.fast]
endpoint = "http://127.0.0.1:0/score"

[classifier.escalated]
endpoint = "http://127.0.0.1:0/escalate"
`, filepath.Join(dir, "data"), filepath.Join(dir, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--config", writeTestConfig(t))

	var buf bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "bobbin") {
		t.Fatalf("expected help output, got %q", out)
	}
}

func TestSubmitAndQueueList(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "submit",
		"--api", addr,
		"--url", "https://example.com/story",
		"--title", "big story",
		"--group", "news",
	)
	if err != nil {
		t.Fatalf("submit: %v (output %q)", err, out)
	}
	if !strings.Contains(out, "Queued item") {
		t.Fatalf("unexpected submit output: %q", out)
	}

	out, err = execute(t, "submit",
		"--api", addr,
		"--url", "https://example.com/story",
		"--title", "big story",
		"--group", "news",
	)
	if err != nil {
		t.Fatalf("duplicate submit: %v", err)
	}
	if !strings.Contains(out, "already ingested") {
		t.Fatalf("expected duplicate notice, got %q", out)
	}

	out, err = execute(t, "queue", "list", "--api", addr)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "big story") {
		t.Fatalf("expected queued item in listing, got %q", out)
	}
}

func TestStatusJSON(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "status", "--json", "--api", addr)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status output: %v (output %q)", err, out)
	}
	if !status.Running {
		t.Fatal("expected running daemon in status output")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	addr := startTestDaemon(t)

	out, err := execute(t, "settings", "set", "confidence_threshold", "0.5", "--api", addr)
	if err != nil {
		t.Fatalf("settings set: %v", err)
	}
	if !strings.Contains(out, "Updated confidence_threshold") {
		t.Fatalf("unexpected settings set output: %q", out)
	}

	out, err = execute(t, "settings", "list", "--api", addr)
	if err != nil {
		t.Fatalf("settings list: %v", err)
	}
	if !strings.Contains(out, "confidence_threshold") || !strings.Contains(out, "0.5") {
		t.Fatalf("expected updated setting in listing, got %q", out)
	}

	if _, err := execute(t, "settings", "set", "confidence_threshold", "wat", "--api", addr); err == nil {
		t.Fatal("expected error for invalid setting value")
	}
}

func TestSnapshotDeniedWhenEmpty(t *testing.T) {
	addr := startTestDaemon(t)

	_, err := execute(t, "snapshot", "news", "ep-1", "--api", addr)
	if err == nil {
		t.Fatal("expected snapshot denial for empty group")
	}
	if !strings.Contains(err.Error(), "items required") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	out, err := execute(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConfigShow(t *testing.T) {
	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") {
		t.Fatalf("expected toml sections in output, got %q", out)
	}
	if !strings.Contains(out, "confidence_threshold") {
		t.Fatalf("expected classifier settings in output, got %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := execute(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := execute(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := execute(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}
