package daemon

import (
	"context"
	"strings"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/orchestrator"
	"reelsmith/internal/synth"
	"reelsmith/internal/tasks"
	"reelsmith/internal/testsupport"
)

func newTestDaemon(t *testing.T, cfg *config.Config, store *jobs.Store) *Daemon {
	t.Helper()

	logger := logging.NewNop()
	registry, err := synth.NewRegistry(cfg, logger)
	if err != nil {
		t.Fatalf("synth.NewRegistry: %v", err)
	}
	backend := tasks.NewLocalBackend(registry, cfg.StageTimeout(), logger)
	orch := orchestrator.New(cfg, store, backend, logger)

	d, err := New(cfg, store, orch, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil, logging.NewNop()); err == nil {
		t.Fatal("nil dependencies accepted")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start on a running daemon succeeded")
	}

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("status not running after Start")
	}
	if status.JobDBPath == "" || status.LockFilePath == "" {
		t.Fatalf("status missing paths: %+v", status)
	}

	d.Stop()
	status, err = d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status after Stop: %v", err)
	}
	if status.Running {
		t.Fatal("status still running after Stop")
	}

	// Stop released the lock; a fresh start must succeed.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := newTestDaemon(t, cfg, store)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}

	second := newTestDaemon(t, cfg, store)
	err := second.Start(context.Background())
	if err == nil {
		t.Fatal("second instance acquired the lock")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second instance after release: %v", err)
	}
}

func TestStatusCountsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d := newTestDaemon(t, cfg, store)

	testsupport.NewJob(t, store, testsupport.ScriptConfig())
	testsupport.NewJob(t, store, testsupport.ScriptConfig())

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Jobs.Total != 2 || status.Jobs.Pending != 2 {
		t.Fatalf("job summary = %+v", status.Jobs)
	}
}
