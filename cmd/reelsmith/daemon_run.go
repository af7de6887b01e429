package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"reelsmith/internal/daemon"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/orchestrator"
	"reelsmith/internal/synth"
	"reelsmith/internal/tasks"
)

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelsmith.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	registry, err := synth.NewRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build stage registry: %w", err)
	}
	for _, health := range registry.Health(signalCtx) {
		if !health.Ready {
			logger.Warn("stage unhealthy",
				logging.String(logging.FieldStage, health.Name),
				logging.String("detail", health.Detail),
			)
		}
	}

	backend := tasks.NewLocalBackend(registry, cfg.StageTimeout(), logger)
	orch := orchestrator.New(cfg, store, backend, logger)

	d, err := daemon.New(cfg, store, orch, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelsmith daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
