package main

import (
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/jobs"
)

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				running, err := daemonRunning(cfg)
				if err != nil {
					return err
				}
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"running":   running,
						"db_path":   store.Path(),
						"lock_path": daemon.LockPath(cfg),
						"jobs":      health,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				runningKind := statusWarn
				if running {
					runningKind = statusOK
				}
				fmt.Fprintln(out, renderStatusLine("Running", runningKind, yesNo(running), colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, store.Path(), colorize))
				fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, daemon.LockPath(cfg), colorize))
				fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo,
					fmt.Sprintf("%d total, %d active, %d failed", health.Total, health.Active, health.Failed), colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

// daemonRunning probes the daemon lock without holding it: if the lock can be
// acquired, no daemon owns it.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(daemon.LockPath(cfg))
	acquired, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if acquired {
		if err := lock.Unlock(); err != nil {
			return false, fmt.Errorf("release probe lock: %w", err)
		}
		return false, nil
	}
	return true, nil
}
