package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/jobs"
	"reelsmith/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		showTransitions bool
		showStages      bool
		jsonOut         bool
	)

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				job, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, statusPayload(cmd, store, job, showTransitions, showStages))
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", statusKindFor(job.Status), string(job.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.0f%%", job.Progress), colorize))
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt.Local().Format(time.RFC3339), colorize))
				if job.StartedAt != nil {
					fmt.Fprintln(out, renderStatusLine("Started", statusInfo, job.StartedAt.Local().Format(time.RFC3339), colorize))
				}
				if job.CompletedAt != nil {
					fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, job.CompletedAt.Local().Format(time.RFC3339), colorize))
				}
				if job.RetryCount > 0 {
					fmt.Fprintln(out, renderStatusLine("Retries", statusWarn, fmt.Sprintf("%d", job.RetryCount), colorize))
				}
				if job.ErrorMessage != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
				}

				if showStages {
					if err := printStages(cmd, store, job.ID); err != nil {
						return err
					}
				}
				if showTransitions {
					if err := printTransitions(cmd, store, job.ID); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showTransitions, "transitions", false, "Include the status transition history")
	cmd.Flags().BoolVar(&showStages, "stages", false, "Include per-stage outcomes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func statusKindFor(status jobs.Status) statusKind {
	switch status {
	case jobs.StatusCompleted:
		return statusOK
	case jobs.StatusFailed:
		return statusError
	case jobs.StatusCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func printStages(cmd *cobra.Command, store *jobs.Store, jobID string) error {
	stages, err := store.StagesForJob(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stage activity yet")
		return nil
	}

	rows := make([][]string, 0, len(stages))
	for _, record := range sortedStages(stages) {
		rows = append(rows, []string{
			record.Kind,
			string(record.Status),
			fmt.Sprintf("%d", record.Attempts),
			record.ErrorMessage,
		})
	}
	table := renderTable(
		[]string{"Stage", "Status", "Attempts", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

func printTransitions(cmd *cobra.Command, store *jobs.Store, jobID string) error {
	transitions, err := store.TransitionsForJob(cmd.Context(), jobID)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No transitions recorded yet")
		return nil
	}

	rows := make([][]string, 0, len(transitions))
	for _, record := range transitions {
		rows = append(rows, []string{
			record.CreatedAt.Local().Format(time.RFC3339),
			string(record.FromStatus),
			string(record.ToStatus),
			record.Reason,
		})
	}
	table := renderTable(
		[]string{"When", "From", "To", "Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

func sortedStages(stages map[string]jobs.StageRecord) []jobs.StageRecord {
	ordered := make([]jobs.StageRecord, 0, len(stages))
	seen := make(map[string]bool, len(stages))
	for _, kind := range stage.AllKinds() {
		if record, ok := stages[string(kind)]; ok {
			ordered = append(ordered, record)
			seen[string(kind)] = true
		}
	}
	leftover := make([]string, 0)
	for kind := range stages {
		if !seen[kind] {
			leftover = append(leftover, kind)
		}
	}
	sort.Strings(leftover)
	for _, kind := range leftover {
		ordered = append(ordered, stages[kind])
	}
	return ordered
}

func statusPayload(cmd *cobra.Command, store *jobs.Store, job *jobs.Job, withTransitions, withStages bool) map[string]any {
	payload := map[string]any{
		"job_id":      job.ID,
		"status":      string(job.Status),
		"progress":    job.Progress,
		"retry_count": job.RetryCount,
		"created_at":  job.CreatedAt.Format(time.RFC3339),
		"version":     job.Version,
	}
	if job.ErrorMessage != "" {
		payload["error_message"] = job.ErrorMessage
	}
	if job.StartedAt != nil {
		payload["started_at"] = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		payload["completed_at"] = job.CompletedAt.Format(time.RFC3339)
	}
	if withStages {
		if stages, err := store.StagesForJob(cmd.Context(), job.ID); err == nil {
			payload["stages"] = stages
		}
	}
	if withTransitions {
		if transitions, err := store.TransitionsForJob(cmd.Context(), job.ID); err == nil {
			payload["transitions"] = transitions
		}
	}
	return payload
}
