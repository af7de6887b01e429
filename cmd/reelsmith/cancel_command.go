package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/controller"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				ctrl := controller.New(store, logging.NewNop())
				_, err := ctrl.ApplyTransition(cmd.Context(), args[0], jobs.StatusCancelled, controller.TransitionOptions{
					Reason: "cancellation requested",
				})
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s\n", args[0])
					return nil
				case errors.Is(err, jobs.ErrInvalidTransition):
					job, readErr := store.GetByID(cmd.Context(), args[0])
					if readErr != nil {
						return readErr
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s is already %s\n", args[0], job.Status)
					return nil
				case errors.Is(err, jobs.ErrConcurrentModification):
					return fmt.Errorf("job %s changed while cancelling; try again", args[0])
				default:
					return err
				}
			})
		},
	}
}
