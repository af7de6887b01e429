package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/controller"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/stage"
	"reelsmith/internal/tasks"
)

// errSupersededElsewhere reports that another orchestrator instance advanced
// the job past the transition this loop wanted to apply.
var errSupersededElsewhere = errors.New("job advanced by another instance")

func (o *Orchestrator) runJob(ctx context.Context, run *jobRun, id string) {
	logger := o.logger.With(logging.String(logging.FieldJobID, id))

	job, err := o.store.GetByID(ctx, id)
	if err != nil {
		logger.Error("failed to load job",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_load_failed"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	cfg, err := job.Config()
	if err != nil {
		o.failJob(ctx, id, fmt.Sprintf("stored config unreadable: %v", err), "config decode failed", logger)
		return
	}

	job, err = o.advanceToProcessing(ctx, job, cfg, logger)
	if err != nil || job == nil || job.Status.IsTerminal() {
		o.maybeFinishCancelled(run, id, nil, logger)
		return
	}

	graph := buildGraph(cfg)
	persisted, err := o.store.StagesForJob(ctx, id)
	if err != nil {
		logger.Error("failed to load stage records",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_load_failed"),
		)
		return
	}
	graph.restore(persisted)

	// Stages disabled by the config never run; record them as skipped up
	// front so the job's stage rows account for every kind.
	for _, kind := range graph.order {
		n := graph.nodes[kind]
		if n.status != jobs.StageSkipped {
			continue
		}
		if _, ok := persisted[string(kind)]; !ok {
			o.persistNode(ctx, id, n, logger)
		}
	}

	o.driveGraph(ctx, run, job, cfg, graph, logger)
}

// advanceToProcessing walks a job through the pre-pipeline statuses. The
// config is checked during validating; a bad config fails the job there.
func (o *Orchestrator) advanceToProcessing(ctx context.Context, job *jobs.Job, cfg jobs.GenerationConfig, logger *slog.Logger) (*jobs.Job, error) {
	for {
		if ctx.Err() != nil {
			return job, ctx.Err()
		}
		var err error
		switch job.Status {
		case jobs.StatusPending:
			job, err = o.transition(ctx, job.ID, jobs.StatusValidating, controller.TransitionOptions{
				Reason: "submission accepted",
			})
		case jobs.StatusValidating:
			if vErr := cfg.Validate(); vErr != nil {
				o.failJob(ctx, job.ID, vErr.Error(), "validation failed", logger)
				return nil, nil
			}
			job, err = o.transition(ctx, job.ID, jobs.StatusQueued, controller.TransitionOptions{
				Reason: "config validated",
			})
		case jobs.StatusQueued:
			job, err = o.transition(ctx, job.ID, jobs.StatusProcessing, controller.TransitionOptions{
				Reason: "dispatch responsibility acquired",
			})
		default:
			return job, nil
		}
		if err != nil {
			if errors.Is(err, errSupersededElsewhere) {
				continue
			}
			return job, err
		}
	}
}

func (o *Orchestrator) driveGraph(ctx context.Context, run *jobRun, job *jobs.Job, cfg jobs.GenerationConfig, graph *executionGraph, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			o.maybeFinishCancelled(run, job.ID, graph, logger)
			return
		}

		// Another process may have cancelled or finished the job; pick that
		// up before dispatching more work.
		if fresh, err := o.store.GetByID(ctx, job.ID); err == nil {
			job = fresh
			if job.Status == jobs.StatusCancelled {
				o.cancelRunning(ctx, graph, logger)
				logger.Info("job cancelled externally, stopping",
					logging.String(logging.FieldEventType, "job_cancelled"),
				)
				return
			}
			if job.Status.IsTerminal() {
				return
			}
		}

		for _, n := range graph.eligible(time.Now()) {
			o.dispatchNode(ctx, job.ID, cfg, n, logger)
		}

		if target, ok := graph.jobStatusForRunning(); ok && job.Status != target {
			updated, err := o.transition(ctx, job.ID, target, controller.TransitionOptions{
				Reason: "stage group running",
			})
			switch {
			case err == nil:
				job = updated
			case errors.Is(err, errSupersededElsewhere):
				job = updated
				if job != nil && job.Status == jobs.StatusCancelled {
					run.cancelRequested.Store(true)
					o.maybeFinishCancelled(run, job.ID, graph, logger)
					return
				}
			default:
				logger.Error("failed to advance job status",
					logging.Error(err),
					logging.String("to_status", string(target)),
					logging.String(logging.FieldEventType, "job_transition_failed"),
				)
			}
		}

		for _, n := range graph.running() {
			if done := o.pollNode(ctx, job.ID, graph, n, logger); done {
				return
			}
			if ctx.Err() != nil {
				break
			}
		}

		if graph.done() {
			if _, err := o.transition(ctx, job.ID, jobs.StatusCompleted, controller.TransitionOptions{
				Progress: controller.Progress(100),
				Reason:   "composition succeeded",
			}); err != nil && !errors.Is(err, errSupersededElsewhere) {
				logger.Error("failed to complete job",
					logging.Error(err),
					logging.String(logging.FieldEventType, "job_transition_failed"),
				)
			}
			logger.Info("job completed",
				logging.String(logging.FieldEventType, "job_completed"),
			)
			o.notify(logger, func() error {
				return o.notifier.NotifyJobCompleted(ctx, job.ID, graph.finalArtifact())
			})
			return
		}

		if o.jobFailed(graph) {
			return
		}

		select {
		case <-ctx.Done():
		case <-time.After(o.pollInterval):
		}
	}
}

func (o *Orchestrator) jobFailed(graph *executionGraph) bool {
	for _, kind := range graph.order {
		if graph.nodes[kind].status == jobs.StageFailed {
			return true
		}
	}
	return false
}

func (o *Orchestrator) dispatchNode(ctx context.Context, jobID string, cfg jobs.GenerationConfig, n *node, logger *slog.Logger) {
	handle, err := o.backend.Dispatch(ctx, stage.Request{
		JobID:   jobID,
		Kind:    n.kind,
		Config:  cfg,
		Attempt: n.attempts,
	})
	if err != nil {
		// Treat dispatch refusal like a transient stage failure so the retry
		// policy bounds it.
		o.handleNodeFailure(ctx, jobID, nil, n, err.Error(), true, logger)
		return
	}

	n.handle = handle
	n.status = jobs.StageRunning
	o.persistNode(ctx, jobID, n, logger)

	logger.Info("stage started",
		logging.String(logging.FieldStage, n.kind.String()),
		logging.String(logging.FieldInvocation, string(handle)),
		logging.Int("attempt", n.attempts),
		logging.String(logging.FieldEventType, "stage_start"),
	)
}

// pollNode consumes one backend observation for a running node. Returns true
// when the observation terminated the whole job.
func (o *Orchestrator) pollNode(ctx context.Context, jobID string, graph *executionGraph, n *node, logger *slog.Logger) bool {
	result, err := o.backend.Poll(ctx, n.handle)
	if err != nil {
		if errors.Is(err, tasks.ErrUnknownHandle) {
			// The backend lost the invocation (restart); retry the attempt.
			return o.handleNodeFailure(ctx, jobID, graph, n, "invocation lost by task backend", true, logger)
		}
		logger.Warn("stage poll failed",
			logging.Error(err),
			logging.String(logging.FieldStage, n.kind.String()),
			logging.String(logging.FieldEventType, "stage_poll_failed"),
			logging.String(logging.FieldErrorHint, "task backend may be unreachable; will poll again"),
		)
		return false
	}

	switch result.State {
	case tasks.StatePending:
		return false
	case tasks.StateSucceeded:
		n.status = jobs.StageSucceeded
		n.errorMessage = ""
		n.artifact = result.Output.ArtifactPath
		n.handle = ""
		o.persistNode(ctx, jobID, n, logger)
		logger.Info("stage completed",
			logging.String(logging.FieldStage, n.kind.String()),
			logging.String("artifact", result.Output.ArtifactPath),
			logging.String(logging.FieldEventType, "stage_complete"),
		)
		return false
	case tasks.StateFailed:
		return o.handleNodeFailure(ctx, jobID, graph, n, result.ErrorMessage, result.Transient, logger)
	default:
		logger.Warn("unknown poll state",
			logging.String("state", string(result.State)),
			logging.String(logging.FieldStage, n.kind.String()),
		)
		return false
	}
}

// handleNodeFailure routes one stage failure through the retry policy.
// Returns true when the failure terminated the whole job.
func (o *Orchestrator) handleNodeFailure(ctx context.Context, jobID string, graph *executionGraph, n *node, message string, transient bool, logger *slog.Logger) bool {
	n.handle = ""

	if transient && n.attempts < o.maxRetries {
		n.attempts++
		n.status = jobs.StagePending
		n.errorMessage = message
		n.nextAttemptAt = time.Now().Add(o.retryBackoff << (n.attempts - 1))
		o.persistNode(ctx, jobID, n, logger)
		if err := o.setRetryCount(ctx, jobID, n.attempts); err != nil {
			logger.Warn("failed to record retry count",
				logging.Error(err),
				logging.String(logging.FieldEventType, "retry_count_update_failed"),
			)
		}
		logger.Warn("stage failed, retrying",
			logging.String(logging.FieldStage, n.kind.String()),
			logging.String("error_message", message),
			logging.Int("attempt", n.attempts),
			logging.Duration("backoff", o.retryBackoff<<(n.attempts-1)),
			logging.String(logging.FieldEventType, "stage_retry"),
		)
		return false
	}

	if !n.critical {
		n.status = jobs.StageSkipped
		n.errorMessage = message
		o.persistNode(ctx, jobID, n, logger)
		logger.Warn("optional stage skipped",
			logging.String(logging.FieldStage, n.kind.String()),
			logging.String("error_message", message),
			logging.String(logging.FieldEventType, "stage_skipped"),
		)
		return false
	}

	n.status = jobs.StageFailed
	n.errorMessage = message
	o.persistNode(ctx, jobID, n, logger)

	if graph != nil {
		o.cancelRunning(ctx, graph, logger)
	}

	o.failJob(ctx, jobID, message, fmt.Sprintf("%s failed", n.kind), logger)
	return true
}

func (o *Orchestrator) cancelRunning(ctx context.Context, graph *executionGraph, logger *slog.Logger) {
	for _, n := range graph.running() {
		if n.handle == "" {
			continue
		}
		if err := o.backend.Cancel(ctx, n.handle); err != nil && !errors.Is(err, tasks.ErrUnknownHandle) {
			logger.Debug("stage cancel failed",
				logging.Error(err),
				logging.String(logging.FieldStage, n.kind.String()),
			)
		}
	}
}

func (o *Orchestrator) persistNode(ctx context.Context, jobID string, n *node, logger *slog.Logger) {
	if err := o.store.UpsertStage(ctx, n.record(jobID)); err != nil {
		logger.Error("failed to persist stage state",
			logging.Error(err),
			logging.String(logging.FieldStage, n.kind.String()),
			logging.String(logging.FieldEventType, "stage_persist_failed"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
	}
}

func (o *Orchestrator) failJob(ctx context.Context, jobID, message, reason string, logger *slog.Logger) {
	if _, err := o.transition(ctx, jobID, jobs.StatusFailed, controller.TransitionOptions{
		ErrorMessage: message,
		Reason:       reason,
	}); err != nil && !errors.Is(err, errSupersededElsewhere) {
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_transition_failed"),
		)
		return
	}
	logger.Error("job failed",
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "job_failed"),
	)
	o.notify(logger, func() error {
		return o.notifier.NotifyJobFailed(ctx, jobID, message)
	})
}

// maybeFinishCancelled finalizes a job whose run loop stopped. An explicit
// cancellation moves the job to cancelled and discards in-flight results;
// a plain shutdown leaves the persisted status for the next Start to resume.
func (o *Orchestrator) maybeFinishCancelled(run *jobRun, jobID string, graph *executionGraph, logger *slog.Logger) {
	if run == nil || !run.cancelRequested.Load() {
		return
	}

	// The run context is already cancelled; finalize on a fresh one.
	finishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if graph != nil {
		o.cancelRunning(finishCtx, graph, logger)
	}

	if _, err := o.transition(finishCtx, jobID, jobs.StatusCancelled, controller.TransitionOptions{
		Reason: "cancellation requested",
	}); err != nil && !errors.Is(err, errSupersededElsewhere) && !errors.Is(err, jobs.ErrInvalidTransition) {
		logger.Error("failed to persist cancellation",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_transition_failed"),
		)
		return
	}
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	o.notify(logger, func() error {
		return o.notifier.NotifyJobCancelled(finishCtx, jobID)
	})
}

func (o *Orchestrator) notify(logger *slog.Logger, send func() error) {
	if err := send(); err != nil {
		logger.Warn("notification delivery failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_failed"),
		)
	}
}

// transition applies a status change, treating a concurrent writer as "the
// job moved without us": the caller gets the fresh record and
// errSupersededElsewhere instead of a blind re-apply.
func (o *Orchestrator) transition(ctx context.Context, jobID string, to jobs.Status, opts controller.TransitionOptions) (*jobs.Job, error) {
	job, err := o.ctrl.ApplyTransition(ctx, jobID, to, opts)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, jobs.ErrConcurrentModification) {
		return nil, err
	}

	fresh, readErr := o.store.GetByID(ctx, jobID)
	if readErr != nil {
		return nil, readErr
	}
	if fresh.Status == to {
		return fresh, nil
	}
	return fresh, fmt.Errorf("%s -> %s: %w", fresh.Status, to, errSupersededElsewhere)
}

// setRetryCount records how many times the currently failing stage has been
// re-attempted. The counter tracks one stage at a time: a later stage's first
// retry overwrites the count left by an earlier stage.
func (o *Orchestrator) setRetryCount(ctx context.Context, jobID string, count int) error {
	for attempt := 0; attempt < 3; attempt++ {
		job, err := o.store.GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if job.RetryCount == count {
			return nil
		}
		updated := *job
		updated.RetryCount = count
		if _, err := o.store.CompareAndSwap(ctx, &updated, nil); err != nil {
			if errors.Is(err, jobs.ErrConcurrentModification) {
				continue
			}
			return err
		}
		return nil
	}
	return jobs.ErrConcurrentModification
}
