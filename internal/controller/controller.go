package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
)

// RecordStore is the durable job record contract the controller needs:
// point reads plus version-guarded writes that append history atomically.
type RecordStore interface {
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	CompareAndSwap(ctx context.Context, job *jobs.Job, record *jobs.TransitionRecord) (*jobs.Job, error)
}

// Controller applies validated status transitions to job records. It is the
// only component that mutates a job's status.
type Controller struct {
	store  RecordStore
	logger *slog.Logger
}

// New constructs a controller over the given record store.
func New(store RecordStore, logger *slog.Logger) *Controller {
	return &Controller{
		store:  store,
		logger: logging.NewComponentLogger(logger, "job-controller"),
	}
}

// TransitionOptions carries the optional fields a transition may set.
type TransitionOptions struct {
	// Progress overrides the status's baseline progress. Values below the
	// job's current progress are ignored; progress never regresses.
	Progress *float64
	// ErrorMessage is persisted when non-empty (failure transitions).
	ErrorMessage string
	// Reason is recorded on the transition history entry.
	Reason string
	// RetryCount replaces the job's retry counter when non-nil.
	RetryCount *int
}

// Progress is a convenience for building TransitionOptions literals.
func Progress(value float64) *float64 { return &value }

// ApplyTransition validates and applies a single status transition. Illegal
// transitions return jobs.ErrInvalidTransition and leave the record
// untouched. A concurrent writer surfaces as jobs.ErrConcurrentModification;
// the controller never retries a transition itself, so timestamps and
// history rows are applied at most once.
func (c *Controller) ApplyTransition(ctx context.Context, jobID string, to jobs.Status, opts TransitionOptions) (*jobs.Job, error) {
	job, err := c.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if !jobs.CanTransition(from, to) {
		return nil, fmt.Errorf("job %s: %s -> %s: %w", jobID, from, to, jobs.ErrInvalidTransition)
	}

	updated := *job
	updated.Status = to
	applyProgress(&updated, job.Progress, to, opts.Progress)
	if opts.ErrorMessage != "" {
		updated.ErrorMessage = opts.ErrorMessage
	}
	if opts.RetryCount != nil {
		updated.RetryCount = *opts.RetryCount
	}

	now := time.Now().UTC()
	if to == jobs.StatusProcessing && updated.StartedAt == nil {
		updated.StartedAt = &now
	}
	if to.IsTerminal() && updated.CompletedAt == nil {
		updated.CompletedAt = &now
	}

	record := &jobs.TransitionRecord{
		JobID:      jobID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     opts.Reason,
	}

	swapped, err := c.store.CompareAndSwap(ctx, &updated, record)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(
		"transition applied",
		logging.String(logging.FieldJobID, jobID),
		logging.String("from_status", string(from)),
		logging.String("to_status", string(to)),
		logging.Float64("progress", swapped.Progress),
		logging.String(logging.FieldEventType, "job_transition"),
	)

	return swapped, nil
}

// NextValidStates returns the statuses the job may legally move to next.
func (c *Controller) NextValidStates(ctx context.Context, jobID string) ([]jobs.Status, error) {
	job, err := c.store.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return jobs.NextStates(job.Status), nil
}

func applyProgress(job *jobs.Job, current float64, to jobs.Status, explicit *float64) {
	if explicit != nil {
		if *explicit >= current {
			job.Progress = *explicit
		}
		return
	}
	if baseline, ok := jobs.BaselineProgress(to); ok && baseline >= current {
		job.Progress = baseline
	}
}
