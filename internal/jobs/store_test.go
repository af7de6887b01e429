package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestJob(t *testing.T, store *Store, id string) *Job {
	t.Helper()
	configJSON, err := EncodeConfig(GenerationConfig{Script: "hello world."})
	if err != nil {
		t.Fatalf("EncodeConfig: %v", err)
	}
	job, err := store.Create(context.Background(), id, configJSON)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestCreateAndGet(t *testing.T) {
	store := openTestStore(t)
	job := createTestJob(t, store, "job-1")

	if job.Status != StatusPending {
		t.Fatalf("new job status = %s", job.Status)
	}
	if job.Version != 1 {
		t.Fatalf("new job version = %d", job.Version)
	}
	if job.Progress != 0 {
		t.Fatalf("new job progress = %v", job.Progress)
	}
	if job.StartedAt != nil || job.CompletedAt != nil {
		t.Fatal("timestamps set prematurely")
	}

	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job error = %v", err)
	}
}

func TestCompareAndSwapDetectsConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, store, "job-1")

	first := *job
	first.Status = StatusValidating
	updated, err := store.CompareAndSwap(ctx, &first, &TransitionRecord{
		JobID: job.ID, FromStatus: StatusPending, ToStatus: StatusValidating, Reason: "accepted",
	})
	if err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	if updated.Version != job.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, job.Version+1)
	}

	// Second writer still holds the original version.
	stale := *job
	stale.Status = StatusCancelled
	if _, err := store.CompareAndSwap(ctx, &stale, nil); !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("stale write error = %v", err)
	}

	// The conflicting write must not have changed anything.
	current, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if current.Status != StatusValidating {
		t.Fatalf("status after conflict = %s", current.Status)
	}

	missing := *job
	missing.ID = "missing"
	if _, err := store.CompareAndSwap(ctx, &missing, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing job cas error = %v", err)
	}
}

func TestCompareAndSwapAppendsExactlyOneRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, store, "job-1")

	next := *job
	next.Status = StatusValidating
	if _, err := store.CompareAndSwap(ctx, &next, &TransitionRecord{
		JobID: job.ID, FromStatus: StatusPending, ToStatus: StatusValidating, Reason: "accepted",
	}); err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}

	records, err := store.TransitionsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("TransitionsForJob: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("transition rows = %d, want 1", len(records))
	}
	record := records[0]
	if record.FromStatus != StatusPending || record.ToStatus != StatusValidating || record.Reason != "accepted" {
		t.Fatalf("unexpected record: %+v", record)
	}

	// A CAS without a record (retry-count bump) adds no history.
	bump, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	withRetry := *bump
	withRetry.RetryCount = 1
	if _, err := store.CompareAndSwap(ctx, &withRetry, nil); err != nil {
		t.Fatalf("CompareAndSwap bump: %v", err)
	}
	records, err = store.TransitionsForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("TransitionsForJob: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("transition rows after bump = %d, want 1", len(records))
	}
}

func TestStageUpsertAndFetch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, store, "job-1")

	record := StageRecord{JobID: job.ID, Kind: "image_generation", Status: StageRunning, Attempts: 0}
	if err := store.UpsertStage(ctx, record); err != nil {
		t.Fatalf("UpsertStage: %v", err)
	}
	record.Status = StageFailed
	record.Attempts = 2
	record.ErrorMessage = "backend flake"
	if err := store.UpsertStage(ctx, record); err != nil {
		t.Fatalf("UpsertStage update: %v", err)
	}

	stages, err := store.StagesForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("StagesForJob: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("stage rows = %d, want 1", len(stages))
	}
	got := stages["image_generation"]
	if got.Status != StageFailed || got.Attempts != 2 || got.ErrorMessage != "backend flake" {
		t.Fatalf("unexpected stage row: %+v", got)
	}
}

func TestActiveJobsExcludesTerminal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	active := createTestJob(t, store, "active")
	done := createTestJob(t, store, "done")

	finished := *done
	finished.Status = StatusValidating
	finished2, err := store.CompareAndSwap(ctx, &finished, nil)
	if err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	cancelled := *finished2
	cancelled.Status = StatusCancelled
	if _, err := store.CompareAndSwap(ctx, &cancelled, nil); err != nil {
		t.Fatalf("CompareAndSwap cancel: %v", err)
	}

	list, err := store.ActiveJobs(ctx)
	if err != nil {
		t.Fatalf("ActiveJobs: %v", err)
	}
	if len(list) != 1 || list[0].ID != active.ID {
		t.Fatalf("active jobs = %+v", list)
	}
}

func TestRetryFailedResetsJobAndStages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, store, "job-1")

	failed := *job
	failed.Status = StatusFailed
	failed.ErrorMessage = "composition failed"
	failed.RetryCount = 3
	failed.Progress = 85
	if _, err := store.CompareAndSwap(ctx, &failed, nil); err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}
	if err := store.UpsertStage(ctx, StageRecord{JobID: job.ID, Kind: "composition", Status: StageFailed, Attempts: 3}); err != nil {
		t.Fatalf("UpsertStage: %v", err)
	}

	updated, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("RetryFailed updated = %d, want 1", updated)
	}

	fresh, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fresh.Status != StatusPending || fresh.Progress != 0 || fresh.RetryCount != 0 || fresh.ErrorMessage != "" {
		t.Fatalf("job not reset: %+v", fresh)
	}
	stages, err := store.StagesForJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("StagesForJob: %v", err)
	}
	if len(stages) != 0 {
		t.Fatalf("stage rows survived retry reset: %+v", stages)
	}
}

func TestHealthSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createTestJob(t, store, "pending-1")
	working := createTestJob(t, store, "working-1")

	next := *working
	next.Status = StatusValidating
	if _, err := store.CompareAndSwap(ctx, &next, nil); err != nil {
		t.Fatalf("CompareAndSwap: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Active != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}
