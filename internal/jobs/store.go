package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Create inserts a new job in the pending status.
func (s *Store) Create(ctx context.Context, id, configJSON string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, status, progress, config_json, created_at, updated_at, version)
         VALUES (?, ?, ?, ?, ?, ?, 1)`,
		id,
		StatusPending,
		0.0,
		configJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// CompareAndSwap persists the job's mutable fields, guarded by the version
// marker the job was loaded with. The optional transition record is appended
// in the same transaction. Returns ErrConcurrentModification when another
// writer advanced the job since it was read.
func (s *Store) CompareAndSwap(ctx context.Context, job *Job, record *TransitionRecord) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	ctx = ensureContext(ctx)
	now := time.Now().UTC()

	var swapped *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cas tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, progress = ?, error_message = ?, retry_count = ?,
                 started_at = ?, completed_at = ?, updated_at = ?, version = version + 1
             WHERE id = ? AND version = ?`,
			job.Status,
			job.Progress,
			nullableString(job.ErrorMessage),
			job.RetryCount,
			nullableTime(job.StartedAt),
			nullableTime(job.CompletedAt),
			now.Format(time.RFC3339Nano),
			job.ID,
			job.Version,
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE id = ?`, job.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check job existence: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
			}
			return fmt.Errorf("job %s version %d: %w", job.ID, job.Version, ErrConcurrentModification)
		}

		if record != nil {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO job_transitions (job_id, from_status, to_status, reason, created_at)
                 VALUES (?, ?, ?, ?, ?)`,
				record.JobID,
				record.FromStatus,
				record.ToStatus,
				nullableString(record.Reason),
				now.Format(time.RFC3339Nano),
			); err != nil {
				return fmt.Errorf("append transition: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cas tx: %w", err)
		}

		updated := *job
		updated.Version = job.Version + 1
		updated.UpdatedAt = now
		swapped = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swapped, nil
}

// TransitionsForJob returns the append-only status history in order.
func (s *Store) TransitionsForJob(ctx context.Context, jobID string) ([]TransitionRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, job_id, from_status, to_status, reason, created_at
         FROM job_transitions WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var records []TransitionRecord
	for rows.Next() {
		var (
			record     TransitionRecord
			fromStatus string
			toStatus   string
			reason     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&record.ID, &record.JobID, &fromStatus, &toStatus, &reason, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		record.FromStatus = Status(fromStatus)
		record.ToStatus = Status(toStatus)
		record.Reason = reason.String
		if created, err := parseTimeString(createdRaw); err == nil {
			record.CreatedAt = created
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpsertStage records the latest outcome of one stage node.
func (s *Store) UpsertStage(ctx context.Context, record StageRecord) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO job_stages (job_id, kind, status, attempts, error_message, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id, kind) DO UPDATE SET
             status = excluded.status,
             attempts = excluded.attempts,
             error_message = excluded.error_message,
             updated_at = excluded.updated_at`,
		record.JobID,
		record.Kind,
		record.Status,
		record.Attempts,
		nullableString(record.ErrorMessage),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert stage: %w", err)
	}
	return nil
}

// StagesForJob returns the persisted stage outcomes keyed by kind.
func (s *Store) StagesForJob(ctx context.Context, jobID string) (map[string]StageRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, kind, status, attempts, error_message, updated_at
         FROM job_stages WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	records := make(map[string]StageRecord)
	for rows.Next() {
		var (
			record     StageRecord
			status     string
			errMsg     sql.NullString
			updatedRaw string
		)
		if err := rows.Scan(&record.JobID, &record.Kind, &status, &record.Attempts, &errMsg, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		record.Status = StageStatus(status)
		record.ErrorMessage = errMsg.String
		if updated, err := parseTimeString(updatedRaw); err == nil {
			record.UpdatedAt = updated
		}
		records[record.Kind] = record
	}
	return records, rows.Err()
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ActiveJobs returns jobs that have not reached a terminal status.
func (s *Store) ActiveJobs(ctx context.Context) ([]*Job, error) {
	active := make([]Status, 0, len(allStatuses))
	for _, status := range allStatuses {
		if !status.IsTerminal() {
			active = append(active, status)
		}
	}
	return s.List(ctx, active...)
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		default:
			if status.IsActive() {
				health.Active += count
			}
		}
	}
	return health, nil
}

// RetryFailed moves failed jobs back to pending for reprocessing and clears
// their stage rows so the graph is rebuilt from scratch.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	query := `UPDATE jobs
        SET status = ?, progress = 0, error_message = NULL, retry_count = 0,
            completed_at = NULL, updated_at = ?, version = version + 1
        WHERE status = ?`
	args := []any{StatusPending, timestamp, StatusFailed}
	stageQuery := `DELETE FROM job_stages WHERE job_id IN (SELECT id FROM jobs WHERE status = ?)`
	stageArgs := []any{StatusFailed}

	if len(ids) > 0 {
		placeholders := makePlaceholders(len(ids))
		query += ` AND id IN (` + placeholders + `)`
		stageQuery = `DELETE FROM job_stages WHERE job_id IN (` + placeholders + `)`
		stageArgs = stageArgs[:0]
		for _, id := range ids {
			args = append(args, id)
			stageArgs = append(stageArgs, id)
		}
	}

	if _, err := s.execWithRetry(ctx, stageQuery, stageArgs...); err != nil {
		return 0, fmt.Errorf("clear failed job stages: %w", err)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes completed, failed, and cancelled jobs.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, status, progress, config_json, error_message, retry_count, created_at, updated_at, started_at, completed_at, version"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		statusStr    string
		progress     float64
		configJSON   string
		errorMessage sql.NullString
		retryCount   int
		createdRaw   string
		updatedRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		version      int64
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&progress,
		&configJSON,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&version,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		Status:       Status(statusStr),
		Progress:     progress,
		ConfigJSON:   configJSON,
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
		Version:      version,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
