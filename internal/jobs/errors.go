package jobs

import "errors"

var (
	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates the requested status change is not in
	// the transition table for the job's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentModification indicates the job's version marker moved
	// between read and write. The caller must re-read and recompute rather
	// than re-apply the stale write.
	ErrConcurrentModification = errors.New("concurrent modification")
)
