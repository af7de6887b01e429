package tasks

import (
	"context"
	"errors"

	"reelsmith/internal/stage"
)

// Handle identifies one dispatched stage invocation.
type Handle string

// State is the coarse execution state reported by Poll.
type State string

const (
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Result is the observable outcome of one invocation.
type Result struct {
	State State
	// Output is populated when State is StateSucceeded.
	Output stage.Result
	// ErrorMessage is populated when State is StateFailed.
	ErrorMessage string
	// Transient reports whether a failure is worth re-dispatching.
	Transient bool
}

// ErrUnknownHandle indicates a poll or cancel for an invocation the backend
// does not know (never dispatched, or already consumed).
var ErrUnknownHandle = errors.New("unknown invocation handle")

// Backend is the task-execution contract the orchestrator dispatches stage
// invocations through. Dispatch is non-blocking; completion is observed via
// Poll. Implementations enforce per-invocation timeouts and report them as
// transient failures.
type Backend interface {
	Dispatch(ctx context.Context, req stage.Request) (Handle, error)
	Poll(ctx context.Context, handle Handle) (Result, error)
	Cancel(ctx context.Context, handle Handle) error
}
