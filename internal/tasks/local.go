package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// LocalBackend executes stage invocations on goroutines inside the current
// process. It enforces the configured per-stage timeout and reports timeouts
// as transient failures.
type LocalBackend struct {
	registry *stage.Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	invocations map[Handle]*invocation
}

type invocation struct {
	cancel context.CancelFunc
	done   bool
	result Result
}

// NewLocalBackend constructs an in-process execution backend over the
// registry's handlers.
func NewLocalBackend(registry *stage.Registry, timeout time.Duration, logger *slog.Logger) *LocalBackend {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &LocalBackend{
		registry:    registry,
		timeout:     timeout,
		logger:      logging.NewComponentLogger(logger, "local-backend"),
		invocations: make(map[Handle]*invocation),
	}
}

// Dispatch starts the invocation and returns immediately.
func (b *LocalBackend) Dispatch(ctx context.Context, req stage.Request) (Handle, error) {
	handler, ok := b.registry.Handler(req.Kind)
	if !ok {
		return "", fmt.Errorf("dispatch %s: no handler registered", req.Kind)
	}

	handle := Handle(uuid.NewString())
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	inv := &invocation{cancel: cancel}

	b.mu.Lock()
	b.invocations[handle] = inv
	b.mu.Unlock()

	go b.run(runCtx, handle, handler, req)

	b.logger.Debug(
		"invocation dispatched",
		logging.String(logging.FieldJobID, req.JobID),
		logging.String(logging.FieldStage, req.Kind.String()),
		logging.String(logging.FieldInvocation, string(handle)),
		logging.Int("attempt", req.Attempt),
	)
	return handle, nil
}

func (b *LocalBackend) run(ctx context.Context, handle Handle, handler stage.Handler, req stage.Request) {
	stageCtx := logging.WithStage(logging.WithJobID(ctx, req.JobID), req.Kind.String())

	execute := func() (stage.Result, error) {
		if err := handler.Prepare(stageCtx, req); err != nil {
			return stage.Result{}, err
		}
		return handler.Execute(stageCtx, req)
	}

	output, err := execute()
	if err == nil {
		err = ctx.Err()
	}

	result := Result{State: StateSucceeded, Output: output}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, req.Kind.String(), "execute",
				fmt.Sprintf("exceeded %s deadline", b.timeout), nil)
		}
		result = Result{
			State:        StateFailed,
			ErrorMessage: services.Message(err),
			Transient:    services.IsTransient(err) && !errors.Is(err, context.Canceled),
		}
	}

	b.mu.Lock()
	if inv, ok := b.invocations[handle]; ok {
		inv.done = true
		inv.result = result
		inv.cancel()
	}
	b.mu.Unlock()
}

// Poll reports the invocation's current state. Terminal results are consumed:
// the handle is forgotten once its result has been returned.
func (b *LocalBackend) Poll(_ context.Context, handle Handle) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invocations[handle]
	if !ok {
		return Result{}, fmt.Errorf("poll %s: %w", handle, ErrUnknownHandle)
	}
	if !inv.done {
		return Result{State: StatePending}, nil
	}
	delete(b.invocations, handle)
	return inv.result, nil
}

// Cancel stops a running invocation and forgets its handle. Callers stop
// polling after a cancel, so the eventual result is dropped here rather than
// held for a Poll that never comes.
func (b *LocalBackend) Cancel(_ context.Context, handle Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	inv, ok := b.invocations[handle]
	if !ok {
		return fmt.Errorf("cancel %s: %w", handle, ErrUnknownHandle)
	}
	inv.cancel()
	delete(b.invocations, handle)
	return nil
}
