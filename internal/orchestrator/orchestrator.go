package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/controller"
	"reelsmith/internal/jobs"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/tasks"
)

// Orchestrator decomposes jobs into execution graphs and drives them to a
// terminal status. It is stateless apart from the durable job store: every
// job progresses on its own goroutine, and all job mutations go through the
// controller's version-guarded transitions.
type Orchestrator struct {
	cfg      *config.Config
	store    *jobs.Store
	ctrl     *controller.Controller
	backend  tasks.Backend
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	maxRetries   int
	retryBackoff time.Duration

	mu      sync.Mutex
	running bool
	rootCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]*jobRun
}

// jobRun tracks one in-flight job loop. cancelRequested distinguishes an
// explicit job cancellation from orchestrator shutdown: both stop the loop,
// but only the former moves the job to cancelled.
type jobRun struct {
	cancel          context.CancelFunc
	cancelRequested atomic.Bool
}

// New constructs an orchestrator over the given store and task backend.
func New(cfg *config.Config, store *jobs.Store, backend tasks.Backend, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		store:        store,
		ctrl:         controller.New(store, logger),
		backend:      backend,
		notifier:     notifications.NewService(cfg),
		logger:       logging.NewComponentLogger(logger, "orchestrator"),
		pollInterval: cfg.PollInterval(),
		maxRetries:   cfg.Workflow.MaxRetries,
		retryBackoff: cfg.RetryBackoff(),
		active:       make(map[string]*jobRun),
	}
}

// Start begins background processing and re-adopts jobs that were active
// when the previous process stopped.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.New("orchestrator already running")
	}
	rootCtx, cancel := context.WithCancel(ctx)
	o.rootCtx = rootCtx
	o.cancel = cancel
	o.running = true
	o.mu.Unlock()

	resumed, err := o.store.ActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("list active jobs: %w", err)
	}
	for _, job := range resumed {
		o.adopt(job.ID)
		o.logger.Info(
			"resuming job",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldEventType, "job_resumed"),
		)
	}

	o.wg.Add(1)
	go o.scanLoop(rootCtx)
	return nil
}

// scanLoop adopts non-terminal jobs created by other processes, such as CLI
// submissions that landed directly in the store.
func (o *Orchestrator) scanLoop(ctx context.Context) {
	defer o.wg.Done()

	interval := o.pollInterval * 4
	if interval < time.Second {
		interval = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		active, err := o.store.ActiveJobs(ctx)
		if err != nil {
			if ctx.Err() == nil {
				o.logger.Warn("active job scan failed", logging.Error(err))
			}
			continue
		}
		for _, job := range active {
			o.adopt(job.ID)
		}
	}
}

// Stop terminates background processing and waits for in-flight job loops.
// Jobs stay in their current persisted status and are re-adopted on the next
// Start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.running = false
	o.cancel = nil
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
}

// Submit creates a job in the pending status and begins driving it.
func (o *Orchestrator) Submit(ctx context.Context, id string, cfg jobs.GenerationConfig) (*jobs.Job, error) {
	configJSON, err := jobs.EncodeConfig(cfg)
	if err != nil {
		return nil, err
	}
	job, err := o.store.Create(ctx, id, configJSON)
	if err != nil {
		return nil, err
	}

	o.logger.Info(
		"job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Bool("voice_enabled", cfg.VoiceEnabled),
		logging.Bool("music_enabled", cfg.MusicEnabled),
		logging.String(logging.FieldEventType, "job_submitted"),
	)

	o.adopt(job.ID)
	return job, nil
}

// Cancel requests cancellation of a job. A job this instance is driving has
// its run loop interrupted; a job no other work is touching is moved to
// cancelled directly.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	run, inFlight := o.active[id]
	o.mu.Unlock()

	if inFlight {
		run.cancelRequested.Store(true)
		run.cancel()
		return nil
	}

	_, err := o.ctrl.ApplyTransition(ctx, id, jobs.StatusCancelled, controller.TransitionOptions{
		Reason: "cancellation requested",
	})
	if errors.Is(err, jobs.ErrInvalidTransition) {
		// Already terminal.
		return nil
	}
	if err == nil {
		o.notify(o.logger, func() error {
			return o.notifier.NotifyJobCancelled(ctx, id)
		})
	}
	return err
}

// Status returns the job's durable record.
func (o *Orchestrator) Status(ctx context.Context, id string) (*jobs.Job, error) {
	return o.store.GetByID(ctx, id)
}

// adopt starts (or restarts) the run loop for a job if the orchestrator is
// running and no loop already owns it.
func (o *Orchestrator) adopt(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return
	}
	if _, exists := o.active[id]; exists {
		return
	}
	runCtx, cancelRun := context.WithCancel(o.rootCtx)
	run := &jobRun{cancel: cancelRun}
	o.active[id] = run
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.active, id)
			o.mu.Unlock()
			cancelRun()
		}()
		o.runJob(runCtx, run, id)
	}()
}
