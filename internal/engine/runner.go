package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scriba_backend/internal/logger"
)

// ErrQueueFull is returned by Dispatch when the job queue has no free slot.
// Callers surface it to the client instead of blocking the request.
var ErrQueueFull = errors.New("engine: job queue is full")

// ErrStopped is returned by Dispatch after the runner has been shut down.
var ErrStopped = errors.New("engine: runner is stopped")

// Task is a unit of background work. Run executes the job; OnFailure, if
// set, is invoked when Run returns an error or panics, so the owning service
// can move its ledger record to failed.
type Task struct {
	ID        string
	Run       func(ctx context.Context) error
	OnFailure func(ctx context.Context, err error)
}

type queuedTask struct {
	task *Task
	ctx  context.Context
}

// Runner executes tasks on a fixed pool of workers fed by a bounded queue.
// Each task gets its own cancellable context; Cancel aborts a task whether
// it is still queued or already running.
type Runner struct {
	queue   chan queuedTask
	workers int

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		queue:   make(chan queuedTask, queueSize),
		workers: workers,
		active:  make(map[string]context.CancelFunc),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	logger.Info("job runner started", "workers", r.workers, "queue_size", cap(r.queue))
}

// Dispatch enqueues a task without blocking. It returns ErrQueueFull when
// the queue is saturated and ErrStopped after shutdown. The enqueue happens
// under the same lock that Shutdown closes the queue under, so a dispatch
// can never race a close.
func (r *Runner) Dispatch(task *Task) error {
	if task == nil || task.ID == "" || task.Run == nil {
		return errors.New("engine: task requires an ID and a Run function")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}

	jobCtx, jobCancel := context.WithCancel(r.baseCtx)
	select {
	case r.queue <- queuedTask{task: task, ctx: jobCtx}:
		r.active[task.ID] = jobCancel
		return nil
	default:
		jobCancel()
		return ErrQueueFull
	}
}

// Cancel aborts the task with the given ID. It reports whether the task was
// known to the runner at the time of the call.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	cancel, ok := r.active[jobID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown stops accepting work, cancels everything in flight and waits for
// the workers to drain, or gives up when ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown timed out: %w", ctx.Err())
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for item := range r.queue {
		r.execute(item)
	}
}

func (r *Runner) execute(item queuedTask) {
	task := item.task
	defer r.release(task.ID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("job panicked", "job_id", task.ID, "panic", rec)
			r.fail(task, fmt.Errorf("job panicked: %v", rec))
		}
	}()

	ctx := logger.WithJobID(item.ctx, task.ID)
	if err := task.Run(ctx); err != nil {
		logger.CtxWithError(ctx, "job failed", err)
		r.fail(task, err)
	}
}

func (r *Runner) fail(task *Task, err error) {
	if task.OnFailure == nil {
		return
	}
	// Detached from the job context: a cancelled job must still get its
	// ledger record moved to failed.
	task.OnFailure(logger.WithJobID(context.Background(), task.ID), err)
}

func (r *Runner) release(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[jobID]; ok {
		cancel()
		delete(r.active, jobID)
	}
}
