package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRunnerExecutesDispatchedTask(t *testing.T) {
	r := NewRunner(2, 4)
	r.Start()
	defer r.Shutdown(context.Background())

	var ran atomic.Bool
	err := r.Dispatch(&Task{
		ID:  "job-1",
		Run: func(ctx context.Context) error { ran.Store(true); return nil },
	})
	require.NoError(t, err)

	waitFor(t, ran.Load)
}

func TestRunnerQueueFull(t *testing.T) {
	r := NewRunner(1, 1)
	// Workers are never started, so the single queue slot stays occupied.

	require.NoError(t, r.Dispatch(&Task{
		ID:  "job-1",
		Run: func(ctx context.Context) error { return nil },
	}))

	err := r.Dispatch(&Task{
		ID:  "job-2",
		Run: func(ctx context.Context) error { return nil },
	})
	assert.ErrorIs(t, err, ErrQueueFull)

	// The rejected task must not linger as cancellable state.
	assert.False(t, r.Cancel("job-2"))
}

func TestRunnerDispatchAfterShutdown(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()
	require.NoError(t, r.Shutdown(context.Background()))

	err := r.Dispatch(&Task{
		ID:  "job-1",
		Run: func(ctx context.Context) error { return nil },
	})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunnerCancelRunningTask(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()
	defer r.Shutdown(context.Background())

	started := make(chan struct{})
	var sawCancel atomic.Bool
	var failed atomic.Bool

	require.NoError(t, r.Dispatch(&Task{
		ID: "job-1",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			sawCancel.Store(true)
			return ctx.Err()
		},
		OnFailure: func(ctx context.Context, err error) {
			failed.Store(true)
		},
	}))

	<-started
	assert.True(t, r.Cancel("job-1"))

	waitFor(t, sawCancel.Load)
	waitFor(t, failed.Load)
}

func TestRunnerCancelUnknownJob(t *testing.T) {
	r := NewRunner(1, 1)
	assert.False(t, r.Cancel("missing"))
}

func TestRunnerPanicInvokesOnFailure(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()
	defer r.Shutdown(context.Background())

	var failure atomic.Value
	require.NoError(t, r.Dispatch(&Task{
		ID:  "job-1",
		Run: func(ctx context.Context) error { panic("boom") },
		OnFailure: func(ctx context.Context, err error) {
			failure.Store(err)
		},
	}))

	waitFor(t, func() bool { return failure.Load() != nil })
	assert.Contains(t, failure.Load().(error).Error(), "boom")
}

func TestRunnerFailureContextOutlivesJobContext(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()
	defer r.Shutdown(context.Background())

	started := make(chan struct{})
	var failureCtxErr atomic.Value

	require.NoError(t, r.Dispatch(&Task{
		ID: "job-1",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
		OnFailure: func(ctx context.Context, err error) {
			// The failure hook must run on a live context even though the
			// job's own context was cancelled.
			failureCtxErr.Store(ctx.Err() == nil)
		},
	}))

	<-started
	r.Cancel("job-1")
	waitFor(t, func() bool { return failureCtxErr.Load() != nil })
	assert.True(t, failureCtxErr.Load().(bool))
}

func TestRunnerRunErrorReachesOnFailure(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()
	defer r.Shutdown(context.Background())

	want := errors.New("provider unavailable")
	var got atomic.Value

	require.NoError(t, r.Dispatch(&Task{
		ID:        "job-1",
		Run:       func(ctx context.Context) error { return want },
		OnFailure: func(ctx context.Context, err error) { got.Store(err) },
	}))

	waitFor(t, func() bool { return got.Load() != nil })
	assert.ErrorIs(t, got.Load().(error), want)
}

func TestRunnerDispatchValidation(t *testing.T) {
	r := NewRunner(1, 1)
	assert.Error(t, r.Dispatch(nil))
	assert.Error(t, r.Dispatch(&Task{ID: "no-run"}))
	assert.Error(t, r.Dispatch(&Task{Run: func(ctx context.Context) error { return nil }}))
}

func TestRunnerDispatchDuringShutdownNeverPanics(t *testing.T) {
	for i := 0; i < 200; i++ {
		r := NewRunner(2, 4)
		r.Start()

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					err := r.Dispatch(&Task{
						ID:  fmt.Sprintf("job-%d-%d", g, j),
						Run: func(ctx context.Context) error { return nil },
					})
					if err != nil {
						// Saturation or shutdown; either way the dispatch
						// must fail cleanly, never panic on a closed queue.
						assert.True(t, errors.Is(err, ErrQueueFull) || errors.Is(err, ErrStopped))
					}
				}
			}(g)
		}

		require.NoError(t, r.Shutdown(context.Background()))
		wg.Wait()

		err := r.Dispatch(&Task{ID: "late", Run: func(ctx context.Context) error { return nil }})
		assert.ErrorIs(t, err, ErrStopped)
	}
}

func TestRunnerShutdownWaitsForInflight(t *testing.T) {
	r := NewRunner(1, 1)
	r.Start()

	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, r.Dispatch(&Task{
		ID: "job-1",
		Run: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	}))

	<-started
	require.NoError(t, r.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}
