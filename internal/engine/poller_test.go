package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerFinishesWhenDone(t *testing.T) {
	p := NewPoller(time.Millisecond, time.Second)

	attempts := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		attempts++
		return attempts >= 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPollerRetriesTransientErrors(t *testing.T) {
	p := NewPoller(time.Millisecond, time.Second)

	attempts := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		attempts++
		if attempts < 3 {
			return false, errors.New("temporary network failure")
		}
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPollerStopsOnPermanentError(t *testing.T) {
	p := NewPoller(time.Millisecond, time.Second)

	want := errors.New("run ended with status failed")
	attempts := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		attempts++
		return false, Permanent(want)
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, attempts)
}

func TestPollerTimesOut(t *testing.T) {
	p := NewPoller(time.Millisecond, 20*time.Millisecond)

	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestPollerHonorsCallerCancellation(t *testing.T) {
	p := NewPoller(time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Poll(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrPollTimeout)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(0, 0)
	assert.Equal(t, 3*time.Second, p.Interval)
	assert.Equal(t, 5*time.Minute, p.Timeout)
}
