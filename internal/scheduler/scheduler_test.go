package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidates(t *testing.T) {
	s := New(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add("call_retry", 10*time.Minute, noop))
	assert.ErrorIs(t, s.Add("call_retry", time.Hour, noop), ErrDuplicateJob)
	assert.Error(t, s.Add("", time.Hour, noop))
	assert.Error(t, s.Add("zero", 0, noop))
	assert.Error(t, s.Add("nil", time.Hour, nil))

	require.NoError(t, s.Add("outreach", time.Hour, noop))
	assert.Equal(t, []string{"call_retry", "outreach"}, s.Names())
}

func TestRunOnce(t *testing.T) {
	s := New(nil)
	var calls int32
	boom := errors.New("boom")
	require.NoError(t, s.Add("ok", time.Hour, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, s.Add("fails", time.Hour, func(context.Context) error { return boom }))

	require.NoError(t, s.RunOnce(context.Background(), "ok"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.ErrorIs(t, s.RunOnce(context.Background(), "fails"), boom)
	assert.ErrorIs(t, s.RunOnce(context.Background(), "missing"), ErrUnknownJob)
}

func TestCountingTask(t *testing.T) {
	task := CountingTask(func(context.Context) (int, error) { return 3, nil })
	assert.NoError(t, task(context.Background()))

	boom := errors.New("boom")
	task = CountingTask(func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, task(context.Background()), boom)
}

func TestStartRunsJobsAndRecoversPanics(t *testing.T) {
	s := New(nil)
	var ticks, panics int32
	require.NoError(t, s.Add("ticker", time.Second, func(context.Context) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	}))
	require.NoError(t, s.Add("panicker", time.Second, func(context.Context) error {
		atomic.AddInt32(&panics, 1)
		panic("job exploded")
	}))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&ticks) >= 2 && atomic.LoadInt32(&panics) >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestPanickingJobKeepsRunningOnLaterTicks(t *testing.T) {
	s := New(nil)
	var runs int32
	require.NoError(t, s.Add("always_panics", time.Second, func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		panic("tick failed")
	}))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) >= 3
	}, 6*time.Second, 50*time.Millisecond)
}

func TestStopCancelsRunningTick(t *testing.T) {
	s := New(nil)
	started := make(chan struct{}, 1)
	var cancelled int32
	require.NoError(t, s.Add("slow", time.Second, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	}))

	s.Start(context.Background())
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestParentContextStopsScheduler(t *testing.T) {
	s := New(nil)
	var ticks int32
	require.NoError(t, s.Add("ticker", time.Second, func(context.Context) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.started
	}, 2*time.Second, 20*time.Millisecond)
}
