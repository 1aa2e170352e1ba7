package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartIsIdempotent(t *testing.T) {
	c := NewController(nil, discardLogger())
	var runs atomic.Int64
	c.Register(Task{
		Name:      "tick",
		Interval:  time.Hour,
		Immediate: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Start(ctx), "second start must be a no-op")
	defer c.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load(), "double start must not double the loops")
	assert.True(t, c.Running())
}

func TestStopDrainsAndAllowsRestart(t *testing.T) {
	c := NewController(nil, discardLogger())
	var runs atomic.Int64
	c.Register(Task{
		Name:      "tick",
		Interval:  10 * time.Millisecond,
		Immediate: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NoError(t, c.Start(context.Background()))
	waitFor(t, time.Second, func() bool { return runs.Load() >= 2 })
	c.Stop()
	assert.False(t, c.Running())

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after stop")

	// Stopping again is harmless; restart works.
	c.Stop()
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	waitFor(t, time.Second, func() bool { return runs.Load() > after })
}

func TestTriggerRunsOutOfBand(t *testing.T) {
	c := NewController(nil, discardLogger())
	var runs atomic.Int64
	c.Register(Task{
		Name:     "slow",
		Interval: time.Hour, // never fires on its own in this test
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	require.NoError(t, c.Trigger("slow"))
	waitFor(t, time.Second, func() bool { return runs.Load() == 1 })

	assert.Error(t, c.Trigger("nope"), "unknown task name")
}

func TestRetryDelayAfterFailure(t *testing.T) {
	c := NewController(nil, discardLogger())
	var runs atomic.Int64
	c.Register(Task{
		Name:       "flaky",
		Interval:   time.Hour,
		RetryDelay: 10 * time.Millisecond,
		Immediate:  true,
		Run: func(context.Context) error {
			if runs.Add(1) < 2 {
				return errors.New("boom")
			}
			return nil
		},
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// The failure reschedules on the short retry delay, not the hour interval.
	waitFor(t, time.Second, func() bool { return runs.Load() >= 2 })

	waitFor(t, time.Second, func() bool {
		for _, s := range c.Status() {
			if s.Name == "flaky" {
				return s.ConsecutiveFailures == 0 && s.LastError == ""
			}
		}
		return false
	})
}

func TestRetryDelayAppliesOnlyOnce(t *testing.T) {
	c := NewController(nil, discardLogger())
	var runs atomic.Int64
	c.Register(Task{
		Name:       "wedged",
		Interval:   time.Hour,
		RetryDelay: 10 * time.Millisecond,
		Immediate:  true,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	// The first failure gets one short retry; the failed retry falls back to
	// the hour interval instead of hot-looping on the retry delay.
	waitFor(t, time.Second, func() bool { return runs.Load() == 2 })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(2), runs.Load())
}

func TestStatusTracksFailures(t *testing.T) {
	c := NewController(nil, discardLogger())
	c.Register(Task{
		Name:      "broken",
		Interval:  time.Hour,
		Immediate: true,
		Run: func(context.Context) error {
			return errors.New("kaput")
		},
	})

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	waitFor(t, time.Second, func() bool {
		statuses := c.Status()
		return len(statuses) == 1 && statuses[0].Runs >= 1
	})

	s := c.Status()[0]
	assert.Equal(t, "broken", s.Name)
	assert.Equal(t, "kaput", s.LastError)
	assert.GreaterOrEqual(t, s.ConsecutiveFailures, 1)
	assert.False(t, s.LastRun.IsZero())
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)

	// 3:00 on the 1st of every month.
	next, err := nextCronTime("0 3 1 * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC), next)

	// Every minute.
	next, err = nextCronTime("* * * * *", after)
	require.NoError(t, err)
	assert.Equal(t, after.Add(time.Minute), next)

	_, err = nextCronTime("not a cron", after)
	assert.Error(t, err)
}
