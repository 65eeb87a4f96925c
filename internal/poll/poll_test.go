package poll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/v0xg/uiharness/internal/poll"
	"github.com/v0xg/uiharness/internal/poll/polltest"
)

func TestUntilImmediateSuccess(t *testing.T) {
	clk := polltest.NewClock()
	out, err := poll.Until(context.Background(), clk, time.Second, 5*time.Second, func(context.Context) (string, bool) {
		return "ready", true
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 1, out.Polls)
	assert.Zero(t, out.Elapsed)
	assert.Equal(t, "ready", out.Last)
	assert.Empty(t, clk.Sleeps())
}

func TestUntilSucceedsAfterSomePolls(t *testing.T) {
	clk := polltest.NewClock()
	n := 0
	out, err := poll.Until(context.Background(), clk, 200*time.Millisecond, 5*time.Second, func(context.Context) (int, bool) {
		n++
		return n, n == 3
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 3, out.Polls)
	assert.Equal(t, 400*time.Millisecond, out.Elapsed)
}

func TestUntilTimeoutReturnsLastValue(t *testing.T) {
	clk := polltest.NewClock()
	n := 0
	out, err := poll.Until(context.Background(), clk, time.Second, 3*time.Second, func(context.Context) (int, bool) {
		n++
		return n * 10, false
	})
	require.NoError(t, err, "timeout is reported through the outcome")
	assert.False(t, out.OK)
	assert.Equal(t, 4, out.Polls) // t=0,1,2,3
	assert.Equal(t, 40, out.Last)
	assert.Equal(t, 3*time.Second, out.Elapsed)
}

func TestUntilClampsFinalSleep(t *testing.T) {
	clk := polltest.NewClock()
	out, err := poll.Condition(context.Background(), clk, 2*time.Second, 3*time.Second, func(context.Context) bool { return false })
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, clk.Sleeps())
	assert.Equal(t, 3*time.Second, out.Elapsed)
}

func TestUntilRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Millisecond} {
		called := false
		_, err := poll.Condition(context.Background(), polltest.NewClock(), interval, time.Second, func(context.Context) bool {
			called = true
			return true
		})
		assert.ErrorIs(t, err, poll.ErrInvalidInterval)
		assert.False(t, called)
	}
}

func TestUntilStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clk := polltest.NewClock()
	out, err := poll.Condition(ctx, clk, time.Second, time.Minute, func(context.Context) bool {
		cancel()
		return false
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.OK)
	assert.Equal(t, 1, out.Polls)
}

func TestUntilWallClock(t *testing.T) {
	start := time.Now()
	out, err := poll.Condition(context.Background(), poll.System, 5*time.Millisecond, 30*time.Millisecond, func(context.Context) bool {
		return time.Since(start) > 12*time.Millisecond
	})
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.GreaterOrEqual(t, out.Polls, 2)
}

func TestUntilElapsedBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		interval := time.Duration(rapid.IntRange(1, 2000).Draw(t, "interval_ms")) * time.Millisecond
		timeout := time.Duration(rapid.IntRange(0, 20000).Draw(t, "timeout_ms")) * time.Millisecond
		// each evaluation may itself take up to one interval
		cost := time.Duration(rapid.Int64Range(0, int64(interval)).Draw(t, "probe_cost"))
		succeedAt := rapid.IntRange(1, 50).Draw(t, "succeed_at")

		clk := polltest.NewClock()
		n := 0
		out, err := poll.Condition(context.Background(), clk, interval, timeout, func(context.Context) bool {
			n++
			clk.Advance(cost)
			return n == succeedAt
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Elapsed > timeout+interval {
			t.Fatalf("elapsed %v exceeds timeout %v + interval %v", out.Elapsed, timeout, interval)
		}
		if !out.OK && out.Elapsed < timeout {
			t.Fatalf("gave up at %v before timeout %v", out.Elapsed, timeout)
		}
	})
}
