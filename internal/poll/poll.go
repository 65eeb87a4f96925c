// Package poll implements the bounded condition polling every wait in the
// harness is built on.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidInterval is returned when the polling interval is not positive
var ErrInvalidInterval = errors.New("poll: interval must be positive")

// Clock abstracts time so waits can run against a virtual clock in tests
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall clock
var System Clock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Probe evaluates a condition once, returning the observed value and whether
// the condition holds
type Probe[T any] func(ctx context.Context) (T, bool)

// Outcome is the result of a polling run
type Outcome[T any] struct {
	OK      bool
	Elapsed time.Duration
	Last    T   // value observed by the final evaluation
	Polls   int // number of probe evaluations
}

// Until evaluates probe immediately and then every interval until it reports
// true or timeout has elapsed. Timing out is not an error: the returned
// Outcome has OK false and carries the last observed value. The only errors
// are ErrInvalidInterval and context cancellation.
func Until[T any](ctx context.Context, clk Clock, interval, timeout time.Duration, probe Probe[T]) (Outcome[T], error) {
	var out Outcome[T]
	if interval <= 0 {
		return out, ErrInvalidInterval
	}
	if clk == nil {
		clk = System
	}

	start := clk.Now()
	for {
		v, ok := probe(ctx)
		out.Polls++
		out.Last = v
		out.Elapsed = clk.Now().Sub(start)
		if ok {
			out.OK = true
			return out, nil
		}
		if out.Elapsed >= timeout {
			return out, nil
		}

		// never sleep past the deadline, so the final evaluation lands on it
		wait := interval
		if remaining := timeout - out.Elapsed; remaining < wait {
			wait = remaining
		}
		if err := clk.Sleep(ctx, wait); err != nil {
			return out, err
		}
	}
}

// Condition is Until for probes with nothing to report beyond true/false
func Condition(ctx context.Context, clk Clock, interval, timeout time.Duration, cond func(ctx context.Context) bool) (Outcome[bool], error) {
	return Until(ctx, clk, interval, timeout, func(ctx context.Context) (bool, bool) {
		ok := cond(ctx)
		return ok, ok
	})
}
