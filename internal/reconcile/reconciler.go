// Package reconcile confirms asynchronous state changes against an
// authoritative signal instead of what the page happens to display.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/poll"
	"github.com/v0xg/uiharness/internal/uierr"
)

const (
	DefaultInterval = time.Second
	DefaultTimeout  = 15 * time.Second
)

// ErrInvalidTransition is returned when a phase method is called out of order
var ErrInvalidTransition = errors.New("reconcile: invalid transition")

// Phase is the reconciler state
type Phase int

const (
	Idle Phase = iota
	Submitted
	Propagating
	Confirmed
	Mismatch
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Submitted:
		return "submitted"
	case Propagating:
		return "propagating"
	case Confirmed:
		return "confirmed"
	case Mismatch:
		return "mismatch"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Signal reads a value. The authoritative signal comes from the server; a
// visual signal from the page is only ever reported, never trusted.
type Signal func(ctx context.Context) (string, error)

// Options configures a Reconciler
type Options struct {
	Interval time.Duration
	Timeout  time.Duration // allow for backend propagation delay
	Target   string        // description for logs and diagnostics
	// Visual optionally reads the client-rendered indicator for comparison
	Visual  Signal
	Clock   poll.Clock
	Logger  *zap.Logger
	Capture diagnostic.Capturer
}

// Report summarizes a confirmation
type Report struct {
	Phase    Phase
	Expected string
	Observed string // last authoritative value
	Visual   string // visual indicator at the same moment, if configured
	Elapsed  time.Duration
	Polls    int
	Err      error // last error reading the authoritative signal
}

// Reconciler is a single-use state machine:
// Idle -> Submitted -> Propagating -> Confirmed | Mismatch
type Reconciler struct {
	opts  Options
	log   *zap.Logger
	phase Phase
}

// New returns a Reconciler in the Idle phase
func New(opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = poll.System
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("reconcile")
	if opts.Target != "" {
		log = log.With(zap.String("target", opts.Target))
	}
	return &Reconciler{opts: opts, log: log}
}

// Phase returns the current phase
func (r *Reconciler) Phase() Phase {
	return r.phase
}

func (r *Reconciler) transition(from, to Phase) error {
	if r.phase != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, r.phase)
	}
	r.log.Debug("Phase change.", zap.Stringer("from", from), zap.Stringer("to", to))
	r.phase = to
	return nil
}

// Submit performs the state-changing action and moves Idle -> Submitted.
// A failing action leaves the reconciler Idle.
func (r *Reconciler) Submit(ctx context.Context, act func(ctx context.Context) error) error {
	if r.phase != Idle {
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, r.phase)
	}
	if act != nil {
		if err := act(ctx); err != nil {
			return fmt.Errorf("submit: %w", err)
		}
	}
	return r.transition(Idle, Submitted)
}

// Trigger issues the follow-up event that depends on the new state, if
// any, and moves Submitted -> Propagating
func (r *Reconciler) Trigger(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.phase != Submitted {
		return fmt.Errorf("%w: trigger from %s", ErrInvalidTransition, r.phase)
	}
	if fn != nil {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
	}
	return r.transition(Submitted, Propagating)
}

// Confirm polls the authoritative signal until it equals expected or the
// timeout elapses. Called from Submitted it starts propagation itself.
// A timeout moves to Mismatch and returns a *uierr.Error of that kind; the
// visual indicator never turns a timeout into success.
func (r *Reconciler) Confirm(ctx context.Context, authoritative Signal, expected string) (Report, error) {
	rep := Report{Phase: r.phase, Expected: expected}
	if r.phase == Submitted {
		if err := r.Trigger(ctx, nil); err != nil {
			return rep, err
		}
	}
	if r.phase != Propagating {
		return rep, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, r.phase)
	}

	type reading struct {
		value string
		err   error
	}
	out, err := poll.Until(ctx, r.opts.Clock, r.opts.Interval, r.opts.Timeout, func(ctx context.Context) (reading, bool) {
		v, err := authoritative(ctx)
		if err != nil {
			r.log.Debug("Authoritative read failed.", zap.Error(err))
			return reading{err: err}, false
		}
		return reading{value: v}, v == expected
	})
	rep.Observed, rep.Err = out.Last.value, out.Last.err
	rep.Elapsed, rep.Polls = out.Elapsed, out.Polls
	if err != nil {
		return rep, fmt.Errorf("confirm: %w", err)
	}

	if r.opts.Visual != nil {
		if v, verr := r.opts.Visual(ctx); verr == nil {
			rep.Visual = v
			if v != rep.Observed {
				r.log.Warn("Visual indicator disagrees with authoritative value.", zap.String("visual", v), zap.String("authoritative", rep.Observed))
			}
		}
	}

	if out.OK {
		_ = r.transition(Propagating, Confirmed)
		rep.Phase = Confirmed
		r.log.Info("State confirmed.", zap.String("value", expected), zap.Int("polls", out.Polls), zap.Duration("elapsed", out.Elapsed))
		return rep, nil
	}

	_ = r.transition(Propagating, Mismatch)
	rep.Phase = Mismatch
	detail := fmt.Sprintf("expected %q, authoritative %q after %s (%d polls)", expected, rep.Observed, out.Elapsed, out.Polls)
	if rep.Visual != "" {
		detail += fmt.Sprintf(", visual %q", rep.Visual)
	}
	diagnostic.Report(ctx, r.opts.Capture, r.log, diagnostic.Event{Kind: uierr.KindMismatch, Target: r.target(), Detail: detail})
	r.log.Error("State did not reconcile.", zap.String("expected", expected), zap.String("observed", rep.Observed), zap.Duration("elapsed", out.Elapsed))
	return rep, uierr.New(uierr.KindMismatch, r.target(), rep.Observed, rep.Err)
}

// Reconcile runs the whole machine: submit, trigger, confirm
func (r *Reconciler) Reconcile(ctx context.Context, act, trigger func(ctx context.Context) error, authoritative Signal, expected string) (Report, error) {
	if err := r.Submit(ctx, act); err != nil {
		return Report{Phase: r.phase, Expected: expected}, err
	}
	if err := r.Trigger(ctx, trigger); err != nil {
		return Report{Phase: r.phase, Expected: expected}, err
	}
	return r.Confirm(ctx, authoritative, expected)
}

func (r *Reconciler) target() string {
	if r.opts.Target != "" {
		return r.opts.Target
	}
	return "authoritative signal"
}
