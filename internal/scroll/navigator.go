// Package scroll brings resolved but off-screen elements into view.
package scroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/poll"
)

const (
	DefaultStep           = 300.0
	DefaultMaxAttempts    = 20
	DefaultSettleInterval = 50 * time.Millisecond
	DefaultSettleTimeout  = 250 * time.Millisecond
)

// Axis is the scroll axis
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// ParseAxis accepts "vertical"/"v"/"y" and "horizontal"/"h"/"x"
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vertical", "v", "y":
		return Vertical, nil
	case "horizontal", "h", "x":
		return Horizontal, nil
	}
	return Vertical, fmt.Errorf("unknown scroll axis: %s (supported: vertical, horizontal)", s)
}

// Direction is +1 for forward (down/right) and -1 for reverse
type Direction int

const (
	Forward Direction = 1
	Reverse Direction = -1
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// State tracks one reveal search
type State struct {
	Container driver.Container
	Offset    float64 // cumulative offset from where the search started
	Axis      Axis
	Direction Direction
	Attempts  int // increments made in the current direction
}

// Options configures a Navigator
type Options struct {
	Step           float64 // pixels per increment
	MaxAttempts    int     // increments per direction
	SettleInterval time.Duration
	SettleTimeout  time.Duration // how long to wait for the target to show after each increment
	Clock          poll.Clock
	Logger         *zap.Logger
	// OnStep is called after every increment
	OnStep func(ctx context.Context, st State)
}

// Navigator scrolls containers until a target becomes visible
type Navigator struct {
	page driver.Page
	opts Options
	log  *zap.Logger
}

// NewNavigator returns a Navigator for page
func NewNavigator(page driver.Page, opts Options) *Navigator {
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SettleInterval <= 0 {
		opts.SettleInterval = DefaultSettleInterval
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	if opts.Clock == nil {
		opts.Clock = poll.System
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Navigator{page: page, opts: opts, log: log.Named("scroll")}
}

// Reveal scrolls until target is visible and reports whether it is. hint,
// when non-nil, is the container to scroll; otherwise the target's nearest
// scrollable ancestor is used, then the window. An element that is already
// visible costs no scrolling.
func (n *Navigator) Reveal(ctx context.Context, target driver.Element, axis Axis, hint driver.Container) (bool, error) {
	_, ok, err := n.Search(ctx, target, axis, hint)
	return ok, err
}

// Search is Reveal that also returns the final search state
func (n *Navigator) Search(ctx context.Context, target driver.Element, axis Axis, hint driver.Container) (State, bool, error) {
	st := State{Axis: axis, Direction: Forward}

	c, err := n.container(ctx, target, hint)
	if err != nil {
		return st, false, err
	}
	st.Container = c
	log := n.log.With(zap.String("container", c.Describe()), zap.Stringer("axis", axis))

	visible, err := n.visible(ctx, target, c)
	if err != nil || visible {
		return st, visible, err
	}

	start, err := offset(ctx, c, axis)
	if err != nil {
		return st, false, err
	}

	for _, dir := range []Direction{Forward, Reverse} {
		st.Direction, st.Attempts = dir, 0
		if dir == Reverse {
			cur, err := offset(ctx, c, axis)
			if err != nil {
				return st, false, err
			}
			if err := scrollBy(ctx, c, axis, start-cur); err != nil {
				return st, false, err
			}
			st.Offset = 0
			log.Info("Forward scroll exhausted, reversing.", zap.Int("budget", n.opts.MaxAttempts))
		}

		for st.Attempts < n.opts.MaxAttempts {
			before, err := offset(ctx, c, axis)
			if err != nil {
				return st, false, err
			}
			if err := scrollBy(ctx, c, axis, float64(dir)*n.opts.Step); err != nil {
				return st, false, err
			}
			st.Attempts++
			after, err := offset(ctx, c, axis)
			if err != nil {
				return st, false, err
			}
			st.Offset = after - start
			if n.opts.OnStep != nil {
				n.opts.OnStep(ctx, st)
			}

			ok, err := n.settle(ctx, target, c)
			if err != nil {
				return st, false, err
			}
			if ok {
				log.Debug("Target revealed.", zap.Stringer("direction", dir), zap.Int("attempts", st.Attempts), zap.Float64("offset", st.Offset))
				return st, true, nil
			}
			if after == before {
				log.Debug("Container edge reached.", zap.Stringer("direction", dir), zap.Int("attempts", st.Attempts))
				break
			}
		}
	}

	log.Warn("Target still hidden after scrolling both directions.", zap.Int("budget", n.opts.MaxAttempts), zap.Float64("offset", st.Offset))
	return st, false, nil
}

// container picks the hint, then the nearest scrollable ancestor, then the window
func (n *Navigator) container(ctx context.Context, target driver.Element, hint driver.Container) (driver.Container, error) {
	if hint != nil {
		return hint, nil
	}
	parent, err := target.ScrollParent(ctx)
	if err != nil {
		return nil, fmt.Errorf("find scroll container: %w", err)
	}
	if parent != nil {
		return parent, nil
	}
	return n.page.Window(), nil
}

func (n *Navigator) visible(ctx context.Context, target driver.Element, c driver.Container) (bool, error) {
	info, err := target.Info(ctx)
	if err != nil {
		return false, fmt.Errorf("read target box: %w", err)
	}
	view, err := c.Bounds(ctx)
	if err != nil {
		return false, fmt.Errorf("read container bounds: %w", err)
	}
	if w := n.page.Window(); w != c {
		win, err := w.Bounds(ctx)
		if err != nil {
			return false, fmt.Errorf("read window bounds: %w", err)
		}
		view = view.Intersect(win)
	}
	return info.Box.Within(view), nil
}

type check struct {
	visible bool
	err     error
}

// settle waits briefly for the target to show after an increment
func (n *Navigator) settle(ctx context.Context, target driver.Element, c driver.Container) (bool, error) {
	out, err := poll.Until(ctx, n.opts.Clock, n.opts.SettleInterval, n.opts.SettleTimeout, func(ctx context.Context) (check, bool) {
		v, err := n.visible(ctx, target, c)
		return check{v, err}, v || err != nil
	})
	if err != nil {
		return false, err
	}
	return out.Last.visible, out.Last.err
}

func offset(ctx context.Context, c driver.Container, axis Axis) (float64, error) {
	x, y, err := c.Offset(ctx)
	if err != nil {
		return 0, fmt.Errorf("read scroll offset: %w", err)
	}
	if axis == Horizontal {
		return x, nil
	}
	return y, nil
}

func scrollBy(ctx context.Context, c driver.Container, axis Axis, delta float64) error {
	if delta == 0 {
		return nil
	}
	var err error
	if axis == Horizontal {
		err = c.ScrollBy(ctx, delta, 0)
	} else {
		err = c.ScrollBy(ctx, 0, delta)
	}
	if err != nil {
		return fmt.Errorf("scroll %s: %w", c.Describe(), err)
	}
	return nil
}
