// Package action performs interactions against resolved elements, revealing
// them first and re-resolving when the DOM re-renders underneath.
package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/poll"
	"github.com/v0xg/uiharness/internal/scroll"
	"github.com/v0xg/uiharness/internal/uierr"
)

// DefaultMaxAttempts bounds re-resolution after stale elements
const DefaultMaxAttempts = 3

// Args carries the per-kind action arguments
type Args struct {
	Text      string   // Fill
	Values    []string // Select
	Axis      scroll.Axis
	Container driver.Container // scroll container hint, optional
}

// Options configures a Retrier
type Options struct {
	MaxAttempts int
	Clock       poll.Clock
	Logger      *zap.Logger
	Capture     diagnostic.Capturer
	// Trail, when set, is reset before each reveal and attached to
	// scroll failures. The navigator's OnStep must feed it.
	Trail *diagnostic.Trail
}

// Retrier composes resolution, reveal and interaction
type Retrier struct {
	resolver *locator.Resolver
	nav      *scroll.Navigator
	opts     Options
	log      *zap.Logger
}

// NewRetrier returns a Retrier
func NewRetrier(resolver *locator.Resolver, nav *scroll.Navigator, opts Options) *Retrier {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = poll.System
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Retrier{resolver: resolver, nav: nav, opts: opts, log: log.Named("action")}
}

// Perform resolves spec, reveals the element and performs kind on it. A
// missing element fails at once; an element that goes stale is re-resolved
// up to MaxAttempts times.
func (r *Retrier) Perform(ctx context.Context, kind Kind, spec locator.Spec, args Args) error {
	if err := checkArgs(kind, args); err != nil {
		return err
	}
	log := r.log.With(zap.String("action", string(kind)), zap.String("target", spec.String()))

	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		res, err := r.resolver.Resolve(ctx, spec)
		if err != nil {
			// nothing to retry: absence is not a transient condition
			return fmt.Errorf("%s %s: %w", kind, spec, err)
		}

		if r.opts.Trail != nil {
			r.opts.Trail.Reset()
		}
		st, visible, err := r.nav.Search(ctx, res.Element, args.Axis, args.Container)
		if err != nil {
			if errors.Is(err, driver.ErrStale) {
				lastErr = err
				log.Warn("Element became stale while revealing; re-resolving.", zap.Int("attempt", attempt))
				continue
			}
			return fmt.Errorf("%s %s: reveal: %w", kind, spec, err)
		}
		if !visible {
			detail := fmt.Sprintf("%s scroll of %s gave up after %d %s attempts at offset %.0f",
				st.Axis, describe(st.Container), st.Attempts, st.Direction, st.Offset)
			box := res.Info.Box
			ev := diagnostic.Event{Kind: uierr.KindScrollExhausted, Target: spec.String(), Detail: detail, Box: &box}
			if r.opts.Trail != nil {
				ev.Frames = r.opts.Trail.Frames()
			}
			diagnostic.Report(ctx, r.opts.Capture, log, ev)
			return uierr.New(uierr.KindScrollExhausted, spec.String(), detail, nil)
		}

		err = r.do(ctx, kind, res.Element, args)
		if err == nil {
			log.Debug("Action performed.", zap.Int("attempt", attempt), zap.Int("candidate", res.Candidate))
			return nil
		}
		if !errors.Is(err, driver.ErrStale) {
			return fmt.Errorf("%s %s: %w", kind, spec, err)
		}
		lastErr = err
		log.Warn("Element became stale during action; re-resolving.", zap.Int("attempt", attempt), zap.Error(err))
	}

	detail := fmt.Sprintf("still stale after %d attempts", r.opts.MaxAttempts)
	diagnostic.Report(ctx, r.opts.Capture, log, diagnostic.Event{Kind: uierr.KindStaleElement, Target: spec.String(), Detail: detail})
	log.Error("Giving up on stale element.", zap.Int("attempts", r.opts.MaxAttempts))
	return uierr.New(uierr.KindStaleElement, spec.String(), detail, lastErr)
}

// Click is Perform(Click)
func (r *Retrier) Click(ctx context.Context, spec locator.Spec) error {
	return r.Perform(ctx, Click, spec, Args{})
}

// Fill is Perform(Fill)
func (r *Retrier) Fill(ctx context.Context, spec locator.Spec, text string) error {
	return r.Perform(ctx, Fill, spec, Args{Text: text})
}

// Select is Perform(Select)
func (r *Retrier) Select(ctx context.Context, spec locator.Spec, values ...string) error {
	return r.Perform(ctx, Select, spec, Args{Values: values})
}

// Run performs steps in order, stopping at the first failure. It returns how
// many steps completed.
func (r *Retrier) Run(ctx context.Context, steps []Step) (int, error) {
	for i, s := range steps {
		kind, err := ParseKind(s.Action)
		if err != nil {
			return i, fmt.Errorf("step %d: %w", i+1, err)
		}
		args, err := s.Args()
		if err != nil {
			return i, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := r.Perform(ctx, kind, s.Spec(), args); err != nil {
			return i, fmt.Errorf("step %d: %w", i+1, err)
		}
		if s.Wait > 0 {
			if err := r.opts.Clock.Sleep(ctx, time.Duration(s.Wait)*time.Millisecond); err != nil {
				return i + 1, err
			}
		}
	}
	return len(steps), nil
}

func (r *Retrier) do(ctx context.Context, kind Kind, el driver.Element, args Args) error {
	switch kind {
	case Click:
		return el.Click(ctx)
	case Fill:
		return el.Fill(ctx, args.Text)
	case Select:
		return el.SelectOption(ctx, args.Values)
	default:
		return fmt.Errorf("unknown action: %s", kind)
	}
}

func checkArgs(kind Kind, args Args) error {
	switch kind {
	case Click, Fill:
		return nil
	case Select:
		if len(args.Values) == 0 {
			return errors.New("select needs at least one value")
		}
		return nil
	default:
		return fmt.Errorf("unknown action: %s", kind)
	}
}

func describe(c driver.Container) string {
	if c == nil {
		return "<none>"
	}
	return c.Describe()
}
