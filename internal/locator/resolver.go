// Package locator resolves an ordered list of candidate expressions to
// exactly one live element.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/poll"
	"github.com/v0xg/uiharness/internal/uierr"
)

const (
	DefaultInterval         = 100 * time.Millisecond
	DefaultCandidateTimeout = 2 * time.Second
)

// Tie-break rules, as reported in logs
const (
	RuleButtonOverInput = "button-over-input"
	RuleDocumentOrder   = "document-order"
)

// Options configures a Resolver
type Options struct {
	Interval         time.Duration // polling interval per candidate
	CandidateTimeout time.Duration // how long each candidate may take to render
	Clock            poll.Clock
	Logger           *zap.Logger
	Capture          diagnostic.Capturer
}

// Resolver turns a Spec into a single element. It only reads the page.
type Resolver struct {
	page    driver.Page
	opts    Options
	log     *zap.Logger
	capture diagnostic.Capturer
}

// Result is the outcome of one resolution. It is not meant to be kept
// across actions: the DOM may re-render at any time.
type Result struct {
	Element   driver.Element
	Info      driver.Info
	Candidate int    // index of the winning candidate expression
	Expr      string // the winning expression
	Attempts  int    // queries issued across all candidates
	TieBreak  string // tie-break rule applied, empty when the match was unique
}

type match struct {
	el   driver.Element
	info driver.Info
}

// NewResolver returns a Resolver over page
func NewResolver(page driver.Page, opts Options) *Resolver {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.CandidateTimeout <= 0 {
		opts.CandidateTimeout = DefaultCandidateTimeout
	}
	if opts.Clock == nil {
		opts.Clock = poll.System
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{page: page, opts: opts, log: log.Named("locator"), capture: opts.Capture}
}

// Resolve tries each candidate in order and returns the first that yields a
// match. Returns a *uierr.Error of kind NotFound when every candidate came up
// empty, or Ambiguous when a strict spec matched several elements.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	log := r.log.With(zap.String("target", spec.String()))

	attempts := 0
	var lastErr error
	for i, expr := range spec.Candidates {
		matches, polls, qerr, err := r.await(ctx, expr)
		attempts += polls
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", spec, err)
		}
		if len(matches) == 0 {
			if qerr != nil {
				lastErr = qerr
				log.Debug("Candidate query failed.", zap.Int("candidate", i), zap.String("expr", expr), zap.Error(qerr))
			} else {
				log.Debug("Candidate matched nothing.", zap.Int("candidate", i), zap.String("expr", expr), zap.Int("polls", polls))
			}
			continue
		}

		res := &Result{Candidate: i, Expr: expr, Attempts: attempts}
		if len(matches) == 1 {
			res.Element, res.Info = matches[0].el, matches[0].info
			log.Debug("Resolved.", zap.Int("candidate", i), zap.String("expr", expr), zap.Stringer("element", res.Info))
			return res, nil
		}
		return r.disambiguate(ctx, log, spec, res, matches)
	}

	detail := fmt.Sprintf("no match for any of %d candidates", len(spec.Candidates))
	diagnostic.Report(ctx, r.capture, log, diagnostic.Event{Kind: uierr.KindNotFound, Target: spec.String(), Detail: detail})
	log.Error("No candidate matched.", zap.Strings("candidates", spec.Candidates), zap.Int("attempts", attempts))
	return nil, uierr.New(uierr.KindNotFound, spec.String(), detail, lastErr)
}

// await polls one expression until it matches at least one attached element
func (r *Resolver) await(ctx context.Context, expr string) ([]match, int, error, error) {
	var qerr error
	out, err := poll.Until(ctx, r.opts.Clock, r.opts.Interval, r.opts.CandidateTimeout, func(ctx context.Context) ([]match, bool) {
		els, err := r.page.Query(ctx, expr)
		if err != nil {
			qerr = err
			return nil, false
		}
		ms := make([]match, 0, len(els))
		for _, el := range els {
			info, err := el.Info(ctx)
			if err != nil {
				// detached between query and read: it simply isn't there
				if !errors.Is(err, driver.ErrStale) {
					qerr = err
				}
				continue
			}
			ms = append(ms, match{el: el, info: info})
		}
		return ms, len(ms) > 0
	})
	return out.Last, out.Polls, qerr, err
}

func (r *Resolver) disambiguate(ctx context.Context, log *zap.Logger, spec Spec, res *Result, matches []match) (*Result, error) {
	pool := matches
	if spec.Prefer != nil {
		var narrowed []match
		for _, m := range matches {
			if spec.Prefer(m.info) {
				narrowed = append(narrowed, m)
			}
		}
		if len(narrowed) == 1 {
			res.Element, res.Info = narrowed[0].el, narrowed[0].info
			log.Debug("Predicate narrowed multi-match.", zap.Int("matches", len(matches)), zap.Stringer("element", res.Info))
			return res, nil
		}
		if len(narrowed) > 1 {
			pool = narrowed
		}
	}

	if spec.Strict {
		detail := describe(pool)
		diagnostic.Report(ctx, r.capture, log, diagnostic.Event{Kind: uierr.KindAmbiguous, Target: spec.String(), Detail: detail})
		log.Error("Ambiguous match on strict locator.", zap.String("expr", res.Expr), zap.Int("matches", len(pool)))
		return nil, uierr.New(uierr.KindAmbiguous, spec.String(), detail, nil)
	}

	pick, rule := tieBreak(pool)
	res.Element, res.Info, res.TieBreak = pick.el, pick.info, rule
	log.Warn("Ambiguous match resolved by tie-break.",
		zap.String("expr", res.Expr),
		zap.Int("matches", len(matches)),
		zap.Int("survivors", len(pool)),
		zap.String("rule", rule),
		zap.Stringer("chosen", pick.info),
	)
	box := pick.info.Box
	diagnostic.Report(ctx, r.capture, log, diagnostic.Event{
		Kind:   uierr.KindAmbiguous,
		Target: spec.String(),
		Detail: fmt.Sprintf("%s chose %s among %s", rule, pick.info, describe(pool)),
		Box:    &box,
	})
	return res, nil
}

// tieBreak picks one element from a multi-match. A semantic button beats an
// input of type button, submit or reset rendering the same action; anything
// else falls back to document order.
func tieBreak(pool []match) (match, string) {
	firstButton := -1
	hasInput := false
	for i, m := range pool {
		switch m.info.Tag {
		case "button":
			if firstButton < 0 {
				firstButton = i
			}
		case "input":
			switch m.info.Type {
			case "button", "submit", "reset":
				hasInput = true
			}
		}
	}
	if firstButton >= 0 && hasInput {
		return pool[firstButton], RuleButtonOverInput
	}
	return pool[0], RuleDocumentOrder
}

func describe(ms []match) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.info.String()
	}
	return strings.Join(parts, ", ")
}
