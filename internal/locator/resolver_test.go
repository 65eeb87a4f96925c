package locator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/driver/drivertest"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/poll/polltest"
	"github.com/v0xg/uiharness/internal/uierr"
)

const (
	signInButton = "button:has-text('Sign in')"
	signInInput  = "input[type=button][value='Sign in']"
)

type fixture struct {
	page    *drivertest.Page
	clock   *polltest.Clock
	logs    *observer.ObservedLogs
	capture *diagnostic.Memory
	r       *locator.Resolver
}

func newFixture() *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		page:    drivertest.NewPage(1280, 720),
		clock:   polltest.NewClock(),
		logs:    logs,
		capture: &diagnostic.Memory{},
	}
	f.r = locator.NewResolver(f.page, locator.Options{
		Interval:         100 * time.Millisecond,
		CandidateTimeout: 2 * time.Second,
		Clock:            f.clock,
		Logger:           zap.New(core),
		Capture:          f.capture,
	})
	return f
}

func (f *fixture) warnings() int {
	return f.logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

func button(text string, y float64) *drivertest.Element {
	return &drivertest.Element{Tag: "button", Text: text, Pos: driver.Rect{X: 100, Y: y, Width: 80, Height: 30}}
}

func inputButton(text string, y float64) *drivertest.Element {
	return &drivertest.Element{Tag: "input", Type: "button", Text: text, Pos: driver.Rect{X: 100, Y: y, Width: 80, Height: 30}}
}

func TestResolveUniqueFirstCandidate(t *testing.T) {
	f := newFixture()
	btn := f.page.Add(button("Sign in", 200), signInButton)
	f.page.Add(inputButton("Sign in", 260), signInInput)

	res, err := f.r.Resolve(context.Background(), locator.New(signInButton, signInInput))
	require.NoError(t, err)
	assert.Same(t, btn, res.Element)
	assert.Equal(t, 0, res.Candidate)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.TieBreak)
	assert.Zero(t, f.warnings(), "unique match must not log ambiguity")
	assert.Empty(t, f.capture.Events)
	assert.Zero(t, f.page.Queries(signInInput), "later candidates are not consulted")
}

func TestResolveFallsBackInOrder(t *testing.T) {
	f := newFixture()
	in := f.page.Add(inputButton("Sign in", 260), signInInput)

	res, err := f.r.Resolve(context.Background(), locator.New(signInButton, signInInput))
	require.NoError(t, err)
	assert.Same(t, in, res.Element)
	assert.Equal(t, 1, res.Candidate)
	assert.Equal(t, signInInput, res.Expr)
	// 2s at 100ms: t=0..2s inclusive for the empty candidate, then one hit
	assert.Equal(t, 21, f.page.Queries(signInButton))
	assert.Equal(t, 22, res.Attempts)
}

func TestResolveToleratesLateRendering(t *testing.T) {
	f := newFixture()
	btn := button("Save", 100)
	btn.Delay = 5
	f.page.Add(btn, "#save")

	res, err := f.r.Resolve(context.Background(), locator.New("#save", "button.save"))
	require.NoError(t, err)
	assert.Same(t, btn, res.Element)
	assert.Equal(t, 0, res.Candidate)
	assert.Equal(t, 6, res.Attempts)
	assert.Zero(t, f.page.Queries("button.save"))
}

func TestResolveTieBreakDocumentOrderIsLogged(t *testing.T) {
	f := newFixture()
	first := f.page.Add(button("Sign in", 200), signInButton)
	f.page.Add(button("Sign in", 400), signInButton)

	res, err := f.r.Resolve(context.Background(), locator.New(signInButton, signInInput))
	require.NoError(t, err)
	assert.Same(t, first, res.Element)
	assert.Equal(t, locator.RuleDocumentOrder, res.TieBreak)
	assert.Equal(t, 1, f.warnings())
	assert.Equal(t, []uierr.Kind{uierr.KindAmbiguous}, f.capture.Kinds())
}

func TestResolveTieBreakPrefersButtonOverInput(t *testing.T) {
	f := newFixture()
	const expr = "[data-action=login]"
	f.page.Add(inputButton("Sign in", 200), expr)
	btn := f.page.Add(button("Sign in", 300), expr)

	res, err := f.r.Resolve(context.Background(), locator.New(expr))
	require.NoError(t, err)
	assert.Same(t, btn, res.Element, "button wins even when the input comes first in the DOM")
	assert.Equal(t, locator.RuleButtonOverInput, res.TieBreak)

	warn := f.logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warn, 1)
	assert.Equal(t, locator.RuleButtonOverInput, warn[0].ContextMap()["rule"])
}

func TestResolvePredicate(t *testing.T) {
	const expr = ".row .edit"
	build := func() (*fixture, []*drivertest.Element) {
		f := newFixture()
		els := []*drivertest.Element{
			f.page.Add(button("Edit", 100), expr),
			f.page.Add(button("Edit", 300), expr),
			f.page.Add(button("Edit", 500), expr),
		}
		return f, els
	}

	t.Run("narrows to one", func(t *testing.T) {
		f, els := build()
		res, err := f.r.Resolve(context.Background(), locator.New(expr).Preferring(locator.WithinY(250, 350)))
		require.NoError(t, err)
		assert.Same(t, els[1], res.Element)
		assert.Empty(t, res.TieBreak)
		assert.Zero(t, f.warnings())
	})

	t.Run("narrows to several", func(t *testing.T) {
		f, els := build()
		res, err := f.r.Resolve(context.Background(), locator.New(expr).Preferring(locator.WithinY(250, 600)))
		require.NoError(t, err)
		assert.Same(t, els[1], res.Element, "tie-break applies to the survivors")
		assert.Equal(t, locator.RuleDocumentOrder, res.TieBreak)
		assert.Equal(t, 1, f.warnings())
	})

	t.Run("narrows to none", func(t *testing.T) {
		f, els := build()
		res, err := f.r.Resolve(context.Background(), locator.New(expr).Preferring(locator.WithinY(900, 1000)))
		require.NoError(t, err)
		assert.Same(t, els[0], res.Element, "tie-break falls back to every match")
		assert.Equal(t, 1, f.warnings())
	})
}

func TestResolvePredicateOnlyForMultiMatch(t *testing.T) {
	f := newFixture()
	only := f.page.Add(button("Edit", 100), ".edit")

	res, err := f.r.Resolve(context.Background(), locator.New(".edit").Preferring(locator.PreferTag("a")))
	require.NoError(t, err)
	assert.Same(t, only, res.Element)
}

func TestResolveStrictAmbiguity(t *testing.T) {
	f := newFixture()
	f.page.Add(button("Delete", 100), ".delete")
	f.page.Add(button("Delete", 200), ".delete")

	_, err := f.r.Resolve(context.Background(), locator.New(".delete").Named("delete task").Strictly())
	require.Error(t, err)
	assert.ErrorIs(t, err, uierr.Ambiguous)
	assert.Contains(t, err.Error(), "delete task")
	assert.Equal(t, []uierr.Kind{uierr.KindAmbiguous}, f.capture.Kinds())
}

func TestResolveNotFound(t *testing.T) {
	f := newFixture()
	queryErr := errors.New("invalid selector")
	f.page.QueryErr["button["] = queryErr

	_, err := f.r.Resolve(context.Background(), locator.New("#missing", "button[").Named("submit"))
	require.Error(t, err)
	assert.ErrorIs(t, err, uierr.NotFound)
	assert.ErrorIs(t, err, queryErr)
	assert.Equal(t, []uierr.Kind{uierr.KindNotFound}, f.capture.Kinds())
	assert.Equal(t, 21, f.page.Queries("#missing"))
	assert.Equal(t, 21, f.page.Queries("button["))
}

func TestResolveSkipsDetachedMatches(t *testing.T) {
	f := newFixture()
	gone := f.page.Add(button("Save", 100), ".save")
	live := f.page.Add(button("Save", 200), ".save")
	gone.Detach()

	res, err := f.r.Resolve(context.Background(), locator.New(".save"))
	require.NoError(t, err)
	assert.Same(t, live, res.Element)
	assert.Empty(t, res.TieBreak)
}

func TestResolveRejectsEmptySpec(t *testing.T) {
	f := newFixture()
	_, err := f.r.Resolve(context.Background(), locator.Spec{})
	assert.Error(t, err)
	_, err = f.r.Resolve(context.Background(), locator.New("#ok", "  "))
	assert.Error(t, err)
}

func TestResolveCancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.r.Resolve(ctx, locator.New("#missing"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 5).Draw(t, "candidates")
		counts := make([]int, n)
		for i := range counts {
			counts[i] = rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("matches_%d", i))
		}
		// guarantee at least one candidate matches exactly one element
		unique := rapid.IntRange(0, n-1).Draw(t, "unique")
		counts[unique] = 1

		f := newFixture()
		exprs := make([]string, n)
		for i, c := range counts {
			exprs[i] = fmt.Sprintf("#c%d", i)
			for j := 0; j < c; j++ {
				f.page.Add(button(fmt.Sprintf("c%d-%d", i, j), float64(40*j)), exprs[i])
			}
		}

		want := -1
		for i, c := range counts {
			if c > 0 {
				want = i
				break
			}
		}

		first, err := f.r.Resolve(context.Background(), locator.New(exprs...))
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		second, err := f.r.Resolve(context.Background(), locator.New(exprs...))
		if err != nil {
			t.Fatalf("resolve again: %v", err)
		}
		if first.Candidate != want || second.Candidate != want {
			t.Fatalf("winning candidate %d/%d, want %d", first.Candidate, second.Candidate, want)
		}
		if first.Element != second.Element {
			t.Fatalf("resolution changed between identical calls")
		}
	})
}

func TestResolveTieBreakIgnoresTextInputs(t *testing.T) {
	f := newFixture()
	const expr = "[data-row=7] *"
	field := f.page.Add(&drivertest.Element{Tag: "input", Type: "text", Pos: driver.Rect{X: 10, Y: 200, Width: 120, Height: 24}}, expr)
	f.page.Add(button("Delete", 200), expr)

	res, err := f.r.Resolve(context.Background(), locator.New(expr))
	require.NoError(t, err)
	assert.Same(t, field, res.Element, "a text field is not a button rendering")
	assert.Equal(t, locator.RuleDocumentOrder, res.TieBreak)
}
