package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/uiharness/internal/crawler"
	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/driver/drivertest"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/scroll"
	"github.com/v0xg/uiharness/internal/uierr"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))

	_, err = newLogger("loud")
	assert.Error(t, err)
}

func TestReadSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"action":"click","candidates":["#save"]}]`), 0o644))

	steps, err := readSteps(path)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"#save"}, steps[0].Candidates)

	_, err = readSteps(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	for _, cmd := range []interface{ Name() string }{probeCmd(), runCmd(), suggestCmd(), reconcileCmd()} {
		assert.NotEmpty(t, cmd.Name())
	}
	assert.NotNil(t, reconcileCmd().Flags().Lookup("expect"))
	assert.NotNil(t, probeCmd().Flags().Lookup("prefer-tag"))
}

func TestRevealFailureCaptures(t *testing.T) {
	capture := &diagnostic.Memory{}
	grid := drivertest.NewContainer("div#grid", driver.Rect{Width: 300, Height: 100})
	st := scroll.State{Container: grid, Offset: -40, Axis: scroll.Vertical, Direction: scroll.Reverse, Attempts: 2}
	box := driver.Rect{X: 10, Y: 5000, Width: 40, Height: 20}

	err := revealFailure(context.Background(), capture, locator.New("td.total").Named("total"), st, box)
	require.Error(t, err)
	assert.ErrorIs(t, err, uierr.ScrollExhausted)
	require.Len(t, capture.Events, 1)
	ev := capture.Events[0]
	assert.Equal(t, uierr.KindScrollExhausted, ev.Kind)
	assert.Equal(t, "total", ev.Target)
	assert.Contains(t, ev.Detail, "div#grid")
	require.NotNil(t, ev.Box)
	assert.Equal(t, box, *ev.Box)
}

func TestPageHints(t *testing.T) {
	m := &crawler.PageMap{Elements: []crawler.Element{
		{Selector: "#invite", Tag: "button", Text: "Invite member"},
		{Selector: "#email", Tag: "input", Type: "email", Placeholder: "Email address"},
		{Selector: "a.docs", Tag: "a", Text: "Docs"},
	}}
	hints := pageHints(m, "invite member")
	require.Len(t, hints, 1)
	assert.Equal(t, "#invite", hints[0].Selector)

	hints = pageHints(m, "the email field to invite")
	require.Len(t, hints, 2)
	assert.Equal(t, "#email", hints[0].Selector)
	assert.Equal(t, "#invite", hints[1].Selector)

	assert.Empty(t, pageHints(m, "checkout"))
}
