package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/v0xg/uiharness/internal/driver"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	detached := fmt.Errorf("click: %w", &cdp.Error{Code: -32000, Message: "Node is detached from document"})
	assert.ErrorIs(t, classify(detached), driver.ErrStale)

	assert.ErrorIs(t, classify(&rod.ObjectNotFoundError{}), driver.ErrStale)

	covered := &cdp.Error{Code: -32000, Message: "Element is not clickable"}
	assert.NotErrorIs(t, classify(covered), driver.ErrStale)

	other := errors.New("timeout")
	assert.Equal(t, other, classify(other))
}

func TestParseInfo(t *testing.T) {
	info := parseInfo(gson.New(map[string]any{
		"tag": "input", "type": "submit", "text": "Save",
		"x": 10.5, "y": 20.0, "w": 80.0, "h": 24.0,
	}))
	assert.Equal(t, driver.Info{Tag: "input", Type: "submit", Text: "Save", Box: driver.Rect{X: 10.5, Y: 20, Width: 80, Height: 24}}, info)
}

const fixture = `<!doctype html>
<html><body style="margin:0">
<button id="save">Save</button>
<input type="button" value="Save">
<div id="grid" style="width:300px;height:100px;overflow:auto">
  <div style="height:2000px;position:relative">
    <select id="role" style="position:absolute;top:1500px"><option>viewer</option><option>admin</option></select>
  </div>
</div>
</body></html>`

// TestRodPage drives a real browser. Set UIHARNESS_BROWSER_TESTS=1 to run it.
func TestRodPage(t *testing.T) {
	if os.Getenv("UIHARNESS_BROWSER_TESTS") == "" {
		t.Skip("UIHARNESS_BROWSER_TESTS not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fixture)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s, err := Launch(ctx, Options{Width: 800, Height: 600, Headless: true})
	require.NoError(t, err)
	defer s.Close()

	page, err := s.Open(ctx, srv.URL)
	require.NoError(t, err)

	els, err := page.Query(ctx, ":has-text('Save')")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(els), 2)

	btn, err := page.Query(ctx, "#save")
	require.NoError(t, err)
	require.Len(t, btn, 1)
	info, err := btn[0].Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "button", info.Tag)
	assert.Equal(t, "Save", info.Text)
	parent, err := btn[0].ScrollParent(ctx)
	require.NoError(t, err)
	assert.Nil(t, parent)

	sel, err := page.Query(ctx, "xpath://select[@id='role']")
	require.NoError(t, err)
	require.Len(t, sel, 1)
	grid, err := sel[0].ScrollParent(ctx)
	require.NoError(t, err)
	require.NotNil(t, grid)
	assert.Equal(t, "div#grid", grid.Describe())

	require.NoError(t, grid.ScrollBy(ctx, 0, 300))
	_, y, err := grid.Offset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, y)

	shot, err := page.Screenshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, shot)
}
