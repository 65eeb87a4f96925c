// Package drivertest is an in-memory implementation of the driver
// interfaces for exercising resolution, scrolling and actions without a
// browser.
//
// Elements are registered against the exact expressions that should match
// them, in document order. Each element lives either in the window or in one
// scroll container; containers are fixed in the viewport and do not move when
// the window scrolls.
package drivertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/v0xg/uiharness/internal/driver"
)

// Page is a fake driver.Page
type Page struct {
	mu      sync.Mutex
	window  *Container
	byExpr  map[string][]*Element
	queries map[string]int

	// QueryErr makes Query fail for the given expression
	QueryErr map[string]error
	// Body is returned by Text
	Body string
}

// NewPage returns an empty page with a window of the given size
func NewPage(width, height float64) *Page {
	return &Page{
		window:   &Container{Name: "window", Frame: driver.Rect{Width: width, Height: height}},
		byExpr:   make(map[string][]*Element),
		queries:  make(map[string]int),
		QueryErr: make(map[string]error),
	}
}

// Add registers el as matching each of exprs, after any elements already
// registered for them
func (p *Page) Add(el *Element, exprs ...string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	el.page = p
	for _, e := range exprs {
		p.byExpr[e] = append(p.byExpr[e], el)
	}
	return el
}

// Queries reports how many times expr was queried
func (p *Page) Queries(expr string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[expr]
}

// WindowContainer exposes the window with its concrete type
func (p *Page) WindowContainer() *Container {
	return p.window
}

func (p *Page) Query(ctx context.Context, expr string) ([]driver.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[expr]++
	if err := p.QueryErr[expr]; err != nil {
		return nil, err
	}
	var out []driver.Element
	for _, el := range p.byExpr[expr] {
		if el.detached {
			continue
		}
		if el.Delay > 0 {
			el.Delay--
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

func (p *Page) Window() driver.Container {
	return p.window
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	f := p.window.Frame
	img := image.NewRGBA(image.Rect(0, 0, int(f.Width), int(f.Height)))
	fill := color.RGBA{240, 240, 240, 255}
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Page) Text(ctx context.Context) (string, error) {
	return p.Body, nil
}

// Container is a fake scroll container
type Container struct {
	Name  string
	Frame driver.Rect // client area in viewport coordinates
	X, Y  float64     // scroll offset

	limited    bool
	maxX, maxY float64

	// Scrolls records every ScrollBy delta along the moving axis
	Scrolls []float64
}

// NewContainer returns an unlimited scroll container occupying frame
func NewContainer(name string, frame driver.Rect) *Container {
	return &Container{Name: name, Frame: frame}
}

// Limit caps the scroll offsets; offsets are always clamped at zero
func (c *Container) Limit(maxX, maxY float64) *Container {
	c.limited = true
	c.maxX, c.maxY = maxX, maxY
	return c
}

func (c *Container) Bounds(ctx context.Context) (driver.Rect, error) {
	return c.Frame, nil
}

func (c *Container) Offset(ctx context.Context) (float64, float64, error) {
	return c.X, c.Y, nil
}

func (c *Container) ScrollBy(ctx context.Context, dx, dy float64) error {
	if dx != 0 {
		c.Scrolls = append(c.Scrolls, dx)
	} else {
		c.Scrolls = append(c.Scrolls, dy)
	}
	c.X = clamp(c.X+dx, c.maxX, c.limited)
	c.Y = clamp(c.Y+dy, c.maxY, c.limited)
	return nil
}

func (c *Container) Describe() string {
	return c.Name
}

func clamp(v, hi float64, limited bool) float64 {
	if v < 0 {
		return 0
	}
	if limited && v > hi {
		return hi
	}
	return v
}

// Element is a fake DOM element
type Element struct {
	Tag, Type, Text string
	// Pos is the element's box in its container's content coordinates
	Pos driver.Rect
	// In is the owning scroll container; nil means the window
	In *Container
	// Delay is the number of matching queries the element stays absent for
	Delay int
	// StaleFor is the number of interactions that fail with driver.ErrStale
	StaleFor int
	// Err, when set, fails every interaction
	Err error

	Clicks   int
	Filled   string
	Selected []string

	page     *Page
	detached bool
}

// Detach removes the element from the document
func (e *Element) Detach() {
	e.detached = true
}

// Detached reports whether Detach was called
func (e *Element) Detached() bool {
	return e.detached
}

func (e *Element) container() *Container {
	if e.In != nil {
		return e.In
	}
	return e.page.window
}

// Box is the element's current viewport box
func (e *Element) Box() driver.Rect {
	c := e.container()
	return driver.Rect{
		X:      c.Frame.X + e.Pos.X - c.X,
		Y:      c.Frame.Y + e.Pos.Y - c.Y,
		Width:  e.Pos.Width,
		Height: e.Pos.Height,
	}
}

func (e *Element) Info(ctx context.Context) (driver.Info, error) {
	if e.detached {
		return driver.Info{}, driver.ErrStale
	}
	return driver.Info{Tag: e.Tag, Type: e.Type, Text: e.Text, Box: e.Box()}, nil
}

func (e *Element) interact() error {
	if e.detached {
		return driver.ErrStale
	}
	if e.StaleFor > 0 {
		e.StaleFor--
		return fmt.Errorf("dispatch event: %w", driver.ErrStale)
	}
	return e.Err
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.interact(); err != nil {
		return err
	}
	e.Clicks++
	return nil
}

func (e *Element) Fill(ctx context.Context, text string) error {
	if err := e.interact(); err != nil {
		return err
	}
	e.Filled = text
	return nil
}

func (e *Element) SelectOption(ctx context.Context, values []string) error {
	if err := e.interact(); err != nil {
		return err
	}
	e.Selected = append([]string(nil), values...)
	return nil
}

func (e *Element) ScrollParent(ctx context.Context) (driver.Container, error) {
	if e.detached {
		return nil, driver.ErrStale
	}
	if e.In == nil {
		return nil, nil
	}
	return e.In, nil
}
