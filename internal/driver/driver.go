// Package driver defines the browser primitives the harness is built on.
//
// The harness never talks to a browser directly. internal/browser implements
// these interfaces over go-rod; drivertest implements them in memory.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStale is returned (possibly wrapped) by element operations when the
// element was detached from the document after it was resolved
var ErrStale = errors.New("driver: element is detached from the document")

// Rect is a box in viewport (CSS pixel) coordinates
type Rect struct {
	X, Y, Width, Height float64
}

func (r Rect) Right() float64  { return r.X + r.Width }
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Center returns the centre point of the box
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Intersect returns the overlap of r and o (zero size when disjoint)
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.Right(), o.Right()), min(r.Bottom(), o.Bottom())
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Within reports whether r is visible inside view. Along each axis the box
// must fit entirely, unless it is larger than view on that axis, in which
// case overlapping it is enough.
func (r Rect) Within(view Rect) bool {
	return spanWithin(r.X, r.Right(), view.X, view.Right()) &&
		spanWithin(r.Y, r.Bottom(), view.Y, view.Bottom())
}

func spanWithin(a0, a1, v0, v1 float64) bool {
	if a1-a0 > v1-v0 {
		return a0 < v1 && a1 > v0
	}
	return a0 >= v0 && a1 <= v1
}

// Info is a read-only snapshot of an element
type Info struct {
	Tag  string // lowercase tag name
	Type string // type attribute, lowercase, empty when absent
	Text string // trimmed text content, or value for input-typed controls
	Box  Rect
}

func (i Info) String() string {
	s := i.Tag
	if i.Type != "" {
		s += fmt.Sprintf("[type=%s]", i.Type)
	}
	if i.Text != "" {
		s += fmt.Sprintf(" %q", i.Text)
	}
	return s
}

// Element is a live handle to a DOM element
type Element interface {
	Info(ctx context.Context) (Info, error)
	Click(ctx context.Context) error
	Fill(ctx context.Context, text string) error
	SelectOption(ctx context.Context, values []string) error
	// ScrollParent returns the nearest ancestor with overflow scroll
	// semantics, or nil when the document itself scrolls the element
	ScrollParent(ctx context.Context) (Container, error)
}

// Container is something that scrolls: an overflow element or the window
type Container interface {
	// Bounds is the visible client area in viewport coordinates
	Bounds(ctx context.Context) (Rect, error)
	// Offset is the current scroll position
	Offset(ctx context.Context) (x, y float64, err error)
	ScrollBy(ctx context.Context, dx, dy float64) error
	Describe() string
}

// Page is one browser tab
type Page interface {
	// Query returns all elements matching expr, in document order
	Query(ctx context.Context, expr string) ([]Element, error)
	Window() Container
	Screenshot(ctx context.Context) ([]byte, error)
	// Text returns the visible text of the document, for diagnostics
	Text(ctx context.Context) (string, error)
}

// ExprKind is the query language of a candidate expression
type ExprKind int

const (
	CSS ExprKind = iota
	XPath
)

// Expr is a parsed candidate expression
type Expr struct {
	Kind     ExprKind
	Selector string
	HasText  string // non-empty when the expression filters by text content
}

// ParseExpr parses a candidate expression. Supported forms:
//
//	button.primary
//	button:has-text('Sign in')
//	xpath://table//th[last()]
func ParseExpr(expr string) (Expr, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return Expr{}, fmt.Errorf("empty expression")
	}
	if rest, ok := cutPrefixFold(s, "xpath:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return Expr{}, fmt.Errorf("empty xpath in %q", expr)
		}
		return Expr{Kind: XPath, Selector: rest}, nil
	}

	const marker = ":has-text("
	i := strings.LastIndex(s, marker)
	if i < 0 {
		return Expr{Kind: CSS, Selector: s}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return Expr{}, fmt.Errorf("unterminated :has-text in %q", expr)
	}
	arg := strings.TrimSpace(s[i+len(marker) : len(s)-1])
	if len(arg) >= 2 && (arg[0] == '\'' || arg[0] == '"') && arg[len(arg)-1] == arg[0] {
		arg = arg[1 : len(arg)-1]
	}
	if arg == "" {
		return Expr{}, fmt.Errorf("empty :has-text argument in %q", expr)
	}
	sel := strings.TrimSpace(s[:i])
	if sel == "" {
		sel = "*"
	}
	return Expr{Kind: CSS, Selector: sel, HasText: arg}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
