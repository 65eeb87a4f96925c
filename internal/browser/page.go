package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/driver"
)

const infoJS = `() => {
	const r = this.getBoundingClientRect();
	const tag = this.tagName.toLowerCase();
	const typed = tag === 'input' || tag === 'textarea' || tag === 'select';
	const text = typed ? (this.value || '') : (this.innerText || this.textContent || '');
	return {
		tag: tag,
		type: (this.getAttribute('type') || '').toLowerCase(),
		text: text.trim().slice(0, 200),
		x: r.x, y: r.y, w: r.width, h: r.height
	};
}`

const textJS = `() => (this.innerText || this.value || this.textContent || '')`

// scrollParentJS returns the nearest ancestor that scrolls its content, or
// null when the document does
const scrollParentJS = `() => {
	const scrolls = v => v === 'auto' || v === 'scroll' || v === 'overlay';
	for (let el = this.parentElement; el; el = el.parentElement) {
		if (el === document.body || el === document.documentElement) return null;
		const s = getComputedStyle(el);
		if ((scrolls(s.overflowY) && el.scrollHeight > el.clientHeight) ||
			(scrolls(s.overflowX) && el.scrollWidth > el.clientWidth)) return el;
	}
	return null;
}`

const clientJS = `() => {
	const r = this.getBoundingClientRect();
	return {x: r.x + this.clientLeft, y: r.y + this.clientTop, w: this.clientWidth, h: this.clientHeight};
}`

const describeJS = `() => {
	let s = this.tagName.toLowerCase();
	if (this.id) s += '#' + this.id;
	else if (typeof this.className === 'string' && this.className.trim()) s += '.' + this.className.trim().split(/\s+/).slice(0, 2).join('.');
	return s;
}`

// Page is a driver.Page over a rod page
type Page struct {
	page *rod.Page
	log  *zap.Logger
}

// Rod exposes the underlying page
func (p *Page) Rod() *rod.Page {
	return p.page
}

func (p *Page) Query(ctx context.Context, expr string) ([]driver.Element, error) {
	e, err := driver.ParseExpr(expr)
	if err != nil {
		return nil, err
	}

	pg := p.page.Context(ctx)
	var els rod.Elements
	if e.Kind == driver.XPath {
		els, err = pg.ElementsX(e.Selector)
	} else {
		els, err = pg.Elements(e.Selector)
	}
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expr, classify(err))
	}

	out := make([]driver.Element, 0, len(els))
	for _, el := range els {
		if e.HasText != "" {
			res, err := el.Context(ctx).Eval(textJS)
			if err != nil {
				// detached between the query and the text read: not a match
				continue
			}
			if !strings.Contains(strings.ToLower(res.Value.Str()), strings.ToLower(e.HasText)) {
				continue
			}
		}
		out = append(out, &Element{el: el, page: p})
	}
	return out, nil
}

func (p *Page) Window() driver.Container {
	return &window{page: p.page}
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (p *Page) Text(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => document.body ? document.body.innerText : ''`)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// TextSignal reads the text of the first element matching expr, for use as
// a visual indicator
func (p *Page) TextSignal(expr string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		els, err := p.Query(ctx, expr)
		if err != nil {
			return "", err
		}
		if len(els) == 0 {
			return "", fmt.Errorf("no element matches %q", expr)
		}
		info, err := els[0].Info(ctx)
		if err != nil {
			return "", err
		}
		return info.Text, nil
	}
}

// Element is a driver.Element over a rod element
type Element struct {
	el   *rod.Element
	page *Page
}

func (e *Element) Info(ctx context.Context) (driver.Info, error) {
	res, err := e.el.Context(ctx).Eval(infoJS)
	if err != nil {
		return driver.Info{}, classify(err)
	}
	return parseInfo(res.Value), nil
}

func (e *Element) Click(ctx context.Context) error {
	return classify(e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *Element) Fill(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return classify(err)
	}
	return classify(el.Input(text))
}

func (e *Element) SelectOption(ctx context.Context, values []string) error {
	return classify(e.el.Context(ctx).Select(values, true, rod.SelectorTypeText))
}

func (e *Element) ScrollParent(ctx context.Context) (driver.Container, error) {
	parent, err := e.el.Context(ctx).ElementByJS(rod.Eval(scrollParentJS))
	if err != nil {
		var nf *rod.ElementNotFoundError
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, classify(err)
	}
	name := "element"
	if res, err := parent.Context(ctx).Eval(describeJS); err == nil {
		name = res.Value.Str()
	}
	return &overflow{el: parent, name: name}, nil
}

// window scrolls the document
type window struct {
	page *rod.Page
}

func (w *window) Bounds(ctx context.Context) (driver.Rect, error) {
	res, err := w.page.Context(ctx).Eval(`() => ({x: 0, y: 0, w: document.documentElement.clientWidth, h: document.documentElement.clientHeight})`)
	if err != nil {
		return driver.Rect{}, err
	}
	return parseRect(res.Value), nil
}

func (w *window) Offset(ctx context.Context) (float64, float64, error) {
	res, err := w.page.Context(ctx).Eval(`() => ({x: window.scrollX, y: window.scrollY})`)
	if err != nil {
		return 0, 0, err
	}
	return res.Value.Get("x").Num(), res.Value.Get("y").Num(), nil
}

func (w *window) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := w.page.Context(ctx).Eval(`(x, y) => window.scrollBy(x, y)`, dx, dy)
	return err
}

func (w *window) Describe() string { return "window" }

// overflow scrolls an element with overflow content
type overflow struct {
	el   *rod.Element
	name string
}

func (o *overflow) Bounds(ctx context.Context) (driver.Rect, error) {
	res, err := o.el.Context(ctx).Eval(clientJS)
	if err != nil {
		return driver.Rect{}, classify(err)
	}
	return parseRect(res.Value), nil
}

func (o *overflow) Offset(ctx context.Context) (float64, float64, error) {
	res, err := o.el.Context(ctx).Eval(`() => ({x: this.scrollLeft, y: this.scrollTop})`)
	if err != nil {
		return 0, 0, classify(err)
	}
	return res.Value.Get("x").Num(), res.Value.Get("y").Num(), nil
}

func (o *overflow) ScrollBy(ctx context.Context, dx, dy float64) error {
	_, err := o.el.Context(ctx).Eval(`(x, y) => this.scrollBy(x, y)`, dx, dy)
	return classify(err)
}

func (o *overflow) Describe() string { return o.name }

func parseRect(v gson.JSON) driver.Rect {
	return driver.Rect{X: v.Get("x").Num(), Y: v.Get("y").Num(), Width: v.Get("w").Num(), Height: v.Get("h").Num()}
}

func parseInfo(v gson.JSON) driver.Info {
	return driver.Info{
		Tag:  v.Get("tag").Str(),
		Type: v.Get("type").Str(),
		Text: v.Get("text").Str(),
		Box:  parseRect(v),
	}
}

// CDP reports a re-rendered node in several ways depending on where the
// call lands
var staleMessages = []string{
	"node is detached",
	"could not find node",
	"cannot find context",
	"object reference chain is too long",
	"no node with given id",
	"could not find object with given id",
}

// classify wraps errors caused by the element leaving the document with
// driver.ErrStale
func classify(err error) error {
	if err == nil {
		return nil
	}
	var nf *rod.ObjectNotFoundError
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", driver.ErrStale, err)
	}
	var ce *cdp.Error
	if errors.As(err, &ce) {
		msg := strings.ToLower(ce.Message)
		for _, s := range staleMessages {
			if strings.Contains(msg, s) {
				return fmt.Errorf("%w: %v", driver.ErrStale, err)
			}
		}
	}
	return err
}
