// Package crawler inventories the interactive elements of a loaded page.
package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"github.com/v0xg/uiharness/internal/poll"
)

// Options configures a snapshot
type Options struct {
	// SettleTimeout bounds the wait for SPA content to render
	SettleTimeout time.Duration
	Clock         poll.Clock
}

// Snapshot extracts a PageMap from the current state of page
func Snapshot(ctx context.Context, page *rod.Page, opts Options) (*PageMap, error) {
	if opts.SettleTimeout == 0 {
		opts.SettleTimeout = 5 * time.Second
	}
	pg := page.Context(ctx)

	isSPA, err := evalBool(pg, detectSPAJS)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect page: %w", err)
	}
	// SPAs need time to download bundles, hydrate and fetch client-side data
	if isSPA {
		if _, err := poll.Condition(ctx, opts.Clock, 200*time.Millisecond, opts.SettleTimeout, func(ctx context.Context) bool {
			res, err := pg.Eval(countInteractiveJS)
			return err == nil && res.Value.Int() > 0
		}); err != nil {
			return nil, err
		}
	}

	res, err := pg.Eval(`() => ({url: window.location.href, title: document.title})`)
	if err != nil {
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}
	els, err := pg.Eval(extractElementsJS)
	if err != nil {
		return nil, fmt.Errorf("failed to extract elements: %w", err)
	}

	return &PageMap{
		URL:      res.Value.Get("url").Str(),
		Title:    res.Value.Get("title").Str(),
		Elements: decodeElements(els.Value),
		IsSPA:    isSPA,
	}, nil
}

func evalBool(page *rod.Page, js string) (bool, error) {
	res, err := page.Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func decodeElements(v gson.JSON) []Element {
	var elements []Element
	for _, e := range v.Arr() {
		elements = append(elements, Element{
			Selector:    str(e, "selector"),
			Tag:         str(e, "tag"),
			Type:        str(e, "type"),
			Text:        str(e, "text"),
			Placeholder: str(e, "placeholder"),
			Name:        str(e, "name"),
			ID:          str(e, "id"),
			Scrolled:    e.Get("scrolled").Bool(),
		})
	}
	return elements
}

// str reads a string field, treating an absent or null key as empty since
// gson renders those as "<nil>"
func str(v gson.JSON, key string) string {
	f := v.Get(key)
	if f.Nil() {
		return ""
	}
	return f.Str()
}

const detectSPAJS = `() => {
	if (window.__REACT_DEVTOOLS_GLOBAL_HOOK__ || document.querySelector('[data-reactroot]') || document.querySelector('#__next')) return true;
	if (window.__VUE__ || document.querySelector('[data-v-app]')) return true;
	if (window.ng || document.querySelector('[ng-version]') || document.querySelector('app-root')) return true;
	if (document.querySelector('[class*="svelte-"]')) return true;
	return false;
}`

const countInteractiveJS = `() => {
	let visible = 0;
	document.querySelectorAll('button, [role="button"], input:not([type="hidden"]), textarea, select, a[href]')
		.forEach(el => { if (el.offsetParent) visible++; });
	return visible;
}`

// extractElementsJS lists visible interactive elements in document order.
// Elements hidden in an unscrolled overflow container are still listed since
// the harness can reveal them.
const extractElementsJS = `() => {
	const out = [];
	const seen = new Set();

	const validIdent = s => !!s && !/^-?[0-9]/.test(s) && !/[.:#\[\]()>~+*\/\\]/.test(s);

	function selectorFor(el) {
		if (el.id && validIdent(el.id)) return '#' + el.id;
		const tag = el.tagName.toLowerCase();
		if (el.name) return tag + '[name="' + el.name + '"]';
		if (typeof el.className === 'string') {
			const classes = el.className.trim().split(/\s+/).filter(validIdent).slice(0, 2);
			if (classes.length) {
				const sel = tag + '.' + classes.join('.');
				try {
					if (document.querySelectorAll(sel).length === 1) return sel;
				} catch (e) {}
			}
		}
		const parent = el.parentElement;
		if (parent && parent !== document.documentElement) {
			const index = Array.from(parent.children).indexOf(el) + 1;
			return selectorFor(parent) + ' > ' + tag + ':nth-child(' + index + ')';
		}
		return tag;
	}

	function inScroller(el) {
		for (let p = el.parentElement; p && p !== document.body; p = p.parentElement) {
			const s = getComputedStyle(p);
			if (/(auto|scroll)/.test(s.overflowY + s.overflowX)) return true;
		}
		return false;
	}

	const query = 'button, [role="button"], a[href], select, textarea, input:not([type="hidden"])';
	document.querySelectorAll(query).forEach(el => {
		if (!el.offsetParent && getComputedStyle(el).position !== 'fixed') return;
		const href = el.getAttribute('href');
		if (href && (href.startsWith('#') || href.startsWith('javascript:'))) return;
		const selector = selectorFor(el);
		if (seen.has(selector)) return;
		seen.add(selector);
		const tag = el.tagName.toLowerCase();
		const typed = tag === 'input' || tag === 'textarea';
		out.push({
			selector: selector,
			tag: tag,
			type: (el.getAttribute('type') || '').toLowerCase() || undefined,
			text: ((typed ? el.value : el.textContent) || '').trim().slice(0, 50) || undefined,
			placeholder: el.placeholder || undefined,
			name: el.name || undefined,
			id: el.id || undefined,
			scrolled: inScroller(el) || undefined
		});
	});
	return out;
}`
