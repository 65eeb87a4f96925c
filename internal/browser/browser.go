// Package browser drives Chromium through go-rod and exposes it through the
// driver interfaces.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Options configures the browser session
type Options struct {
	Width      int
	Height     int
	Headless   bool
	Bin        string        // browser binary, looked up when empty
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
	Timeout    time.Duration // navigation timeout
	Logger     *zap.Logger
}

// Session owns a launched browser
type Session struct {
	browser *rod.Browser
	opts    Options
	log     *zap.Logger
}

// Launch starts a browser and connects to it
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if opts.Width == 0 {
		opts.Width = 1280
	}
	if opts.Height == 0 {
		opts.Height = 720
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("browser")

	bin := opts.Bin
	if bin == "" {
		bin, _ = launcher.LookPath()
	}
	l := launcher.New().Context(ctx).Bin(bin).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	log.Debug("Browser launched.", zap.String("bin", bin), zap.Bool("headless", opts.Headless))
	return &Session{browser: b, opts: opts, log: log}, nil
}

// Open creates a tab, loads url and waits for the network to settle
func (s *Session) Open(ctx context.Context, url string) (*Page, error) {
	p, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	page := &Page{page: p, log: s.log}
	if err := page.Navigate(ctx, url, s.opts.Timeout); err != nil {
		return nil, err
	}
	return page, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	return s.browser.Close()
}

// Navigate loads url in the page
func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	pg := p.page.Context(ctx).Timeout(timeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}

	// don't hang on persistent connections (WebSockets, polling)
	p.page.Context(ctx).Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	p.log.Debug("Page loaded.", zap.String("url", url))
	return nil
}
