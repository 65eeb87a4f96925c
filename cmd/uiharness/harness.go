package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/action"
	"github.com/v0xg/uiharness/internal/browser"
	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/scroll"
)

// harness is a loaded page with the full resolution stack wired to it
type harness struct {
	session  *browser.Session
	page     *browser.Page
	capture  diagnostic.Capturer
	resolver *locator.Resolver
	nav      *scroll.Navigator
	retrier  *action.Retrier
}

func openHarness(ctx context.Context, url string) (*harness, error) {
	fmt.Printf("→ Opening %s... ", url)
	session, err := browser.Launch(ctx, browser.Options{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Headless:   cfg.Headless,
		Bin:        cfg.BrowserBin,
		ProfileDir: cfg.ProfileDir,
		Timeout:    cfg.NavTimeout,
		Logger:     log,
	})
	if err != nil {
		fmt.Println("failed")
		return nil, err
	}
	page, err := session.Open(ctx, url)
	if err != nil {
		fmt.Println("failed")
		_ = session.Close()
		return nil, err
	}
	fmt.Println("done")

	h := &harness{session: session, page: page}

	var capture diagnostic.Capturer = &diagnostic.Memory{}
	if cfg.DiagnosticsDir != "" {
		fc, err := diagnostic.NewFileCapturer(page, diagnostic.FileOptions{
			Dir:      cfg.DiagnosticsDir,
			MaxWidth: uint(cfg.DiagnosticsMaxWidth),
		})
		if err != nil {
			h.Close()
			return nil, err
		}
		capture = fc
	}
	h.capture = capture

	trail := diagnostic.NewTrail(page, 0)
	h.resolver = locator.NewResolver(page, locator.Options{
		Interval:         cfg.PollInterval,
		CandidateTimeout: cfg.CandidateTimeout,
		Logger:           log,
		Capture:          capture,
	})
	h.nav = scroll.NewNavigator(page, scroll.Options{
		Step:        cfg.ScrollStep,
		MaxAttempts: cfg.ScrollMaxAttempts,
		Logger:      log,
		OnStep: func(ctx context.Context, st scroll.State) {
			log.Debug("Scrolled.", zap.String("container", st.Container.Describe()), zap.Stringer("direction", st.Direction), zap.Float64("offset", st.Offset))
			trail.Observe(ctx)
		},
	})
	h.retrier = action.NewRetrier(h.resolver, h.nav, action.Options{
		MaxAttempts: cfg.ActionAttempts,
		Logger:      log,
		Capture:     capture,
		Trail:       trail,
	})
	return h, nil
}

// Close shuts the browser down
func (h *harness) Close() {
	if err := h.session.Close(); err != nil {
		log.Debug("Browser close failed.", zap.Error(err))
	}
}
