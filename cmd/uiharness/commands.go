package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/v0xg/uiharness/internal/action"
	"github.com/v0xg/uiharness/internal/ai"
	"github.com/v0xg/uiharness/internal/apiclient"
	"github.com/v0xg/uiharness/internal/crawler"
	"github.com/v0xg/uiharness/internal/diagnostic"
	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/reconcile"
	"github.com/v0xg/uiharness/internal/scroll"
	"github.com/v0xg/uiharness/internal/uierr"
)

func probeCmd() *cobra.Command {
	var step action.Step
	cmd := &cobra.Command{
		Use:   "probe <url> <candidate>...",
		Short: "Resolve an element and scroll it into view without acting on it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			step.Candidates = args[1:]
			spec := step.Spec()
			stepArgs, err := step.Args()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := openHarness(ctx, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			fmt.Printf("→ Resolving %s... ", spec)
			res, err := h.resolver.Resolve(ctx, spec)
			if err != nil {
				fmt.Println("failed")
				return err
			}
			fmt.Printf("done (candidate %d %q, %d queries)\n", res.Candidate+1, res.Expr, res.Attempts)
			fmt.Printf("  element: %s at (%.0f, %.0f)\n", res.Info, res.Info.Box.X, res.Info.Box.Y)
			if res.TieBreak != "" {
				fmt.Printf("  ⚠ several matches, picked by %s\n", res.TieBreak)
			}

			fmt.Printf("→ Revealing... ")
			st, visible, err := h.nav.Search(ctx, res.Element, stepArgs.Axis, nil)
			if err != nil {
				fmt.Println("failed")
				return err
			}
			if !visible {
				fmt.Println("failed")
				return revealFailure(ctx, h.capture, spec, st, res.Info.Box)
			}
			fmt.Printf("done (%s, offset %.0f)\n", st.Container.Describe(), st.Offset)
			return nil
		},
	}
	cmd.Flags().StringVar(&step.Name, "name", "", "Description of the element for logs")
	cmd.Flags().StringVar(&step.PreferTag, "prefer-tag", "", "Prefer matches with this tag when several match")
	cmd.Flags().StringVar(&step.PreferText, "prefer-text", "", "Prefer matches containing this text when several match")
	cmd.Flags().BoolVar(&step.Strict, "strict", false, "Fail instead of tie-breaking when several elements match")
	cmd.Flags().StringVar(&step.Axis, "axis", "vertical", "Scroll axis: vertical or horizontal")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <url> <steps.json>",
		Short: "Perform a scripted sequence of actions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := readSteps(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := openHarness(ctx, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			return runSteps(ctx, h, steps)
		},
	}
}

func suggestCmd() *cobra.Command {
	var provider, model string
	cmd := &cobra.Command{
		Use:   "suggest <url> <description>",
		Short: "Ask an AI provider for candidate expressions and check them against the page",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "" {
				cfg.AIProvider = provider
			}
			if model != "" {
				cfg.AIModel = model
			}
			p, err := ai.NewProvider(cfg.AIProvider, ai.Options{APIKey: cfg.AIKey(), Model: cfg.AIModel})
			if err != nil {
				return fmt.Errorf("AI provider init failed: %w", err)
			}

			ctx := cmd.Context()
			h, err := openHarness(ctx, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			fmt.Printf("→ Mapping page... ")
			pageMap, err := crawler.Snapshot(ctx, h.page.Rod(), crawler.Options{})
			if err != nil {
				fmt.Println("failed")
				return fmt.Errorf("page map failed: %w", err)
			}
			fmt.Printf("done (found %d interactive elements)\n", len(pageMap.Elements))
			for label, group := range pageMap.Ambiguous() {
				log.Sugar().Debugw("Shared label.", "label", label, "elements", len(group))
			}
			if hints := pageHints(pageMap, args[1]); len(hints) > 0 {
				fmt.Printf("  %d elements on the page mention it:\n", len(hints))
				for _, e := range hints {
					fmt.Printf("    %s\n", e)
				}
			}

			fmt.Printf("→ Asking %s... ", cfg.AIProvider)
			candidates, err := p.SuggestCandidates(ctx, pageMap, args[1])
			if err != nil {
				fmt.Println("failed")
				return err
			}
			fmt.Printf("done (%d candidates)\n", len(candidates))

			for i, c := range candidates {
				els, err := h.page.Query(ctx, c)
				switch {
				case err != nil:
					fmt.Printf("  [%d] %s → error: %v\n", i+1, c, err)
				case len(els) == 1:
					fmt.Printf("  [%d] %s → unique\n", i+1, c)
				default:
					fmt.Printf("  [%d] %s → %d matches\n", i+1, c, len(els))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "AI provider: claude, openai (default: from env or claude)")
	cmd.Flags().StringVar(&model, "model", "", "Specific model override")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var path, field, expect, visual, triggerFile string
	cmd := &cobra.Command{
		Use:   "reconcile <url> <steps.json>",
		Short: "Perform a state change and confirm it against the API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" || field == "" || expect == "" {
				return errors.New("--path, --field and --expect are required")
			}
			steps, err := readSteps(args[1])
			if err != nil {
				return err
			}
			var trigger []action.Step
			if triggerFile != "" {
				if trigger, err = readSteps(triggerFile); err != nil {
					return err
				}
			}
			api, err := apiclient.New(apiclient.Options{
				BaseURL:  cfg.APIBaseURL,
				Token:    cfg.APIToken,
				RetryMax: cfg.APIRetryMax,
				Logger:   log,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			h, err := openHarness(ctx, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			opts := reconcile.Options{
				Interval: cfg.ReconcileInterval,
				Timeout:  cfg.ReconcileTimeout,
				Target:   path + " " + field,
				Logger:   log,
				Capture:  h.capture,
			}
			if visual != "" {
				opts.Visual = h.page.TextSignal(visual)
			}
			r := reconcile.New(opts)

			var triggerFn func(ctx context.Context) error
			if len(trigger) > 0 {
				triggerFn = func(ctx context.Context) error { return runSteps(ctx, h, trigger) }
			}
			rep, err := r.Reconcile(ctx,
				func(ctx context.Context) error { return runSteps(ctx, h, steps) },
				triggerFn,
				api.Signal(path, field),
				expect)
			if err != nil {
				if rep.Phase == reconcile.Mismatch {
					fmt.Printf("✗ %s is %q after %s (expected %q)\n", field, rep.Observed, rep.Elapsed, expect)
				}
				return err
			}
			fmt.Printf("✓ %s confirmed %q after %s (%d polls)\n", field, rep.Observed, rep.Elapsed, rep.Polls)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "API path holding the authoritative state")
	cmd.Flags().StringVar(&field, "field", "", "Field to read, as a gjson path")
	cmd.Flags().StringVar(&expect, "expect", "", "Expected value of the field")
	cmd.Flags().StringVar(&visual, "visual", "", "Expression of the on-page indicator to compare (reported only)")
	cmd.Flags().StringVar(&triggerFile, "trigger", "", "Steps that depend on the new state, run before confirming")
	return cmd
}

// revealFailure captures diagnostics for an element that scrolling could not
// bring into view and returns the matching error
func revealFailure(ctx context.Context, capture diagnostic.Capturer, spec locator.Spec, st scroll.State, box driver.Rect) error {
	where := "no container"
	if st.Container != nil {
		where = st.Container.Describe()
	}
	detail := fmt.Sprintf("%s scroll of %s gave up after %d %s attempts at offset %.0f",
		st.Axis, where, st.Attempts, st.Direction, st.Offset)
	diagnostic.Report(ctx, capture, log, diagnostic.Event{
		Kind:   uierr.KindScrollExhausted,
		Target: spec.String(),
		Detail: detail,
		Box:    &box,
	})
	return uierr.New(uierr.KindScrollExhausted, spec.String(), detail, nil)
}

// pageHints lists the mapped elements whose label mentions the description,
// or failing that any of its words
func pageHints(m *crawler.PageMap, description string) []crawler.Element {
	if hits := m.Matching(description); len(hits) > 0 {
		return hits
	}
	seen := make(map[string]bool)
	var out []crawler.Element
	for _, word := range strings.Fields(description) {
		if len(word) < 3 {
			continue
		}
		for _, e := range m.Matching(word) {
			if !seen[e.Selector] {
				seen[e.Selector] = true
				out = append(out, e)
			}
		}
	}
	return out
}

func readSteps(path string) ([]action.Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}
	return action.ParseSteps(data)
}

func runSteps(ctx context.Context, h *harness, steps []action.Step) error {
	logSteps(steps)
	fmt.Printf("→ Running %d steps... ", len(steps))
	n, err := h.retrier.Run(ctx, steps)
	if err != nil {
		fmt.Printf("failed at step %d\n", n+1)
		return err
	}
	fmt.Println("done")
	return nil
}

// logSteps prints the step list
func logSteps(steps []action.Step) {
	if !verbose {
		return
	}
	for i, s := range steps {
		target := s.Name
		if target == "" {
			target = strings.Join(s.Candidates, " | ")
		}
		switch {
		case s.Text != "":
			fmt.Printf("  [%d] %s → %s (text: %q)\n", i+1, s.Action, target, s.Text)
		case len(s.Values) > 0:
			fmt.Printf("  [%d] %s → %s (values: %s)\n", i+1, s.Action, target, strings.Join(s.Values, ", "))
		default:
			fmt.Printf("  [%d] %s → %s\n", i+1, s.Action, target)
		}
	}
}
