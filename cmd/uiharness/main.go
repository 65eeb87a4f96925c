package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/uiharness/internal/config"
)

var (
	envFile     string
	headless    bool
	width       int
	height      int
	profile     string
	diagnostics string
	verbose     bool

	cfg config.Config
	log *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uiharness",
		Short: "Drive web UIs reliably: resolve, reveal, act and reconcile",
		Long: `uiharness resolves elements from ordered candidate expressions, scrolls them
into view, acts on them with stale-element recovery, and confirms state changes
against an authoritative API instead of what the page displays.

Examples:
  uiharness probe https://app.test "#invite" "button:has-text('Invite')"
  uiharness run https://app.test steps.json
  uiharness suggest https://app.test "the invite button in the members table"
  uiharness reconcile https://app.test invite.json --path /api/invites/7 --field status --expect accepted`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
	flags.BoolVar(&headless, "headless", true, "Run the browser headless")
	flags.IntVar(&width, "width", 1280, "Viewport width")
	flags.IntVar(&height, "height", 720, "Viewport height")
	flags.StringVar(&profile, "profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	flags.StringVar(&diagnostics, "diagnostics", "", "Directory for diagnostic captures (default from UIHARNESS_DIAGNOSTICS_DIR)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.AddCommand(probeCmd(), runCmd(), suggestCmd(), reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, applies flags that were set explicitly and
// builds the logger
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(envFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Headless = headless
	}
	if flags.Changed("width") {
		cfg.Width = width
	}
	if flags.Changed("height") {
		cfg.Height = height
	}
	if flags.Changed("profile") {
		cfg.ProfileDir = profile
	}
	if flags.Changed("diagnostics") {
		cfg.DiagnosticsDir = diagnostics
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log, err = newLogger(cfg.LogLevel)
	return err
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.DisableStacktrace = lvl > zapcore.DebugLevel
	zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	return zc.Build()
}
