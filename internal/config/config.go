// Package config loads harness settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config holds every tunable the harness reads. Command-line flags override
// these values.
type Config struct {
	// Browser
	Headless   bool
	Width      int
	Height     int
	BrowserBin string
	ProfileDir string
	NavTimeout time.Duration

	// Resolution and scrolling
	PollInterval      time.Duration
	CandidateTimeout  time.Duration
	ScrollStep        float64
	ScrollMaxAttempts int
	ActionAttempts    int

	// Reconciliation
	ReconcileInterval time.Duration
	ReconcileTimeout  time.Duration

	// Diagnostics
	DiagnosticsDir      string
	DiagnosticsMaxWidth int

	// Authoritative API
	APIBaseURL  string
	APIToken    string
	APIRetryMax int

	// Locator suggestions
	AIProvider   string
	AIModel      string
	AnthropicKey string
	OpenAIKey    string

	LogLevel string
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Headless:            true,
		Width:               1280,
		Height:              720,
		NavTimeout:          30 * time.Second,
		PollInterval:        100 * time.Millisecond,
		CandidateTimeout:    2 * time.Second,
		ScrollStep:          300,
		ScrollMaxAttempts:   20,
		ActionAttempts:      3,
		ReconcileInterval:   time.Second,
		ReconcileTimeout:    15 * time.Second,
		DiagnosticsDir:      "diagnostics",
		DiagnosticsMaxWidth: 1280,
		APIRetryMax:         3,
		AIProvider:          "claude",
		LogLevel:            "info",
	}
}

// Load reads .env files (missing files are ignored) and then the
// environment. Every malformed variable is reported.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv over the defaults
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	e := env{get: getenv}

	e.bool("UIHARNESS_HEADLESS", &c.Headless)
	e.int("UIHARNESS_WIDTH", &c.Width)
	e.int("UIHARNESS_HEIGHT", &c.Height)
	e.str("UIHARNESS_BROWSER_BIN", &c.BrowserBin)
	e.str("UIHARNESS_PROFILE_DIR", &c.ProfileDir)
	e.duration("UIHARNESS_NAV_TIMEOUT", &c.NavTimeout)

	e.duration("UIHARNESS_POLL_INTERVAL", &c.PollInterval)
	e.duration("UIHARNESS_CANDIDATE_TIMEOUT", &c.CandidateTimeout)
	e.float("UIHARNESS_SCROLL_STEP", &c.ScrollStep)
	e.int("UIHARNESS_SCROLL_MAX_ATTEMPTS", &c.ScrollMaxAttempts)
	e.int("UIHARNESS_ACTION_ATTEMPTS", &c.ActionAttempts)

	e.duration("UIHARNESS_RECONCILE_INTERVAL", &c.ReconcileInterval)
	e.duration("UIHARNESS_RECONCILE_TIMEOUT", &c.ReconcileTimeout)

	e.str("UIHARNESS_DIAGNOSTICS_DIR", &c.DiagnosticsDir)
	e.int("UIHARNESS_DIAGNOSTICS_MAX_WIDTH", &c.DiagnosticsMaxWidth)

	e.str("UIHARNESS_API_BASE_URL", &c.APIBaseURL)
	e.str("UIHARNESS_API_TOKEN", &c.APIToken)
	e.int("UIHARNESS_API_RETRY_MAX", &c.APIRetryMax)

	e.str("UIHARNESS_DEFAULT_PROVIDER", &c.AIProvider)
	e.str("UIHARNESS_MODEL", &c.AIModel)
	e.str("ANTHROPIC_API_KEY", &c.AnthropicKey)
	e.str("UIHARNESS_ANTHROPIC_KEY", &c.AnthropicKey)
	e.str("OPENAI_API_KEY", &c.OpenAIKey)
	e.str("UIHARNESS_OPENAI_KEY", &c.OpenAIKey)

	e.str("UIHARNESS_LOG_LEVEL", &c.LogLevel)

	return c, multierr.Append(e.err, c.Validate())
}

// Validate checks ranges
func (c Config) Validate() error {
	var err error
	positive := func(name string, ok bool) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s must be positive", name))
		}
	}
	positive("width", c.Width > 0)
	positive("height", c.Height > 0)
	positive("navigation timeout", c.NavTimeout > 0)
	positive("poll interval", c.PollInterval > 0)
	positive("candidate timeout", c.CandidateTimeout > 0)
	positive("scroll step", c.ScrollStep > 0)
	if math.IsInf(c.ScrollStep, 0) {
		err = multierr.Append(err, fmt.Errorf("scroll step must be finite"))
	}
	positive("scroll max attempts", c.ScrollMaxAttempts > 0)
	positive("action attempts", c.ActionAttempts > 0)
	positive("reconcile interval", c.ReconcileInterval > 0)
	positive("reconcile timeout", c.ReconcileTimeout > 0)
	return err
}

// AIKey returns the API key for the configured provider
func (c Config) AIKey() string {
	switch c.AIProvider {
	case "openai", "gpt":
		return c.OpenAIKey
	}
	return c.AnthropicKey
}

// env reads typed values, collecting parse errors. Unset or blank
// variables leave the target untouched.
type env struct {
	get func(string) string
	err error
}

func (e *env) lookup(name string) (string, bool) {
	v := strings.TrimSpace(e.get(name))
	return v, v != ""
}

func (e *env) fail(name, v string, err error) {
	e.err = multierr.Append(e.err, fmt.Errorf("%s=%q: %w", name, v, err))
}

func (e *env) str(name string, dst *string) {
	if v, ok := e.lookup(name); ok {
		*dst = v
	}
}

func (e *env) bool(name string, dst *bool) {
	if v, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = b
	}
}

func (e *env) int(name string, dst *int) {
	if v, ok := e.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (e *env) float(name string, dst *float64) {
	if v, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = f
	}
}

// duration accepts Go durations ("1500ms", "2s") or bare milliseconds
func (e *env) duration(name string, dst *time.Duration) {
	if v, ok := e.lookup(name); ok {
		if ms, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(ms) * time.Millisecond
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(name, v, err)
			return
		}
		*dst = d
	}
}
