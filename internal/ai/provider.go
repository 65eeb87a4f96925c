package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/v0xg/uiharness/internal/crawler"
	"github.com/v0xg/uiharness/internal/driver"
)

// Provider suggests candidate expressions for a described element
type Provider interface {
	SuggestCandidates(ctx context.Context, pageMap *crawler.PageMap, description string) ([]string, error)
}

// Options configures a provider
type Options struct {
	APIKey  string
	Model   string
	BaseURL string // API endpoint override
}

// NewProvider creates a provider by name
func NewProvider(name string, opts Options) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(opts)
	case "openai", "gpt":
		return NewOpenAIProvider(opts)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}

// parseCandidates extracts the JSON array of expressions from a response
// that may contain surrounding text. Blank, duplicate and unparseable
// expressions are dropped; order is kept.
func parseCandidates(response string) ([]string, error) {
	raw := strings.TrimSpace(response)
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsArray() {
		start := strings.Index(raw, "[")
		end := strings.LastIndex(raw, "]")
		if start == -1 || end < start {
			return nil, fmt.Errorf("no JSON array found in response")
		}
		raw = raw[start : end+1]
		if !gjson.Valid(raw) {
			return nil, fmt.Errorf("invalid JSON array in response")
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, v := range gjson.Parse(raw).Array() {
		expr := strings.TrimSpace(v.String())
		if expr == "" || seen[expr] {
			continue
		}
		if _, err := driver.ParseExpr(expr); err != nil {
			continue
		}
		seen[expr] = true
		out = append(out, expr)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("response contained no usable candidates")
	}
	return out, nil
}
