package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/scroll"
)

// Kind is the interaction to perform
type Kind string

const (
	Click  Kind = "click"
	Fill   Kind = "fill"
	Select Kind = "select"
)

// ParseKind accepts the action names used in step scripts
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "click":
		return Click, nil
	case "fill", "type":
		return Fill, nil
	case "select", "select-option":
		return Select, nil
	}
	return "", fmt.Errorf("unknown action: %s (supported: click, fill, select)", s)
}

// Step is one scripted interaction
type Step struct {
	Action     string   `json:"action"`               // click, fill, select
	Name       string   `json:"name,omitempty"`       // description for logs
	Candidates []string `json:"candidates"`           // ordered candidate expressions
	PreferTag  string   `json:"prefer_tag,omitempty"` // disambiguation: preferred tag
	PreferText string   `json:"prefer_text,omitempty"`
	Strict     bool     `json:"strict,omitempty"`
	Text       string   `json:"text,omitempty"`   // text to fill
	Values     []string `json:"values,omitempty"` // options to select
	Axis       string   `json:"axis,omitempty"`   // vertical (default) or horizontal
	Wait       int      `json:"wait,omitempty"`   // pause after the step, in ms
}

// Spec builds the locator spec for the step
func (s Step) Spec() locator.Spec {
	spec := locator.New(s.Candidates...).Named(s.Name)
	var prefs []locator.Predicate
	if s.PreferTag != "" {
		prefs = append(prefs, locator.PreferTag(s.PreferTag))
	}
	if s.PreferText != "" {
		prefs = append(prefs, locator.WithText(s.PreferText))
	}
	if len(prefs) > 0 {
		spec = spec.Preferring(locator.All(prefs...))
	}
	if s.Strict {
		spec = spec.Strictly()
	}
	return spec
}

// Args builds the action arguments for the step
func (s Step) Args() (Args, error) {
	axis, err := scroll.ParseAxis(s.Axis)
	if err != nil {
		return Args{}, err
	}
	return Args{Text: s.Text, Values: s.Values, Axis: axis}, nil
}

// ParseSteps decodes a JSON array of steps
func ParseSteps(data []byte) ([]Step, error) {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	for i, s := range steps {
		if _, err := ParseKind(s.Action); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := s.Spec().Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return steps, nil
}
