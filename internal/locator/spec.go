package locator

import (
	"errors"
	"strings"

	"github.com/v0xg/uiharness/internal/driver"
)

// Predicate reports whether a matched element is the preferred one
type Predicate func(driver.Info) bool

// Spec is an ordered list of candidate expressions for one logical control
type Spec struct {
	Name       string   // human description, used in logs and diagnostics
	Candidates []string // tried strictly in order
	// Prefer narrows a multi-match from a single candidate expression
	Prefer Predicate
	// Strict makes an unresolved multi-match an error instead of a tie-break
	Strict bool
}

// New returns a Spec trying candidates in order
func New(candidates ...string) Spec {
	return Spec{Candidates: candidates}
}

// Named sets the description
func (s Spec) Named(name string) Spec {
	s.Name = name
	return s
}

// Preferring sets the disambiguation predicate
func (s Spec) Preferring(p Predicate) Spec {
	s.Prefer = p
	return s
}

// Strictly makes the spec fail on ambiguity
func (s Spec) Strictly() Spec {
	s.Strict = true
	return s
}

func (s Spec) String() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.Candidates, " | ")
}

// Validate checks the spec has at least one non-blank candidate
func (s Spec) Validate() error {
	if len(s.Candidates) == 0 {
		return errors.New("locator: spec has no candidate expressions")
	}
	for _, c := range s.Candidates {
		if strings.TrimSpace(c) == "" {
			return errors.New("locator: spec has a blank candidate expression")
		}
	}
	return nil
}

// PreferTag prefers elements with the given tag name
func PreferTag(tag string) Predicate {
	tag = strings.ToLower(tag)
	return func(i driver.Info) bool { return i.Tag == tag }
}

// WithinY prefers elements whose top edge lies in [top, bottom]
func WithinY(top, bottom float64) Predicate {
	return func(i driver.Info) bool { return i.Box.Y >= top && i.Box.Y <= bottom }
}

// WithText prefers elements whose text contains s, ignoring case
func WithText(s string) Predicate {
	s = strings.ToLower(s)
	return func(i driver.Info) bool { return strings.Contains(strings.ToLower(i.Text), s) }
}

// All combines predicates; every one must hold
func All(ps ...Predicate) Predicate {
	return func(i driver.Info) bool {
		for _, p := range ps {
			if !p(i) {
				return false
			}
		}
		return true
	}
}
