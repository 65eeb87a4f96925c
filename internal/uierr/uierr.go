// Package uierr holds the failure taxonomy shared by the resolution, scroll,
// action and reconciliation layers.
package uierr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure
type Kind string

const (
	KindNotFound        Kind = "not-found"
	KindAmbiguous       Kind = "ambiguous"
	KindScrollExhausted Kind = "scroll-exhausted"
	KindStaleElement    Kind = "stale-element"
	KindMismatch        Kind = "reconciliation-mismatch"
)

// Sentinels for errors.Is matching against an *Error of the same kind
var (
	NotFound        = errors.New(string(KindNotFound))
	Ambiguous       = errors.New(string(KindAmbiguous))
	ScrollExhausted = errors.New(string(KindScrollExhausted))
	StaleElement    = errors.New(string(KindStaleElement))
	Mismatch        = errors.New(string(KindMismatch))
)

var sentinels = map[Kind]error{
	KindNotFound:        NotFound,
	KindAmbiguous:       Ambiguous,
	KindScrollExhausted: ScrollExhausted,
	KindStaleElement:    StaleElement,
	KindMismatch:        Mismatch,
}

// Error is a failure surfaced to the calling scenario
type Error struct {
	Kind   Kind
	Target string // description of what was being resolved, revealed or confirmed
	Last   any    // last observed state, for the failure message
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Target)
	if e.Last != nil {
		msg += fmt.Sprintf(" (last observed: %v)", e.Last)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New builds an *Error
func New(kind Kind, target string, last any, cause error) *Error {
	return &Error{Kind: kind, Target: target, Last: last, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
