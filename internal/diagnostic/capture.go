// Package diagnostic persists snapshots of the page whenever the harness
// gives up on (or has to guess about) a target.
package diagnostic

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/uierr"
)

// Event describes a failure (or a logged ambiguity) to capture
type Event struct {
	Kind   uierr.Kind
	Target string
	Detail string       // last observed state, free text
	Box    *driver.Rect // target box to highlight, when one was resolved
	Frames []image.Image
}

// Record is what a capture produced
type Record struct {
	ID        uuid.UUID
	Time      time.Time
	Kind      uierr.Kind
	Target    string
	Detail    string
	Artifacts []string // paths of written files
}

// Capturer persists an Event
type Capturer interface {
	Capture(ctx context.Context, ev Event) (*Record, error)
}

// Report hands ev to c, if any. Capture problems are logged and swallowed:
// a broken screenshot must never mask the failure being reported.
func Report(ctx context.Context, c Capturer, log *zap.Logger, ev Event) *Record {
	if c == nil {
		return nil
	}
	rec, err := c.Capture(ctx, ev)
	if err != nil {
		if log != nil {
			log.Warn("Diagnostic capture failed.", zap.String("kind", string(ev.Kind)), zap.String("target", ev.Target), zap.Error(err))
		}
		return nil
	}
	if log != nil {
		log.Info("Diagnostic captured.", zap.String("kind", string(ev.Kind)), zap.Stringer("id", rec.ID), zap.Strings("artifacts", rec.Artifacts))
	}
	return rec
}

// Memory keeps events in memory. Useful in tests and as a fallback when no
// output directory is configured.
type Memory struct {
	Events []Event
}

func (m *Memory) Capture(ctx context.Context, ev Event) (*Record, error) {
	m.Events = append(m.Events, ev)
	return &Record{
		ID:     uuid.New(),
		Time:   time.Now(),
		Kind:   ev.Kind,
		Target: ev.Target,
		Detail: ev.Detail,
	}, nil
}

// Kinds lists the kinds of the captured events in order
func (m *Memory) Kinds() []uierr.Kind {
	out := make([]uierr.Kind, len(m.Events))
	for i, ev := range m.Events {
		out[i] = ev.Kind
	}
	return out
}
