package diagnostic

import (
	"bytes"
	"context"
	"image"
	_ "image/png"

	"github.com/v0xg/uiharness/internal/driver"
)

// DefaultTrailFrames caps how many frames a Trail keeps
const DefaultTrailFrames = 40

// Trail records a screenshot per scroll increment so a failed reveal can be
// replayed as an animation
type Trail struct {
	page   driver.Page
	max    int
	frames []image.Image
}

// NewTrail returns a trail over page keeping at most maxFrames frames
func NewTrail(page driver.Page, maxFrames int) *Trail {
	if maxFrames <= 0 {
		maxFrames = DefaultTrailFrames
	}
	return &Trail{page: page, max: maxFrames}
}

// Observe captures the current page. Frames that fail to capture are skipped.
func (t *Trail) Observe(ctx context.Context) {
	data, err := t.page.Screenshot(ctx)
	if err != nil {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return
	}
	if len(t.frames) == t.max {
		// keep the most recent frames: the end of the search matters most
		copy(t.frames, t.frames[1:])
		t.frames = t.frames[:len(t.frames)-1]
	}
	t.frames = append(t.frames, img)
}

// Reset drops recorded frames
func (t *Trail) Reset() {
	t.frames = nil
}

// Frames returns the recorded frames, oldest first
func (t *Trail) Frames() []image.Image {
	return append([]image.Image(nil), t.frames...)
}
