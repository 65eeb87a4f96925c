package diagnostic

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"github.com/v0xg/uiharness/internal/driver"
	"github.com/v0xg/uiharness/internal/gifgen"
	"github.com/v0xg/uiharness/internal/overlay"
)

// FileOptions configures a FileCapturer
type FileOptions struct {
	Dir      string
	MaxWidth uint // screenshots wider than this are scaled down, 0 keeps them
	FPS      int  // scroll trail animation speed
	Now      func() time.Time
}

// FileCapturer writes artifacts for each event into a directory:
//
//	<stamp>-<kind>-<id>.png  screenshot, target outlined when known
//	<stamp>-<kind>-<id>.txt  event details and the page text
//	<stamp>-<kind>-<id>.gif  scroll trail, when the event carries frames
type FileCapturer struct {
	page driver.Page
	opts FileOptions
}

// NewFileCapturer creates opts.Dir if needed
func NewFileCapturer(page driver.Page, opts FileOptions) (*FileCapturer, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("diagnostic directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create diagnostic directory: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FileCapturer{page: page, opts: opts}, nil
}

// Capture writes what it can. Only a failure to write the text report is an
// error; a missing screenshot or trail is noted in the report instead.
func (c *FileCapturer) Capture(ctx context.Context, ev Event) (*Record, error) {
	rec := &Record{
		ID:     uuid.New(),
		Time:   c.opts.Now(),
		Kind:   ev.Kind,
		Target: ev.Target,
		Detail: ev.Detail,
	}
	base := filepath.Join(c.opts.Dir, fmt.Sprintf("%s-%s-%s", rec.Time.Format("20060102-150405"), ev.Kind, rec.ID.String()[:8]))

	var notes []string
	if err := c.writeScreenshot(ctx, base+".png", ev.Box); err != nil {
		notes = append(notes, fmt.Sprintf("screenshot unavailable: %v", err))
	} else {
		rec.Artifacts = append(rec.Artifacts, base+".png")
	}

	if len(ev.Frames) > 0 {
		if err := c.writeTrail(base+".gif", ev.Frames); err != nil {
			notes = append(notes, fmt.Sprintf("scroll trail unavailable: %v", err))
		} else {
			rec.Artifacts = append(rec.Artifacts, base+".gif")
		}
	}

	body, err := c.page.Text(ctx)
	if err != nil {
		notes = append(notes, fmt.Sprintf("page text unavailable: %v", err))
	}
	if err := os.WriteFile(base+".txt", []byte(report(rec, ev, notes, body)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write diagnostic report: %w", err)
	}
	rec.Artifacts = append(rec.Artifacts, base+".txt")
	return rec, nil
}

func (c *FileCapturer) writeScreenshot(ctx context.Context, path string, box *driver.Rect) error {
	data, err := c.page.Screenshot(ctx)
	if err != nil {
		return err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode screenshot: %w", err)
	}

	if box != nil {
		factor := 1.0
		if view, err := c.page.Window().Bounds(ctx); err == nil && view.Width > 0 {
			factor = float64(img.Bounds().Dx()) / view.Width
		}
		img = overlay.Highlight(img, overlay.Scale(box.X, box.Y, box.Width, box.Height, factor))
	}
	if limit := c.opts.MaxWidth; limit > 0 && uint(img.Bounds().Dx()) > limit {
		img = resize.Resize(limit, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c *FileCapturer) writeTrail(path string, frames []image.Image) error {
	var buf bytes.Buffer
	if err := gifgen.Encode(&buf, frames, gifgen.Options{FPS: c.opts.FPS, MaxWidth: c.opts.MaxWidth}); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func report(rec *Record, ev Event, notes []string, body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kind:   %s\n", rec.Kind)
	fmt.Fprintf(&sb, "target: %s\n", rec.Target)
	fmt.Fprintf(&sb, "time:   %s\n", rec.Time.Format(time.RFC3339))
	fmt.Fprintf(&sb, "id:     %s\n", rec.ID)
	if ev.Box != nil {
		fmt.Fprintf(&sb, "box:    x=%.0f y=%.0f w=%.0f h=%.0f\n", ev.Box.X, ev.Box.Y, ev.Box.Width, ev.Box.Height)
	}
	if len(ev.Frames) > 0 {
		fmt.Fprintf(&sb, "frames: %d\n", len(ev.Frames))
	}
	if rec.Detail != "" {
		fmt.Fprintf(&sb, "\n%s\n", rec.Detail)
	}
	for _, n := range notes {
		fmt.Fprintf(&sb, "\nnote: %s", n)
	}
	if len(notes) > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("\n--- page text ---\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}
