package gifgen

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"sort"

	"github.com/nfnt/resize"
)

// DefaultMaxWidth bounds frame width when Options.MaxWidth is zero
const DefaultMaxWidth = 800

// ErrNoFrames is returned when there is nothing to encode
var ErrNoFrames = errors.New("gifgen: no frames")

// Options configures GIF generation
type Options struct {
	FPS      int  // defaults to 4: trail frames are one per scroll step
	MaxWidth uint // frames wider than this are scaled down
}

// Encode writes frames to w as a looping GIF. Frames are scaled to the
// first frame's size, capped at MaxWidth, and share one palette built from
// the last frame, where a failed search ends up.
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if opts.FPS <= 0 {
		opts.FPS = 4
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = DefaultMaxWidth
	}

	// delay is in 100ths of a second
	delay := max(100/opts.FPS, 1)

	width, height := outputSize(frames[0].Bounds(), opts.MaxWidth)
	palette := generatePalette(frames[len(frames)-1])

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i, frame := range frames {
		scaled := frame
		if b := frame.Bounds(); uint(b.Dx()) != width || uint(b.Dy()) != height {
			scaled = resize.Resize(width, height, frame, resize.Lanczos3)
		}
		paletted := image.NewPaletted(image.Rect(0, 0, int(width), int(height)), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), scaled, scaled.Bounds().Min)
		g.Image[i] = paletted
		g.Delay[i] = delay
	}
	return gif.EncodeAll(w, g)
}

func outputSize(b image.Rectangle, maxWidth uint) (uint, uint) {
	w, h := uint(b.Dx()), uint(b.Dy())
	if w <= maxWidth {
		return w, h
	}
	// keep the aspect ratio
	return maxWidth, max(uint(float64(maxWidth)*float64(h)/float64(w)), 1)
}

// generatePalette builds a 256-color palette from the most frequent colors
// in img, sampling every 4th pixel
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		// stable output for equal counts
		a, b := colors[i], colors[j]
		return uint32(a.R)<<24|uint32(a.G)<<16|uint32(a.B)<<8|uint32(a.A) < uint32(b.R)<<24|uint32(b.G)<<16|uint32(b.B)<<8|uint32(b.A)
	})

	palette := make(color.Palette, 0, 256)
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	// pad with grayscale
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
