// Package overlay marks targets on screenshots for diagnostic artifacts.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Stroke is the outline width in pixels
const Stroke = 3

var (
	// BoxColor outlines the resolved target
	BoxColor = color.RGBA{234, 67, 53, 255}
	// MarkerColor rings the point an action would have clicked
	MarkerColor = color.RGBA{66, 133, 244, 180}
)

// Highlight returns a copy of frame with box outlined and its center ringed.
// Parts of box outside the frame are clipped; an empty box returns a plain copy.
func Highlight(frame image.Image, box image.Rectangle) *image.RGBA {
	bounds := frame.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, frame, bounds.Min, draw.Src)

	if box.Empty() {
		return result
	}

	for i := 0; i < Stroke; i++ {
		r := box.Inset(-i)
		drawRect(result, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, BoxColor)
	}

	c := image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2)
	radius := min(box.Dx(), box.Dy())/2 + 6
	drawRing(result, c.X, c.Y, radius, MarkerColor)
	return result
}

// Scale converts a box in CSS pixels to frame pixels when the screenshot was
// taken at a device scale factor other than 1
func Scale(x, y, w, h, factor float64) image.Rectangle {
	if factor <= 0 {
		factor = 1
	}
	return image.Rect(
		int(math.Floor(x*factor)),
		int(math.Floor(y*factor)),
		int(math.Ceil((x+w)*factor)),
		int(math.Ceil((y+h)*factor)),
	)
}

func drawRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	drawLine(img, x1, y1, x2, y1, c)
	drawLine(img, x2, y1, x2, y2, c)
	drawLine(img, x2, y2, x1, y2, c)
	drawLine(img, x1, y2, x1, y1, c)
}

// drawLine uses Bresenham's algorithm
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	for {
		setPixel(img, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func drawRing(img *image.RGBA, x, y, radius int, c color.RGBA) {
	for angle := 0.0; angle < 360; angle++ {
		rad := angle * math.Pi / 180
		px := x + int(float64(radius)*math.Cos(rad))
		py := y + int(float64(radius)*math.Sin(rad))
		setPixel(img, px, py, c)
		setPixel(img, px+1, py, c)
		setPixel(img, px, py+1, c)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
