package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func TestHighlightOutlinesBox(t *testing.T) {
	src := blank(200, 100)
	out := Highlight(src, image.Rect(50, 20, 150, 60))

	assert.Equal(t, BoxColor, out.RGBAAt(50, 20))
	assert.Equal(t, BoxColor, out.RGBAAt(149, 59))
	assert.Equal(t, BoxColor, out.RGBAAt(100, 20))
	assert.Equal(t, BoxColor, out.RGBAAt(48, 40), "stroke grows outward")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(5, 5))
	// source untouched
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(50, 20))
}

func TestHighlightClipsToFrame(t *testing.T) {
	out := Highlight(blank(40, 40), image.Rect(-20, -20, 500, 500))
	assert.Equal(t, image.Rect(0, 0, 40, 40), out.Bounds())
}

func TestHighlightEmptyBox(t *testing.T) {
	src := blank(10, 10)
	out := Highlight(src, image.Rectangle{})
	assert.Equal(t, src.Pix, out.Pix)
}

func TestScale(t *testing.T) {
	assert.Equal(t, image.Rect(10, 20, 40, 45), Scale(10, 20, 30, 25, 1))
	assert.Equal(t, image.Rect(21, 40, 81, 91), Scale(10.5, 20, 30, 25.4, 2))
	assert.Equal(t, image.Rect(1, 1, 3, 3), Scale(1, 1, 2, 2, 0))
}

func TestDrawLineEndpoints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	c := color.RGBA{1, 2, 3, 255}
	drawLine(img, 18, 2, 3, 15, c)
	assert.Equal(t, c, img.RGBAAt(18, 2))
	assert.Equal(t, c, img.RGBAAt(3, 15))
}
