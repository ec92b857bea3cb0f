// Package annotate renders detections as transparent overlay layers and
// composites them onto images.
package annotate

import (
	"image"
	"image/color"
	"sync"

	"annotator/internal/models"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var Red = color.RGBA{R: 255, A: 255}

type Style struct {
	Color       color.RGBA
	StrokeWidth int
	FontSize    float64
}

func DefaultStyle() Style {
	return Style{Color: Red, StrokeWidth: 3, FontSize: 30}
}

var (
	fontOnce sync.Once
	goFont   *opentype.Font
)

// newFace returns a fresh face per call; faces are not safe for concurrent
// use, the parsed font is.
func newFace(size float64) font.Face {
	fontOnce.Do(func() {
		goFont, _ = opentype.Parse(goregular.TTF)
	})
	if goFont == nil || size <= 0 {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13
	}
	return face
}

// Layer draws every detection onto a transparent width×height layer: a
// rectangle outline and its caption above the box.
func Layer(width, height int, dets []models.Detection, style Style) *image.RGBA {
	layer := image.NewRGBA(image.Rect(0, 0, width, height))
	if len(dets) == 0 {
		return layer
	}

	face := newFace(style.FontSize)
	defer face.Close()

	for _, d := range dets {
		x1, y1, x2, y2 := d.Box.Pixels(width, height)
		drawRect(layer, x1, y1, x2, y2, style.StrokeWidth, style.Color)
		drawCaption(layer, face, d.Caption(), x1, y1, style)
	}

	return layer
}

func drawRect(img *image.RGBA, x1, y1, x2, y2, thickness int, col color.Color) {
	if thickness <= 0 {
		thickness = 1
	}
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// drawCaption puts text just above the top edge of the box, or just inside
// it when the box touches the top of the image.
func drawCaption(img *image.RGBA, face font.Face, text string, x, top int, style Style) {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	descent := metrics.Descent.Ceil()

	baseline := top - descent - 2
	if baseline-ascent < img.Bounds().Min.Y {
		baseline = top + style.StrokeWidth + ascent + 2
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(style.Color),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(text)
}

// Composite draws layer over base (source-over, full opacity) into a new
// image; base is left untouched.
func Composite(base image.Image, layer image.Image) *image.NRGBA {
	return imaging.Overlay(base, layer, base.Bounds().Min, 1.0)
}

// Clone returns an independent NRGBA copy of img.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}
