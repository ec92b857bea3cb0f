package annotate

import (
	"image"
	"image/color"
	"testing"

	"annotator/internal/models"

	"github.com/stretchr/testify/require"
)

func isRed(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return r>>8 > 200 && g>>8 < 60 && b>>8 < 60 && a>>8 > 200
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func catDetection() models.Detection {
	return models.Detection{
		Label:      "cat",
		Confidence: 0.87,
		Box:        models.Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2},
	}
}

func TestLayer_RectangleAtAbsolutePixels(t *testing.T) {
	layer := Layer(1280, 1280, []models.Detection{catDetection()}, DefaultStyle())

	for _, p := range []image.Point{
		{128, 128}, {384, 384}, {384, 128}, {128, 384},
		{256, 128}, {256, 130}, {128, 256}, {384, 256}, {256, 384},
	} {
		require.True(t, isRed(layer.At(p.X, p.Y)), "edge pixel %v", p)
	}

	for _, p := range []image.Point{{256, 256}, {132, 200}, {100, 250}, {390, 250}, {256, 390}} {
		_, _, _, a := layer.At(p.X, p.Y).RGBA()
		require.Zero(t, a, "pixel %v should be transparent", p)
	}
}

func TestLayer_CaptionAboveBox(t *testing.T) {
	layer := Layer(1280, 1280, []models.Detection{catDetection()}, DefaultStyle())

	found := false
	for y := 80; y < 128 && !found; y++ {
		for x := 128; x < 400; x++ {
			if _, _, _, a := layer.At(x, y).RGBA(); a > 0 {
				found = true
				break
			}
		}
	}
	require.True(t, found, "expected caption pixels above the box")
}

func TestLayer_CaptionInsideWhenNoRoom(t *testing.T) {
	det := catDetection()
	det.Box = models.Box{X: 0.1, Y: 0, W: 0.3, H: 0.3}
	layer := Layer(1280, 1280, []models.Detection{det}, DefaultStyle())

	found := false
	for y := 4; y < 60 && !found; y++ {
		for x := 140; x < 400; x++ {
			if _, _, _, a := layer.At(x, y).RGBA(); a > 0 {
				found = true
				break
			}
		}
	}
	require.True(t, found, "expected caption pixels inside the box")
}

func TestLayer_ClipsOutOfBounds(t *testing.T) {
	det := models.Detection{Box: models.Box{X: 0.9, Y: 0.9, W: 0.5, H: 0.5}}
	require.NotPanics(t, func() {
		Layer(100, 100, []models.Detection{det}, DefaultStyle())
	})
}

func TestLayer_Empty(t *testing.T) {
	layer := Layer(10, 10, nil, DefaultStyle())
	for _, v := range layer.Pix {
		require.Zero(t, v)
	}
}

func TestComposite_KeepsEveryLayer(t *testing.T) {
	base := solid(200, 200, color.NRGBA{R: 20, G: 120, B: 20, A: 255})

	a := Layer(200, 200, []models.Detection{{Label: "a", Confidence: 0.5, Box: models.Box{X: 0.1, Y: 0.5, W: 0.2, H: 0.2}}}, Style{Color: Red, StrokeWidth: 2, FontSize: 10})
	b := Layer(200, 200, []models.Detection{{Label: "b", Confidence: 0.5, Box: models.Box{X: 0.6, Y: 0.5, W: 0.2, H: 0.2}}}, Style{Color: Red, StrokeWidth: 2, FontSize: 10})

	out := Composite(Composite(base, a), b)

	require.True(t, isRed(out.At(20, 100)))
	require.True(t, isRed(out.At(120, 100)))
	require.False(t, isRed(out.At(100, 180)))

	// base untouched
	require.False(t, isRed(base.At(20, 100)))
}

func TestClone_IsIndependent(t *testing.T) {
	src := solid(4, 4, color.NRGBA{B: 255, A: 255})
	dst := Clone(src)
	dst.Set(0, 0, Red)

	require.False(t, isRed(src.At(0, 0)))
	require.True(t, isRed(dst.At(0, 0)))
}
