package models

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxPixels(t *testing.T) {
	b := Box{X: 0.1, Y: 0.1, W: 0.2, H: 0.2}

	x1, y1, x2, y2 := b.Pixels(1280, 1280)
	require.Equal(t, 128, x1)
	require.Equal(t, 128, y1)
	require.Equal(t, 384, x2)
	require.Equal(t, 384, y2)
	require.Equal(t, image.Rect(128, 128, 384, 384), b.Rect(1280, 1280))
}

func TestDetectionCaption(t *testing.T) {
	d := Detection{Label: "cat", Confidence: 0.87}
	require.Equal(t, "cat: 0.87", d.Caption())

	d.Label = ""
	require.Equal(t, "unknown: 0.87", d.Caption())
}

func TestBoxClamp(t *testing.T) {
	b := Box{X: -0.1, Y: 0.9, W: 0.5, H: 0.3}.Clamp()
	require.InDelta(t, 0.0, b.X, 1e-9)
	require.InDelta(t, 0.4, b.W, 1e-9)
	require.InDelta(t, 0.9, b.Y, 1e-9)
	require.InDelta(t, 0.1, b.H, 1e-9)
}

func TestBoxIoU(t *testing.T) {
	a := Box{X: 0, Y: 0, W: 0.5, H: 0.5}
	require.InDelta(t, 1.0, a.IoU(a), 1e-9)
	require.Zero(t, a.IoU(Box{X: 0.6, Y: 0.6, W: 0.1, H: 0.1}))
	require.InDelta(t, 1.0/7.0, a.IoU(Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}), 1e-9)
}
