package models

import (
	"fmt"
	"image"
	"math"
)

const UnknownLabel = "unknown"

// Box is a bounding box normalized to [0,1] of the image it was detected on,
// origin at the top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// DisplayLabel returns the label or the "unknown" sentinel.
func (d Detection) DisplayLabel() string {
	if d.Label == "" {
		return UnknownLabel
	}
	return d.Label
}

// Caption is the text drawn above the box, e.g. "cat: 0.87".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s: %.2f", d.DisplayLabel(), d.Confidence)
}

// Pixels maps the box onto a width×height frame. Both corners are inclusive.
func (b Box) Pixels(width, height int) (x1, y1, x2, y2 int) {
	w, h := float64(width), float64(height)
	x1 = int(math.Round(b.X * w))
	y1 = int(math.Round(b.Y * h))
	x2 = int(math.Round((b.X + b.W) * w))
	y2 = int(math.Round((b.Y + b.H) * h))
	return
}

func (b Box) Rect(width, height int) image.Rectangle {
	x1, y1, x2, y2 := b.Pixels(width, height)
	return image.Rect(x1, y1, x2, y2)
}

// Clamp limits the box to the unit square.
func (b Box) Clamp() Box {
	x1, y1 := clamp01(b.X), clamp01(b.Y)
	x2, y2 := clamp01(b.X+b.W), clamp01(b.Y+b.H)
	return Box{X: x1, Y: y1, W: math.Max(0, x2-x1), H: math.Max(0, y2-y1)}
}

func (b Box) Area() float64 { return b.W * b.H }

// IoU is the intersection-over-union of two boxes.
func (b Box) IoU(o Box) float64 {
	ix1, iy1 := math.Max(b.X, o.X), math.Max(b.Y, o.Y)
	ix2, iy2 := math.Min(b.X+b.W, o.X+o.W), math.Min(b.Y+b.H, o.Y+o.H)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
