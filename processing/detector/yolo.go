package detector

import (
	"fmt"
	"image"
	"sort"

	"annotator/internal/models"

	"github.com/nfnt/resize"
)

type yoloParams struct {
	inW, inH   int
	labels     []string
	confidence float32
	iou        float64
}

type candidate struct {
	class int
	det   models.Detection
}

// decodeYOLO turns a [1, 4+C, N] (or transposed [1, N, 4+C]) output tensor
// with center-format boxes in input pixels into normalized detections.
func decodeYOLO(data []float32, shape []int64, p yoloParams) ([]models.Detection, error) {
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}

	rows, cols := int(shape[1]), int(shape[2])
	attrs, count := rows, cols
	channelMajor := true

	// A known class count fixes the layout; otherwise anchors outnumber
	// attributes.
	switch want := 4 + len(p.labels); {
	case len(p.labels) > 0 && rows == want:
	case len(p.labels) > 0 && cols == want:
		attrs, count = cols, rows
		channelMajor = false
	case rows > cols:
		attrs, count = cols, rows
		channelMajor = false
	}

	if attrs < 5 {
		return nil, fmt.Errorf("output shape %v has no class scores", shape)
	}
	if len(data) < attrs*count {
		return nil, fmt.Errorf("output holds %d values, shape %v needs %d", len(data), shape, attrs*count)
	}

	at := func(i, a int) float32 {
		if channelMajor {
			return data[a*count+i]
		}
		return data[i*attrs+a]
	}

	inW, inH := float64(p.inW), float64(p.inH)
	var cands []candidate

	for i := 0; i < count; i++ {
		class, prob := -1, float32(-1)
		for a := 4; a < attrs; a++ {
			if s := at(i, a); s > prob {
				prob = s
				class = a - 4
			}
		}

		if prob < p.confidence {
			continue
		}

		cx, cy := float64(at(i, 0)), float64(at(i, 1))
		w, h := float64(at(i, 2)), float64(at(i, 3))

		box := models.Box{
			X: (cx - w/2) / inW,
			Y: (cy - h/2) / inH,
			W: w / inW,
			H: h / inH,
		}.Clamp()

		label := ""
		if class < len(p.labels) {
			label = p.labels[class]
		}

		cands = append(cands, candidate{
			class: class,
			det: models.Detection{
				Label:      label,
				Confidence: float64(prob),
				Box:        box,
			},
		})
	}

	return nonMaxSuppression(cands, p.iou), nil
}

// nonMaxSuppression keeps the highest-confidence box of each overlapping
// same-class cluster.
func nonMaxSuppression(cands []candidate, iou float64) []models.Detection {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].det.Confidence > cands[j].det.Confidence
	})

	kept := make([]candidate, 0, len(cands))
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if k.class == c.class && k.det.Box.IoU(c.det.Box) > iou {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}

	out := make([]models.Detection, len(kept))
	for i, k := range kept {
		out[i] = k.det
	}
	return out
}

// toCHW resizes img to w×h and lays it out as planar RGB floats in [0,1].
func toCHW(img image.Image, w, h int) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", w, h)
	}

	resized := resize.Resize(uint(w), uint(h), img, resize.Bilinear)
	b := resized.Bounds()

	plane := w * h
	out := make([]float32, 3*plane)
	idx := 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[idx] = float32(r>>8) / 255.0
			out[idx+plane] = float32(g>>8) / 255.0
			out[idx+2*plane] = float32(bl>>8) / 255.0
			idx++
		}
	}

	return out, nil
}
