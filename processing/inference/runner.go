package inference

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"annotator/internal/activity"
	"annotator/internal/models"
	"annotator/processing/annotate"
	"annotator/processing/detector"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int32

const (
	Idle State = iota
	Running
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrNoImage  = errors.New("no image selected")
	ErrNoModels = errors.New("no models loaded")
)

// Result is the outcome of one run.
type Result struct {
	ID            string
	Image         image.Image
	Contributions int
	Detections    int
	Elapsed       time.Duration
}

type contribution struct {
	layer *image.RGBA
	count int
}

// Runner runs every loaded model on an image and folds the annotation layers
// into one composite.
type Runner struct {
	style         annotate.Style
	minConfidence func() float64

	// state belongs to the most recently started run; older runs finishing
	// late do not overwrite it.
	mu     sync.Mutex
	latest uint64
	state  State

	log    *activity.Log
	logger *zap.Logger
}

// NewRunner builds a runner. minConfidence is read at the start of every run;
// nil draws everything.
func NewRunner(style annotate.Style, minConfidence func() float64, log *activity.Log, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minConfidence == nil {
		minConfidence = func() float64 { return 0 }
	}
	return &Runner{
		style:         style,
		minConfidence: minConfidence,
		log:           log,
		logger:        logger,
	}
}

// State reports the state of the most recently started run.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) begin(s State) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest++
	r.state = s
	return r.latest
}

func (r *Runner) finish(seq uint64, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq == r.latest {
		r.state = s
	}
}

// Run annotates img with every model in ms. Only a missing image or an empty
// model set fail the run; per-model conversion or inference errors skip that
// model's contribution.
func (r *Runner) Run(ctx context.Context, img image.Image, ms []detector.Model) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		r.begin(Failed)
		r.log.Appendf("No image selected for inference at %s", r.log.Stamp())
		return nil, ErrNoImage
	}
	if len(ms) == 0 {
		r.begin(Failed)
		r.log.Appendf("No models are loaded at %s", r.log.Stamp())
		return nil, ErrNoModels
	}

	seq := r.begin(Running)

	id := uuid.NewString()
	logger := r.logger.With(zap.String("run", id))
	start := time.Now()

	base := annotate.Clone(img)
	width, height := base.Bounds().Dx(), base.Bounds().Dy()
	minConf := r.minConfidence()

	logger.Info("inference started", zap.Int("models", len(ms)), zap.Float64("min_confidence", minConf))

	results := make([]*contribution, len(ms))

	var wg sync.WaitGroup
	for i, m := range ms {
		wg.Add(1)
		go func(i int, m detector.Model) {
			defer wg.Done()
			results[i] = r.runModel(ctx, logger, m, base, width, height, minConf)
		}(i, m)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.finish(seq, Failed)
		logger.Info("inference abandoned", zap.Error(err))
		return nil, err
	}

	out := &Result{ID: id, Image: base}
	for _, c := range results {
		if c == nil {
			continue
		}
		out.Image = annotate.Composite(out.Image, c.layer)
		out.Contributions++
		out.Detections += c.count
	}
	out.Elapsed = time.Since(start)

	r.finish(seq, Done)
	logger.Info("inference finished",
		zap.Int("contributions", out.Contributions),
		zap.Int("detections", out.Detections),
		zap.Duration("elapsed", out.Elapsed))

	return out, nil
}

func (r *Runner) runModel(ctx context.Context, logger *zap.Logger, m detector.Model, base image.Image, width, height int, minConf float64) *contribution {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("model panicked", zap.String("model", m.Name()), zap.Any("panic", p))
			r.log.Appendf("Request failed for %s: %v", m.Name(), p)
		}
	}()

	dets, err := m.Detect(ctx, base)
	if err != nil {
		logger.Warn("model skipped", zap.String("model", m.Name()), zap.Error(err))
		switch {
		case errors.Is(err, detector.ErrConvert):
			r.log.Appendf("PixelBuffer conversion failed for %s: %v", m.Name(), err)
		default:
			r.log.Appendf("Request failed for %s: %v", m.Name(), err)
		}
		return nil
	}

	kept := make([]models.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < minConf {
			continue
		}
		kept = append(kept, d)
		r.log.Appendf("Label: %s, Confidence: %.2f (%s)", d.DisplayLabel(), d.Confidence, m.Name())
	}

	return &contribution{
		layer: annotate.Layer(width, height, kept, r.style),
		count: len(kept),
	}
}
