// Package workspace ties the image source, the model catalog and the
// inference runner to the single image the window shows.
package workspace

import (
	"context"
	"errors"
	"image"
	"sync"

	"annotator/internal/activity"
	"annotator/processing/detector"
	"annotator/processing/inference"

	"go.uber.org/zap"
)

var (
	// ErrStale is returned for a run superseded by a newer image, model set
	// or run.
	ErrStale  = errors.New("inference result is stale")
	ErrClosed = errors.New("workspace closed")
)

const msgClosed = "Application is shutting down"

type ImageSource interface {
	SelectAndLoad(ctx context.Context) (image.Image, bool)
}

type ModelCatalog interface {
	SelectAndLoad(ctx context.Context) (int, string)
	Models() []detector.Model
	Close() error
}

type Runner interface {
	Run(ctx context.Context, img image.Image, ms []detector.Model) (*inference.Result, error)
}

type Workspace struct {
	source  ImageSource
	catalog ModelCatalog
	runner  Runner

	mu         sync.Mutex
	image      image.Image
	generation uint64
	cancelRun  context.CancelFunc
	closed     bool

	// held shared by runs, exclusively while the model set is replaced
	modelsMu sync.RWMutex

	log    *activity.Log
	logger *zap.Logger
}

func New(source ImageSource, catalog ModelCatalog, runner Runner, log *activity.Log, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		source:  source,
		catalog: catalog,
		runner:  runner,
		log:     log,
		logger:  logger,
	}
}

// Image returns the image currently on display, nil before the first load.
func (w *Workspace) Image() image.Image {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.image
}

func (w *Workspace) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation
}

// SelectImage replaces the current image. The previous image is kept when
// the user cancels or the file cannot be decoded.
func (w *Workspace) SelectImage(ctx context.Context) (image.Image, bool) {
	img, ok := w.source.SelectAndLoad(ctx)
	if !ok {
		return nil, false
	}

	w.mu.Lock()
	w.supersedeLocked()
	w.image = img
	w.mu.Unlock()

	return img, true
}

// SelectModels replaces the model set. Any run in flight is abandoned first
// and the old models are released only after it has returned.
func (w *Workspace) SelectModels(ctx context.Context) (int, string) {
	w.mu.Lock()
	w.supersedeLocked()
	w.mu.Unlock()

	w.modelsMu.Lock()
	defer w.modelsMu.Unlock()

	if w.isClosed() {
		return 0, msgClosed
	}

	return w.catalog.SelectAndLoad(ctx)
}

// RunInference annotates the current image with every loaded model and makes
// the result the current image.
func (w *Workspace) RunInference(ctx context.Context) (*inference.Result, error) {
	w.modelsMu.RLock()
	defer w.modelsMu.RUnlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	w.supersedeLocked()
	gen := w.generation
	img := w.image
	runCtx, cancel := context.WithCancel(ctx)
	w.cancelRun = cancel
	w.mu.Unlock()

	defer cancel()

	res, err := w.runner.Run(runCtx, img, w.catalog.Models())

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		w.logger.Info("stale inference discarded", zap.Uint64("generation", gen), zap.Uint64("current", w.generation))
		w.log.Append("Discarded stale inference result")
		return nil, ErrStale
	}
	w.cancelRun = nil

	if err != nil {
		if !errors.Is(err, inference.ErrNoImage) {
			w.log.Appendf("Inference failed at %s", w.log.Stamp())
		}
		return nil, err
	}

	w.image = res.Image
	w.log.Appendf("Inference completed successfully at %s", w.log.Stamp())

	return res, nil
}

// Close abandons any run in flight, waits for it to return and releases the
// loaded models. Later actions fail with ErrClosed. Safe to call twice.
func (w *Workspace) Close() error {
	w.mu.Lock()
	w.supersedeLocked()
	already := w.closed
	w.closed = true
	w.mu.Unlock()

	w.modelsMu.Lock()
	defer w.modelsMu.Unlock()

	if already {
		return nil
	}

	w.logger.Info("releasing models")
	return w.catalog.Close()
}

func (w *Workspace) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Workspace) supersedeLocked() {
	w.generation++
	if w.cancelRun != nil {
		w.cancelRun()
		w.cancelRun = nil
	}
}
