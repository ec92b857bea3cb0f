// Package catalog keeps the set of loaded detection models.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"annotator/internal/activity"
	"annotator/internal/pick"
	"annotator/processing/detector"

	"go.uber.org/zap"
)

const (
	MsgCancelled  = "Model selection was cancelled"
	MsgPickFailed = "Model selection failed"
	MsgNoneChosen = "No models were selected"
	MsgLoadFailed = "Failed to load one or more models"
)

type Picker interface {
	// OpenModels returns the chosen artifact paths in selection order, or
	// pick.ErrCancelled.
	OpenModels(ctx context.Context, extensions []string) ([]string, error)
}

type Loader interface {
	Extensions() []string
	Load(path string) (detector.Model, error)
}

// Catalog is an ordered model collection. It is either empty or made only of
// successfully loaded models.
type Catalog struct {
	picker Picker
	loader Loader

	mu      sync.RWMutex
	models  []detector.Model
	version uint64

	log    *activity.Log
	logger *zap.Logger
}

func New(picker Picker, loader Loader, log *activity.Log, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		picker: picker,
		loader: loader,
		log:    log,
		logger: logger,
	}
}

// SelectAndLoad asks for model artifacts and replaces the collection with
// them. A cancelled or failed dialog keeps the previous set. After the dialog
// is confirmed the previous set is released even if the new batch fails.
func (c *Catalog) SelectAndLoad(ctx context.Context) (int, string) {
	paths, err := c.picker.OpenModels(ctx, c.loader.Extensions())
	if err != nil {
		if errors.Is(err, pick.ErrCancelled) {
			c.log.Append(MsgCancelled)
			return c.Len(), MsgCancelled
		}
		c.logger.Warn("model picker failed", zap.Error(err))
		c.log.Appendf("%s: %v", MsgPickFailed, err)
		return c.Len(), MsgPickFailed
	}

	c.replace(nil)

	if len(paths) == 0 {
		c.log.Append(MsgNoneChosen)
		return 0, MsgNoneChosen
	}

	batch := make([]detector.Model, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			closeAll(c.logger, batch)
			c.log.Append(MsgLoadFailed)
			return 0, MsgLoadFailed
		}

		m, err := c.loader.Load(path)
		if err != nil {
			c.logger.Error("model load failed", zap.String("path", path), zap.Error(err))
			c.log.Appendf("Failed to load model from %s: %v", path, err)
			closeAll(c.logger, batch)
			c.log.Append(MsgLoadFailed)
			return 0, MsgLoadFailed
		}
		batch = append(batch, m)
	}

	c.replace(batch)

	msg := fmt.Sprintf("Successfully loaded %d models", len(batch))
	c.log.Append(msg)

	return len(batch), msg
}

// Models returns a snapshot of the collection in selection order.
func (c *Catalog) Models() []detector.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]detector.Model, len(c.models))
	copy(out, c.models)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Version changes every time the collection is replaced.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Close releases every loaded model.
func (c *Catalog) Close() error {
	c.replace(nil)
	return nil
}

func (c *Catalog) replace(next []detector.Model) {
	c.mu.Lock()
	prev := c.models
	c.models = next
	c.version++
	c.mu.Unlock()

	closeAll(c.logger, prev)
}

func closeAll(logger *zap.Logger, ms []detector.Model) {
	for _, m := range ms {
		if err := m.Close(); err != nil {
			logger.Warn("model close failed", zap.String("model", m.Name()), zap.Error(err))
		}
	}
}
