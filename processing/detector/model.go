// Package detector loads object-detection model artifacts and runs them.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"annotator/internal/config"
	"annotator/internal/models"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

const (
	ExtONNX   = ".onnx"
	ExtRemote = ".wsdet"
)

var (
	ErrLoad        = errors.New("model load failed")
	ErrUnsupported = errors.New("unsupported model artifact")
	ErrConvert     = errors.New("pixel conversion failed")
	ErrInference   = errors.New("inference failed")
)

// Model is a loaded detection model.
type Model interface {
	Name() string
	// Detect runs the model on img. Returned boxes are normalized to img.
	// Errors wrap ErrConvert or ErrInference.
	Detect(ctx context.Context, img image.Image) ([]models.Detection, error)
	Close() error
}

type Loader struct {
	cfg    *config.Config
	logger *zap.Logger

	ortOnce  sync.Once
	ortErr   error
	ortOwned bool
}

func NewLoader(cfg *config.Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{cfg: cfg, logger: logger}
}

// Extensions lists the artifact types Load understands.
func (l *Loader) Extensions() []string {
	return []string{ExtONNX, ExtRemote}
}

// Load opens the artifact at path. Every error wraps ErrLoad.
func (l *Loader) Load(path string) (Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w %s: is a directory", ErrLoad, path)
	}

	var m Model

	switch strings.ToLower(filepath.Ext(path)) {
	case ExtONNX:
		m, err = l.loadONNX(path)
	case ExtRemote:
		m, err = l.loadRemote(path)
	default:
		err = ErrUnsupported
	}

	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}

	l.logger.Info("model loaded", zap.String("model", m.Name()), zap.String("path", path))

	return m, nil
}

func (l *Loader) initRuntime() error {
	l.ortOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if lib := l.cfg.Onnx.LibraryPath; lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		l.ortErr = ort.InitializeEnvironment()
		l.ortOwned = l.ortErr == nil
	})
	return l.ortErr
}

// Close tears down the ONNX runtime environment if this loader created it.
func (l *Loader) Close() error {
	if !l.ortOwned {
		return nil
	}
	l.ortOwned = false
	return ort.DestroyEnvironment()
}

func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
