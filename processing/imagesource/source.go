package imagesource

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"annotator/internal/activity"
	"annotator/internal/pick"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrDecode = errors.New("image decode failed")

// Extensions lists the image types offered in the picker.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp", ".heic", ".heif", ".avif"}

type Picker interface {
	OpenImage(ctx context.Context, extensions []string) (*pick.File, error)
}

// Fallback decodes files the registered Go decoders reject.
type Fallback interface {
	Available() bool
	Decode(ctx context.Context, path string, width, height int) (*image.RGBA, error)
}

type Source struct {
	picker   Picker
	fallback Fallback
	width    int
	height   int

	log    *activity.Log
	logger *zap.Logger
}

func New(picker Picker, fallback Fallback, width, height int, log *activity.Log, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		picker:   picker,
		fallback: fallback,
		width:    width,
		height:   height,
		log:      log,
		logger:   logger,
	}
}

// SelectAndLoad asks the user for one image and returns it at the canonical
// size. Every outcome is reported to the activity log; the bool is false when
// no image was produced.
func (s *Source) SelectAndLoad(ctx context.Context) (image.Image, bool) {
	f, err := s.picker.OpenImage(ctx, Extensions)
	if err != nil {
		if errors.Is(err, pick.ErrCancelled) {
			s.log.Appendf("Image selection cancelled at %s", s.log.Stamp())
		} else {
			s.log.Appendf("Image loading failed at %s: %v", s.log.Stamp(), err)
		}
		return nil, false
	}
	defer f.Close()

	img, err := s.load(ctx, f)
	if err != nil {
		s.logger.Warn("image load failed", zap.String("file", f.Name), zap.Error(err))
		s.log.Appendf("Image loading failed at %s: %v", s.log.Stamp(), err)
		return nil, false
	}

	s.logger.Info("image loaded", zap.String("file", f.Name), zap.String("path", f.Path))
	s.log.Appendf("Image loaded successfully at %s (%s)", s.log.Stamp(), f.Name)

	return img, true
}

func (s *Source) load(ctx context.Context, f *pick.File) (image.Image, error) {
	img, err := s.Load(f.Reader)
	if err == nil {
		return img, nil
	}

	if f.Path == "" || s.fallback == nil || !s.fallback.Available() {
		return nil, err
	}

	s.logger.Debug("falling back to ffmpeg decode", zap.String("path", f.Path), zap.Error(err))

	rgba, ffErr := s.fallback.Decode(ctx, f.Path, s.width, s.height)
	if ffErr != nil {
		return nil, fmt.Errorf("%w: %v (ffmpeg: %v)", ErrDecode, err, ffErr)
	}

	return imaging.Clone(rgba), nil
}

// Load decodes r and normalizes it to the canonical resolution.
func (s *Source) Load(r io.Reader) (img image.Image, err error) {
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("%w: decoder panic: %v", ErrDecode, p)
		}
	}()

	if r == nil {
		return nil, fmt.Errorf("%w: no data", ErrDecode)
	}

	decoded, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	s.logger.Debug("image decoded",
		zap.String("format", format),
		zap.Int("width", decoded.Bounds().Dx()),
		zap.Int("height", decoded.Bounds().Dy()))

	return Normalize(decoded, s.width, s.height), nil
}

// Normalize resizes img to width×height and returns a fresh NRGBA copy.
func Normalize(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
	}
	return imaging.Clone(img)
}
