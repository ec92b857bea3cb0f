package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
)

const bytePerPixel = 4

// StillDecoder decodes a single frame of any file ffmpeg understands into an
// RGBA image of a fixed size. It covers formats the Go decoders do not (HEIC,
// AVIF, RAW previews, ...).
type StillDecoder struct {
	Binary string
}

func NewStillDecoder(binary string) *StillDecoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &StillDecoder{Binary: binary}
}

// Available reports whether the ffmpeg binary can be found.
func (sd *StillDecoder) Available() bool {
	_, err := exec.LookPath(sd.Binary)
	return err == nil
}

func (sd *StillDecoder) Decode(ctx context.Context, path string, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}

	cmd := exec.CommandContext(ctx, sd.Binary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	pixelData := make([]byte, width*height*bytePerPixel)
	_, readErr := io.ReadFull(stdout, pixelData)
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if readErr != nil {
		return nil, fmt.Errorf("read error: %v. Details: %s", readErr, stderr.String())
	}
	if waitErr != nil {
		return nil, fmt.Errorf("ffmpeg error: %w. Details: %s", waitErr, stderr.String())
	}

	return &image.RGBA{
		Pix:    pixelData,
		Stride: width * bytePerPixel,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}
