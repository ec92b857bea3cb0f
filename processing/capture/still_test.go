package capture

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStillDecoder_Decode(t *testing.T) {
	sd := NewStillDecoder("")
	if !sd.Available() {
		t.Skip("ffmpeg not installed")
	}

	src := image.NewRGBA(image.Rect(0, 0, 50, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 50; x++ {
			src.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img, err := sd.Decode(context.Background(), path, 64, 64)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	r, _, _, a := img.At(32, 32).RGBA()
	require.Greater(t, r>>8, uint32(150))
	require.Equal(t, uint32(0xffff), a)
}

func TestStillDecoder_BadFile(t *testing.T) {
	sd := NewStillDecoder("")
	if !sd.Available() {
		t.Skip("ffmpeg not installed")
	}

	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not media"), 0o644))

	_, err := sd.Decode(context.Background(), path, 16, 16)
	require.Error(t, err)
}

func TestStillDecoder_InvalidSize(t *testing.T) {
	_, err := NewStillDecoder("ffmpeg").Decode(context.Background(), "x.png", 0, 10)
	require.Error(t, err)
}
