package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/require"
)

func uris(paths ...string) []fyne.URI {
	out := make([]fyne.URI, len(paths))
	for i, p := range paths {
		out[i] = storage.NewFileURI(p)
	}
	return out
}

func TestModelCandidates(t *testing.T) {
	in := uris("/m/yolo.onnx", "/m/readme.md", "/m/EDGE.WSDET", "/m/alpha.onnx", "/m/yolo.yaml")

	got := modelCandidates(in, []string{".onnx", ".wsdet"})

	names := make([]string, len(got))
	for i, u := range got {
		names[i] = u.Name()
	}
	require.Equal(t, []string{"EDGE.WSDET", "alpha.onnx", "yolo.onnx"}, names)
	require.Empty(t, modelCandidates(uris("/m/a.txt"), []string{".onnx"}))
}

func TestSelectedPaths_KeepsListingOrder(t *testing.T) {
	found := uris("/m/a.onnx", "/m/b.onnx", "/m/c.onnx")

	require.Equal(t, []string{"/m/a.onnx", "/m/c.onnx"}, selectedPaths(found, []string{"c.onnx", "a.onnx"}))
	require.Empty(t, selectedPaths(found, nil))
}

func TestVariantTheme(t *testing.T) {
	dark := newVariantTheme(true)
	light := newVariantTheme(false)
	def := theme.DefaultTheme()

	require.Equal(t,
		def.Color(theme.ColorNameBackground, theme.VariantDark),
		dark.Color(theme.ColorNameBackground, theme.VariantLight))
	require.Equal(t,
		def.Color(theme.ColorNameBackground, theme.VariantLight),
		light.Color(theme.ColorNameBackground, theme.VariantDark))

	require.Equal(t, "Switch to Light Mode", themeToggleText(true))
	require.Equal(t, "Switch to Dark Mode", themeToggleText(false))
}

func TestWithUpper(t *testing.T) {
	require.Equal(t, []string{".png", ".PNG", ".jpg", ".JPG"}, withUpper([]string{".png", ".jpg"}))
}
