package catalog

import (
	"context"
	"errors"
	"image"
	"testing"

	"annotator/internal/activity"
	"annotator/internal/models"
	"annotator/internal/pick"
	"annotator/processing/detector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPicker struct {
	paths []string
	err   error
}

func (p *stubPicker) OpenModels(context.Context, []string) ([]string, error) {
	return p.paths, p.err
}

type stubModel struct {
	name   string
	closed bool
}

func (m *stubModel) Name() string { return m.name }
func (m *stubModel) Detect(context.Context, image.Image) ([]models.Detection, error) {
	return nil, nil
}
func (m *stubModel) Close() error {
	m.closed = true
	return nil
}

type stubLoader struct {
	fail   map[string]bool
	loaded []*stubModel
	calls  []string
}

func (l *stubLoader) Extensions() []string { return []string{".onnx"} }

func (l *stubLoader) Load(path string) (detector.Model, error) {
	l.calls = append(l.calls, path)
	if l.fail[path] {
		return nil, errors.New("corrupt artifact")
	}
	m := &stubModel{name: path}
	l.loaded = append(l.loaded, m)
	return m, nil
}

func names(ms []detector.Model) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name()
	}
	return out
}

func TestSelectAndLoad_Success(t *testing.T) {
	log := activity.New(0, nil)
	c := New(&stubPicker{paths: []string{"a.onnx", "b.onnx"}}, &stubLoader{}, log, nil)

	n, msg := c.SelectAndLoad(context.Background())
	require.Equal(t, 2, n)
	require.Equal(t, "Successfully loaded 2 models", msg)
	require.Equal(t, []string{"a.onnx", "b.onnx"}, names(c.Models()))
	require.Equal(t, []string{msg}, log.Snapshot())
}

func TestSelectAndLoad_CancelKeepsPriorSet(t *testing.T) {
	picker := &stubPicker{paths: []string{"a.onnx"}}
	loader := &stubLoader{}
	c := New(picker, loader, activity.New(0, nil), nil)

	_, _ = c.SelectAndLoad(context.Background())
	version := c.Version()

	picker.err = pick.ErrCancelled
	n, msg := c.SelectAndLoad(context.Background())
	require.Equal(t, MsgCancelled, msg)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"a.onnx"}, names(c.Models()))
	require.Equal(t, version, c.Version())
	require.False(t, loader.loaded[0].closed)
}

func TestSelectAndLoad_PickerFailureIsNotCancel(t *testing.T) {
	log := activity.New(0, nil)
	picker := &stubPicker{paths: []string{"a.onnx"}}
	loader := &stubLoader{}
	c := New(picker, loader, log, nil)
	_, _ = c.SelectAndLoad(context.Background())
	log.Clear()

	picker.err = errors.New("permission denied")
	n, msg := c.SelectAndLoad(context.Background())
	require.Equal(t, MsgPickFailed, msg)
	require.Equal(t, 1, n)
	require.False(t, loader.loaded[0].closed)

	entries := log.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "Model selection failed: permission denied", entries[0])
	assert.NotContains(t, entries[0], "cancelled")

	picker.err = context.Canceled
	_, msg = c.SelectAndLoad(context.Background())
	require.Equal(t, MsgPickFailed, msg)
}

func TestSelectAndLoad_EmptySelection(t *testing.T) {
	picker := &stubPicker{paths: []string{"a.onnx"}}
	loader := &stubLoader{}
	c := New(picker, loader, activity.New(0, nil), nil)
	_, _ = c.SelectAndLoad(context.Background())

	picker.paths = nil
	n, msg := c.SelectAndLoad(context.Background())
	require.Zero(t, n)
	require.Equal(t, MsgNoneChosen, msg)
	require.NotEqual(t, MsgCancelled, msg)
	require.Empty(t, c.Models())
	require.True(t, loader.loaded[0].closed)
}

func TestSelectAndLoad_FailureDiscardsBatch(t *testing.T) {
	log := activity.New(0, nil)
	loader := &stubLoader{fail: map[string]bool{"b.onnx": true}}
	c := New(&stubPicker{paths: []string{"a.onnx", "b.onnx", "c.onnx"}}, loader, log, nil)

	n, msg := c.SelectAndLoad(context.Background())
	require.Zero(t, n)
	require.Equal(t, MsgLoadFailed, msg)
	require.Empty(t, c.Models())

	// c.onnx is never attempted and a.onnx is released
	require.Equal(t, []string{"a.onnx", "b.onnx"}, loader.calls)
	require.True(t, loader.loaded[0].closed)

	entries := log.Snapshot()
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], "Failed to load model from b.onnx")
	assert.Contains(t, entries[0], "corrupt artifact")
	assert.Equal(t, MsgLoadFailed, entries[1])
}

func TestSelectAndLoad_ReplacesPriorSet(t *testing.T) {
	picker := &stubPicker{paths: []string{"a.onnx"}}
	loader := &stubLoader{}
	c := New(picker, loader, activity.New(0, nil), nil)
	_, _ = c.SelectAndLoad(context.Background())

	picker.paths = []string{"b.onnx", "c.onnx"}
	n, _ := c.SelectAndLoad(context.Background())
	require.Equal(t, 2, n)
	require.Equal(t, []string{"b.onnx", "c.onnx"}, names(c.Models()))
	require.True(t, loader.loaded[0].closed)
}

func TestClose(t *testing.T) {
	loader := &stubLoader{}
	c := New(&stubPicker{paths: []string{"a.onnx", "b.onnx"}}, loader, activity.New(0, nil), nil)
	_, _ = c.SelectAndLoad(context.Background())

	require.NoError(t, c.Close())
	require.Zero(t, c.Len())
	for _, m := range loader.loaded {
		require.True(t, m.closed)
	}
}

func TestModels_IsSnapshot(t *testing.T) {
	c := New(&stubPicker{paths: []string{"a.onnx"}}, &stubLoader{}, activity.New(0, nil), nil)
	_, _ = c.SelectAndLoad(context.Background())

	ms := c.Models()
	ms[0] = nil
	require.NotNil(t, c.Models()[0])
}
