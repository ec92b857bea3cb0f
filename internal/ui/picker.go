package ui

import (
	"context"
	"sort"
	"strings"

	"annotator/internal/pick"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

// Picker shows the native fyne dialogs. Its methods block the calling
// goroutine, so they must not be called from the UI goroutine.
type Picker struct {
	win    fyne.Window
	logger *zap.Logger
}

func NewPicker(win fyne.Window, logger *zap.Logger) *Picker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Picker{win: win, logger: logger}
}

type fileResult struct {
	file *pick.File
	err  error
}

func (p *Picker) OpenImage(ctx context.Context, extensions []string) (*pick.File, error) {
	ch := make(chan fileResult, 1)

	fyne.Do(func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			switch {
			case err != nil:
				ch <- fileResult{err: err}
			case r == nil:
				ch <- fileResult{err: pick.ErrCancelled}
			default:
				ch <- fileResult{file: uriFile(r)}
			}
		}, p.win)
		d.SetFilter(storage.NewExtensionFileFilter(withUpper(extensions)))
		d.Show()
	})

	select {
	case res := <-ch:
		return res.file, res.err
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.file != nil {
				_ = res.file.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func uriFile(r fyne.URIReadCloser) *pick.File {
	f := &pick.File{Name: r.URI().Name(), Reader: r}
	if r.URI().Scheme() == "file" {
		f.Path = r.URI().Path()
	}
	return f
}

type pathsResult struct {
	paths []string
	err   error
}

// OpenModels asks for a folder, then lets the user untick artifacts found in
// it. Every artifact starts checked.
func (p *Picker) OpenModels(ctx context.Context, extensions []string) ([]string, error) {
	ch := make(chan pathsResult, 1)

	fyne.Do(func() {
		dialog.ShowFolderOpen(func(dir fyne.ListableURI, err error) {
			if err != nil {
				ch <- pathsResult{err: err}
				return
			}
			if dir == nil {
				ch <- pathsResult{err: pick.ErrCancelled}
				return
			}

			children, err := dir.List()
			if err != nil {
				ch <- pathsResult{err: err}
				return
			}

			found := modelCandidates(children, extensions)
			p.logger.Debug("model folder listed", zap.String("dir", dir.String()), zap.Int("artifacts", len(found)))

			if len(found) == 0 {
				ch <- pathsResult{}
				return
			}
			p.confirmModels(found, ch)
		}, p.win)
	})

	select {
	case res := <-ch:
		return res.paths, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Picker) confirmModels(found []fyne.URI, ch chan<- pathsResult) {
	names := make([]string, len(found))
	for i, u := range found {
		names[i] = u.Name()
	}

	check := widget.NewCheckGroup(names, nil)
	check.SetSelected(names)

	scroll := container.NewVScroll(check)
	scroll.SetMinSize(fyne.NewSize(360, 240))

	dialog.ShowCustomConfirm("Select Models", "Load", "Cancel", scroll, func(ok bool) {
		if !ok {
			ch <- pathsResult{err: pick.ErrCancelled}
			return
		}
		ch <- pathsResult{paths: selectedPaths(found, check.Selected)}
	}, p.win)
}

// modelCandidates keeps the files whose extension is in extensions, sorted
// by name.
func modelCandidates(uris []fyne.URI, extensions []string) []fyne.URI {
	var out []fyne.URI
	for _, u := range uris {
		for _, ext := range extensions {
			if strings.EqualFold(u.Extension(), ext) {
				out = append(out, u)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// selectedPaths returns the paths of the checked candidates in listing order,
// independent of the order they were ticked in.
func selectedPaths(found []fyne.URI, checked []string) []string {
	on := make(map[string]bool, len(checked))
	for _, name := range checked {
		on[name] = true
	}

	paths := make([]string, 0, len(checked))
	for _, u := range found {
		if on[u.Name()] {
			paths = append(paths, u.Path())
		}
	}
	return paths
}

func withUpper(extensions []string) []string {
	out := make([]string, 0, 2*len(extensions))
	for _, ext := range extensions {
		out = append(out, ext, strings.ToUpper(ext))
	}
	return out
}
