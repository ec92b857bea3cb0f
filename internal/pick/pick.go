// Package pick describes what the native file dialogs hand back.
package pick

import (
	"errors"
	"io"
)

// ErrCancelled means the user dismissed the dialog without choosing.
var ErrCancelled = errors.New("selection cancelled")

// File is a user-chosen file. Path is empty when the file has no local path.
type File struct {
	Name   string
	Path   string
	Reader io.ReadCloser
}

func (f *File) Close() error {
	if f == nil || f.Reader == nil {
		return nil
	}
	return f.Reader.Close()
}
