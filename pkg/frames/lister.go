// Package frames enumerates the frame files of a directory that are eligible for analysis.
package frames

import (
	"os"
	"path/filepath"

	"github.com/menta2k/frame-analyzer/internal/utils"
	"github.com/menta2k/frame-analyzer/pkg/types"
)

// DefaultExtensions are the accepted frame extensions when none are configured.
// Some extractors in the pipeline only write .png; narrow the list in config for those.
var DefaultExtensions = []string{".png", ".jpg"}

// Lister lists eligible frames in a directory
type Lister struct {
	extensions []string
}

// NewLister creates a lister accepting the given extensions (DefaultExtensions when empty)
func NewLister(extensions []string) *Lister {
	exts := utils.NormalizeExtensions(extensions)
	if len(exts) == 0 {
		exts = append([]string(nil), DefaultExtensions...)
	}
	return &Lister{extensions: exts}
}

// Extensions returns the accepted extensions
func (l *Lister) Extensions() []string {
	return append([]string(nil), l.extensions...)
}

// List returns the eligible frames of dir ordered by filename.
// The image contents are not opened.
func (l *Lister) List(dir string) ([]types.Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, types.NewFatal(types.FatalDirectoryNotFound, err,
			"Frames directory does not exist or is not readable: %s", dir)
	}

	frames := make([]types.Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !utils.HasExtension(entry.Name(), l.extensions) {
			continue
		}
		frames = append(frames, types.Frame{
			Path:     filepath.Join(dir, entry.Name()),
			Filename: entry.Name(),
		})
	}
	return frames, nil
}
