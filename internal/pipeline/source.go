// Package pipeline runs one batch conversion over a folder or a zip archive:
// discover candidates, convert each, repackage the outputs and clean up.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tendant/simple-rasterizer/internal/archive"
	"github.com/tendant/simple-rasterizer/pkg/schema"
)

// Source is the location a run reads from.
type Source struct {
	Path string
	Kind schema.SourceKind
}

// DetectSource classifies path as a folder or a zip archive.
func DetectSource(path string) (Source, error) {
	if path == "" {
		return Source{}, fmt.Errorf("source path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat source: %w", err)
	}

	// Output archives are named after the source's base name, so "." must
	// become the real directory name.
	if path, err = filepath.Abs(path); err != nil {
		return Source{}, fmt.Errorf("resolve source: %w", err)
	}
	switch {
	case info.IsDir():
		return Source{Path: path, Kind: schema.SourceFolder}, nil
	case info.Mode().IsRegular() && archive.IsArchive(path):
		return Source{Path: path, Kind: schema.SourceArchive}, nil
	default:
		return Source{}, fmt.Errorf("unsupported source %s: expected a directory or a .zip archive", path)
	}
}

func (s Source) IsArchive() bool { return s.Kind == schema.SourceArchive }
