// Package img writes rasterized pages and rewrites the resolution metadata
// stored in PNG and JPEG files.
package img

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// SavePage writes src as a PNG at dstPath and stamps it with dpi so viewers
// print it at the size it was rendered for. Missing parent directories are
// created and an existing file is replaced.
func SavePage(src image.Image, dstPath string, dpi int) error {
	dstDir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	if err := imaging.Save(src, dstPath); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if dpi > 0 {
		if err := SetImageResolution(dstPath, dpi, dpi); err != nil {
			return err
		}
	}
	return nil
}
