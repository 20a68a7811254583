package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tendant/simple-rasterizer/internal/archive"
	"github.com/tendant/simple-rasterizer/internal/converters"
	"github.com/tendant/simple-rasterizer/internal/img"
)

const (
	ModeRasterize = "rasterize"
	ModeNormalize = "normalize"

	processedSuffix = "_processed.zip"
)

// normalizedName matches archives a previous normalize run already produced.
var normalizedName = regexp.MustCompile(`(?i)_\d+DPI_PNG\.zip$`)

// Converter turns one candidate file into zero or more output files. It may
// return outputs together with an error when only part of the work failed.
type Converter interface {
	Name() string
	Convert(ctx context.Context, path string) ([]string, error)
}

// Mode parameterizes a run: which files are candidates, how each is
// converted and what the repackaged archive is called.
type Mode struct {
	Name        string
	DPI         int
	Match       func(name string) bool
	Converter   Converter
	ArchiveName func(source string) string
}

// RasterizeMode renders every page of every PDF to PNG at dpi.
func RasterizeMode(r converters.Rasterizer, dpi int) Mode {
	return Mode{
		Name:        ModeRasterize,
		DPI:         dpi,
		Match:       archive.HasExt(".pdf"),
		Converter:   &rasterizeConverter{rasterizer: r, dpi: dpi},
		ArchiveName: ProcessedArchiveName,
	}
}

// NormalizeMode rewrites the resolution metadata of the images inside every
// zip it finds and bundles them into a sibling archive named for dpi.
// Inner archives are unpacked below stagingDir (the OS temp dir when empty).
func NormalizeMode(dpi int, stagingDir string) Mode {
	isZip := archive.HasExt(".zip")
	return Mode{
		Name: ModeNormalize,
		DPI:  dpi,
		Match: func(name string) bool {
			return isZip(name) && !normalizedName.MatchString(name)
		},
		Converter:   &normalizeConverter{dpi: dpi, stagingDir: stagingDir},
		ArchiveName: ProcessedArchiveName,
	}
}

// ProcessedArchiveName returns "<base>_processed.zip" beside source.
func ProcessedArchiveName(source string) string {
	return trimArchiveExt(source) + processedSuffix
}

// NormalizedArchiveName returns "<base>_<dpi>DPI_PNG.zip" beside source.
func NormalizedArchiveName(source string, dpi int) string {
	return fmt.Sprintf("%s_%dDPI_PNG.zip", trimArchiveExt(source), dpi)
}

func trimArchiveExt(path string) string {
	path = filepath.Clean(path)
	if archive.IsArchive(path) {
		return path[:len(path)-len(filepath.Ext(path))]
	}
	return path
}

type rasterizeConverter struct {
	rasterizer converters.Rasterizer
	dpi        int
}

func (c *rasterizeConverter) Name() string { return c.rasterizer.Name() }

func (c *rasterizeConverter) Convert(ctx context.Context, path string) ([]string, error) {
	return c.rasterizer.Rasterize(ctx, path, c.dpi)
}

type normalizeConverter struct {
	dpi        int
	stagingDir string
}

func (c *normalizeConverter) Name() string { return "pHYs" }

// Convert normalizes the images of one inner archive. Images that fail are
// left out of the bundle and their errors joined into the returned error.
func (c *normalizeConverter) Convert(ctx context.Context, path string) ([]string, error) {
	work, err := os.MkdirTemp(c.stagingDir, "normalize-*")
	if err != nil {
		return nil, fmt.Errorf("create working dir: %w", err)
	}
	defer os.RemoveAll(work)

	if err := archive.Extract(path, work); err != nil {
		return nil, err
	}

	images, err := archive.ListCandidates(work, archive.HasExt(".png", ".jpg", ".jpeg"))
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images found in %s", filepath.Base(path))
	}

	normalized := make(map[string]bool, len(images))
	var errs []error
	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := img.SetImageResolution(image, c.dpi, c.dpi); err != nil {
			errs = append(errs, err)
			continue
		}
		rel, err := filepath.Rel(work, image)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		normalized[filepath.ToSlash(rel)] = true
	}
	if len(normalized) == 0 {
		return nil, errors.Join(errs...)
	}

	output := NormalizedArchiveName(path, c.dpi)
	if _, err := archive.CreateArchive(output, work, func(rel string) bool { return normalized[rel] }); err != nil {
		return nil, err
	}
	return []string{output}, errors.Join(errs...)
}
