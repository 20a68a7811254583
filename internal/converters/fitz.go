package converters

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"github.com/tendant/simple-rasterizer/internal/img"
)

// FitzRasterizer renders PDF pages with MuPDF through go-fitz.
type FitzRasterizer struct{}

// NewFitzRasterizer creates a MuPDF-backed rasterizer
func NewFitzRasterizer() *FitzRasterizer {
	return &FitzRasterizer{}
}

// Name returns the backend name
func (f *FitzRasterizer) Name() string {
	return BackendFitz
}

// Supports returns true if this rasterizer can handle the given MIME type
func (f *FitzRasterizer) Supports(mimeType string) bool {
	return isPDF(mimeType)
}

// PageCount opens the document and returns its number of pages
func (f *FitzRasterizer) PageCount(ctx context.Context, documentPath string) (int, error) {
	doc, err := fitz.New(documentPath)
	if err != nil {
		return 0, &DocumentError{Path: documentPath, Err: fmt.Errorf("open: %w", err)}
	}
	defer doc.Close()

	return doc.NumPage(), nil
}

// Rasterize renders every page of documentPath at dpi.
func (f *FitzRasterizer) Rasterize(ctx context.Context, documentPath string, dpi int) ([]string, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be greater than zero (got %d)", dpi)
	}

	doc, err := fitz.New(documentPath)
	if err != nil {
		return nil, &DocumentError{Path: documentPath, Err: fmt.Errorf("open: %w", err)}
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages <= 0 {
		return nil, &DocumentError{Path: documentPath, Err: fmt.Errorf("document has no pages")}
	}

	outputs := make([]string, 0, numPages)
	for n := 0; n < numPages; n++ {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}

		page, err := doc.ImageDPI(n, float64(dpi))
		if err != nil {
			return outputs, &DocumentError{Path: documentPath, Page: n + 1, Err: fmt.Errorf("render: %w", err)}
		}

		outputPath := PageImagePath(documentPath, n+1)
		if err := img.SavePage(page, outputPath, dpi); err != nil {
			return outputs, &DocumentError{Path: documentPath, Page: n + 1, Err: err}
		}
		outputs = append(outputs, outputPath)
	}

	return outputs, nil
}
