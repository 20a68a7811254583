// Package converters renders document pages to PNG images through pluggable
// rasterization backends (MuPDF via go-fitz, Poppler via pdftoppm).
package converters

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// BackendFitz renders with MuPDF through go-fitz.
	BackendFitz = "fitz"
	// BackendPoppler shells out to Poppler's pdfinfo and pdftoppm.
	BackendPoppler = "poppler"
)

// Rasterizer renders every page of a document to a PNG file.
type Rasterizer interface {
	// Name returns the backend name (e.g., "fitz", "poppler")
	Name() string

	// Supports returns true if this rasterizer can handle the given MIME type
	Supports(mimeType string) bool

	// PageCount returns the number of pages in the document
	PageCount(ctx context.Context, documentPath string) (int, error)

	// Rasterize renders each page at dpi and returns the written image paths
	// in page order. Images are named by PageImagePath.
	Rasterize(ctx context.Context, documentPath string, dpi int) ([]string, error)
}

// FileInfo contains metadata about a document
type FileInfo struct {
	MimeType string // MIME type detected from file
	Width    int    // Width of the first page in pixels at 96 DPI
	Height   int    // Height of the first page in pixels at 96 DPI
	Pages    int    // Number of pages
	Size     int64  // File size in bytes
}

// DocumentError reports a document that could not be opened or a page that
// could not be rendered. Page is 1-based and zero when the whole document
// failed.
type DocumentError struct {
	Path string
	Page int
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("document %s page %d: %v", e.Path, e.Page, e.Err)
	}
	return fmt.Sprintf("document %s: %v", e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// PageImagePath returns the output path for page (1-based) of documentPath:
// "{baseName}__page{N}.png" in the document's directory.
func PageImagePath(documentPath string, page int) string {
	base := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	return filepath.Join(filepath.Dir(documentPath), fmt.Sprintf("%s__page%d.png", base, page))
}

// GetRasterizer returns the rasterizer for the named backend.
func GetRasterizer(backend string) (Rasterizer, error) {
	switch strings.ToLower(backend) {
	case BackendFitz, "":
		return NewFitzRasterizer(), nil
	case BackendPoppler:
		return NewPopplerRasterizer(), nil
	default:
		return nil, fmt.Errorf("unsupported rasterizer backend: %s (supported: %s, %s)", backend, BackendFitz, BackendPoppler)
	}
}

// SupportedMimeTypes returns a list of all supported document MIME types
func SupportedMimeTypes() []string {
	return []string{
		"application/pdf",
	}
}

// DetectMIMEType detects the MIME type of a file by reading its content
func DetectMIMEType(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Read first 512 bytes for MIME detection
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && n == 0 {
		return "", err
	}

	// http.DetectContentType doesn't detect PDFs well, check magic bytes
	if n >= 4 && string(buffer[:4]) == "%PDF" {
		return "application/pdf", nil
	}

	return http.DetectContentType(buffer[:n]), nil
}

func isPDF(mimeType string) bool {
	return strings.ToLower(mimeType) == "application/pdf"
}
