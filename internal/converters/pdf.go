package converters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tendant/simple-rasterizer/internal/img"
)

// PopplerRasterizer uses Poppler's pdfinfo and pdftoppm to render PDF pages
type PopplerRasterizer struct {
	pdftoppm string
	pdfinfo  string
}

// NewPopplerRasterizer creates a new Poppler-based PDF rasterizer
func NewPopplerRasterizer() *PopplerRasterizer {
	return &PopplerRasterizer{
		pdftoppm: "pdftoppm",
		pdfinfo:  "pdfinfo",
	}
}

// Name returns the backend name
func (p *PopplerRasterizer) Name() string {
	return BackendPoppler
}

// Supports returns true if this rasterizer can handle the given MIME type
func (p *PopplerRasterizer) Supports(mimeType string) bool {
	return isPDF(mimeType)
}

// PageCount returns the number of pages reported by pdfinfo
func (p *PopplerRasterizer) PageCount(ctx context.Context, documentPath string) (int, error) {
	info, err := p.Probe(ctx, documentPath)
	if err != nil {
		return 0, err
	}
	return info.Pages, nil
}

// Rasterize renders each page of documentPath at dpi, one pdftoppm call per
// page so every output lands on its final name.
func (p *PopplerRasterizer) Rasterize(ctx context.Context, documentPath string, dpi int) ([]string, error) {
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be greater than zero (got %d)", dpi)
	}

	// Check if pdftoppm is available
	if _, err := exec.LookPath(p.pdftoppm); err != nil {
		return nil, fmt.Errorf("pdftoppm not found in PATH: %w (install with: brew install poppler)", err)
	}

	pages, err := p.PageCount(ctx, documentPath)
	if err != nil {
		return nil, err
	}
	if pages == 0 {
		return nil, &DocumentError{Path: documentPath, Err: fmt.Errorf("document has no pages")}
	}

	outputs := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		output := PageImagePath(documentPath, page)
		if err := p.renderPage(ctx, documentPath, page, dpi, output); err != nil {
			return outputs, &DocumentError{Path: documentPath, Page: page, Err: err}
		}
		if err := img.SetImageResolution(output, dpi, dpi); err != nil {
			return outputs, &DocumentError{Path: documentPath, Page: page, Err: err}
		}
		outputs = append(outputs, output)
	}

	return outputs, nil
}

func (p *PopplerRasterizer) renderPage(ctx context.Context, input string, page, dpi int, output string) error {
	// pdftoppm requires output path without extension
	outputBase := strings.TrimSuffix(output, ".png")

	// -png: Output format
	// -singlefile: Don't add page numbers to the output name
	// -f N -l N: Convert page N only
	// -r: Resolution in DPI
	pageArg := strconv.Itoa(page)
	args := []string{
		"-png",
		"-singlefile",
		"-f", pageArg,
		"-l", pageArg,
		"-r", strconv.Itoa(dpi),
		input,
		outputBase,
	}

	cmd := exec.CommandContext(ctx, p.pdftoppm, args...)

	// Run command and capture output
	outputBytes, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w\nOutput: %s", err, string(outputBytes))
	}

	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("pdftoppm produced no output: %w", err)
	}
	return nil
}

// Probe returns metadata about the PDF file
func (p *PopplerRasterizer) Probe(ctx context.Context, input string) (*FileInfo, error) {
	// Use pdfinfo to get PDF metadata
	cmd := exec.CommandContext(ctx, p.pdfinfo, input)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &DocumentError{Path: input, Err: fmt.Errorf("pdfinfo failed: %w\nOutput: %s", err, string(output))}
	}

	return parsePDFInfo(string(output)), nil
}

// parsePDFInfo extracts page count, first-page size and file size from
// pdfinfo output.
func parsePDFInfo(output string) *FileInfo {
	info := &FileInfo{
		MimeType: "application/pdf",
	}

	lines := strings.Split(output, "\n")
	for _, line := range lines {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch key {
		case "Pages":
			if pages, err := strconv.Atoi(value); err == nil {
				info.Pages = pages
			}
		case "Page size":
			// Parse "595 x 842 pts" or "595 x 842 pts (A4)"
			dims := strings.Fields(value)
			if len(dims) >= 3 {
				if w, err := strconv.ParseFloat(dims[0], 64); err == nil {
					info.Width = int(w * 96 / 72) // Convert pts to pixels (96 DPI)
				}
				if h, err := strconv.ParseFloat(dims[2], 64); err == nil {
					info.Height = int(h * 96 / 72)
				}
			}
		case "File size":
			// Parse "1234567 bytes"
			dims := strings.Fields(value)
			if len(dims) >= 1 {
				if size, err := strconv.ParseInt(dims[0], 10, 64); err == nil {
					info.Size = size
				}
			}
		}
	}

	return info
}
