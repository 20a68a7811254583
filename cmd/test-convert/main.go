// cmd/test-convert provides a standalone CLI tool for trying a rasterization
// backend on a single document without running a batch.
//
// Usage:
//
//	./test-convert -input document.pdf
//	./test-convert -input document.pdf -dpi 300 -backend poppler
//	./test-convert -input document.pdf -probe  # Show metadata only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tendant/simple-rasterizer/internal/converters"
	"github.com/tendant/simple-rasterizer/internal/img"
)

func main() {
	input := flag.String("input", "", "Input document path (required)")
	dpi := flag.Int("dpi", 150, "Render resolution in dots per inch")
	backend := flag.String("backend", converters.BackendFitz, "Rasterization backend: fitz or poppler")
	probe := flag.Bool("probe", false, "Show document metadata only (don't render)")
	timeout := flag.Int("timeout", 120, "Conversion timeout in seconds")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	if *input == "" {
		fmt.Println("Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	inputInfo, err := os.Stat(*input)
	if err != nil {
		log.Fatalf("❌ Input file not found: %s", *input)
	}

	mimeType, err := converters.DetectMIMEType(*input)
	if err != nil {
		log.Fatalf("❌ Failed to detect file type: %v", err)
	}

	rasterizer, err := converters.GetRasterizer(*backend)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if !rasterizer.Supports(mimeType) {
		log.Fatalf("❌ Unsupported file type %s\n\nSupported formats:\n%s", mimeType, formatSupportedTypes())
	}

	if *verbose {
		fmt.Printf("📄 Input: %s (%s)\n", *input, humanize.Bytes(uint64(inputInfo.Size())))
		fmt.Printf("🔍 MIME type: %s\n", mimeType)
		fmt.Printf("🔧 Using backend: %s\n", rasterizer.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	if *probe {
		fmt.Println("\n📊 Document Metadata:")
		fmt.Println(strings.Repeat("-", 40))

		info := &converters.FileInfo{MimeType: mimeType, Size: inputInfo.Size()}
		if p, ok := rasterizer.(*converters.PopplerRasterizer); ok {
			if info, err = p.Probe(ctx, *input); err != nil {
				log.Fatalf("❌ Failed to probe file: %v", err)
			}
		} else if info.Pages, err = rasterizer.PageCount(ctx, *input); err != nil {
			log.Fatalf("❌ Failed to probe file: %v", err)
		}

		printFileInfo(info)
		return
	}

	fmt.Printf("\n🎨 Rendering pages at %d dpi...\n", *dpi)
	start := time.Now()

	outputs, err := rasterizer.Rasterize(ctx, *input, *dpi)
	if err != nil {
		log.Fatalf("❌ Conversion failed after %d pages: %v", len(outputs), err)
	}

	duration := time.Since(start)

	fmt.Printf("\n✅ Conversion successful!\n")
	fmt.Println(strings.Repeat("-", 40))
	var total uint64
	for _, output := range outputs {
		info, err := os.Stat(output)
		if err != nil {
			log.Fatalf("❌ Failed to read output file: %v", err)
		}
		total += uint64(info.Size())

		line := fmt.Sprintf("📁 %s (%s)", output, humanize.Bytes(uint64(info.Size())))
		if *verbose {
			if w, h, err := img.ImageSize(output); err == nil {
				line += fmt.Sprintf(" %dx%d px", w, h)
			}
		}
		fmt.Println(line)
	}
	fmt.Printf("📏 Pages: %d, total %s\n", len(outputs), humanize.Bytes(total))
	fmt.Printf("⏱️  Time: %v\n", duration.Round(time.Millisecond))
	if len(outputs) > 0 {
		fmt.Printf("🚀 Speed: %v/page\n", (duration / time.Duration(len(outputs))).Round(time.Millisecond))
	}

	fmt.Println()
}

// printFileInfo prints document metadata in a readable format
func printFileInfo(info *converters.FileInfo) {
	fmt.Printf("MIME Type: %s\n", info.MimeType)

	if info.Width > 0 && info.Height > 0 {
		fmt.Printf("First page: %dx%d pixels at 96 dpi\n", info.Width, info.Height)
	}

	if info.Pages > 0 {
		fmt.Printf("Pages: %d\n", info.Pages)
	}

	if info.Size > 0 {
		fmt.Printf("File Size: %s\n", humanize.Bytes(uint64(info.Size)))
	}
}

// formatSupportedTypes returns a formatted list of supported MIME types
func formatSupportedTypes() string {
	var b strings.Builder
	for _, t := range converters.SupportedMimeTypes() {
		fmt.Fprintf(&b, "  • %s\n", t)
	}
	return b.String()
}
