package img

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func createTestImage(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: 50, A: 255})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	if strings.HasSuffix(path, ".jpg") {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		_ = f.Close()
		t.Fatalf("encode: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func decodePixels(t *testing.T, path string) []byte {
	t.Helper()
	src, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return imaging.Clone(src).Pix
}

func TestSetImageResolutionPNG(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "page.png")
	createTestImage(t, path, 40, 20)

	before := decodePixels(t, path)

	if err := SetImageResolution(path, 600, 600); err != nil {
		t.Fatalf("SetImageResolution returned error: %v", err)
	}

	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatalf("ReadResolution returned error: %v", err)
	}
	if h != 600 || v != 600 {
		t.Fatalf("unexpected resolution: got %dx%d, want 600x600", h, v)
	}

	if after := decodePixels(t, path); !bytes.Equal(before, after) {
		t.Fatal("pixel data changed after normalization")
	}
}

func TestSetImageResolutionKeepsIDATBytes(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "page.png")
	createTestImage(t, path, 16, 16)

	orig, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := SetImageResolution(path, 300, 150); err != nil {
		t.Fatalf("SetImageResolution returned error: %v", err)
	}
	updated, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := idat(t, updated), idat(t, orig); !bytes.Equal(got, want) {
		t.Fatal("IDAT chunk bytes differ after normalization")
	}
	if len(updated) != len(orig)+21 {
		t.Fatalf("expected exactly one pHYs chunk added: before %d bytes, after %d", len(orig), len(updated))
	}
}

func TestSetImageResolutionReplacesExistingPHYs(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "page.png")
	createTestImage(t, path, 8, 8)

	for _, dpi := range []int{72, 600, 100} {
		if err := SetImageResolution(path, dpi, dpi); err != nil {
			t.Fatalf("SetImageResolution(%d) returned error: %v", dpi, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	chunks, _, err := parsePNG(data)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, c := range chunks {
		if c.typ == "pHYs" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one pHYs chunk, found %d", count)
	}

	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatal(err)
	}
	if h != 100 || v != 100 {
		t.Fatalf("unexpected resolution: got %dx%d, want 100x100", h, v)
	}
}

func TestSetImageResolutionKeepsTrailingBytes(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "padded.png")
	createTestImage(t, path, 8, 8)

	padding := bytes.Repeat([]byte{0}, 16)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(padding); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if err := SetImageResolution(path, 600, 600); err != nil {
		t.Fatalf("SetImageResolution returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, append([]byte("IEND\xaeB`\x82"), padding...)) {
		t.Fatal("bytes after IEND were not preserved")
	}
	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatalf("ReadResolution returned error: %v", err)
	}
	if h != 600 || v != 600 {
		t.Fatalf("unexpected resolution: got %dx%d, want 600x600", h, v)
	}
}

func TestSetImageResolutionRejectsOversizedPNGDensity(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "page.png")
	createTestImage(t, path, 4, 4)

	err := SetImageResolution(path, maxPNGDPI+1, 600)
	var imgErr *ImageError
	if !errors.As(err, &imgErr) {
		t.Fatalf("expected ImageError, got %T: %v", err, err)
	}

	if err := SetImageResolution(path, maxPNGDPI, maxPNGDPI); err != nil {
		t.Fatalf("largest representable dpi rejected: %v", err)
	}
	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatal(err)
	}
	if h != maxPNGDPI || v != maxPNGDPI {
		t.Fatalf("pHYs density wrapped: got %dx%d, want %d", h, v, maxPNGDPI)
	}
}

func TestSetImageResolutionJPEG(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "photo.jpg")
	createTestImage(t, path, 32, 24)

	before := decodePixels(t, path)

	if err := SetImageResolution(path, 300, 300); err != nil {
		t.Fatalf("SetImageResolution returned error: %v", err)
	}
	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatal(err)
	}
	if h != 300 || v != 300 {
		t.Fatalf("unexpected resolution: got %dx%d, want 300x300", h, v)
	}

	// A second pass rewrites the JFIF segment in place.
	if err := SetImageResolution(path, 96, 72); err != nil {
		t.Fatalf("SetImageResolution returned error: %v", err)
	}
	h, v, err = ReadResolution(path)
	if err != nil {
		t.Fatal(err)
	}
	if h != 96 || v != 72 {
		t.Fatalf("unexpected resolution: got %dx%d, want 96x72", h, v)
	}

	if after := decodePixels(t, path); !bytes.Equal(before, after) {
		t.Fatal("pixel data changed after normalization")
	}
}

func TestSetImageResolutionCorruptImage(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "broken.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nnot really"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := SetImageResolution(path, 600, 600)
	if err == nil {
		t.Fatal("expected error for corrupt image")
	}
	var imgErr *ImageError
	if !errors.As(err, &imgErr) {
		t.Fatalf("expected ImageError, got %T: %v", err, err)
	}
	if imgErr.Path != path {
		t.Fatalf("unexpected error path: %s", imgErr.Path)
	}
}

func TestSetImageResolutionMissingFile(t *testing.T) {
	err := SetImageResolution(filepath.Join(t.TempDir(), "missing.png"), 600, 600)
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestSetImageResolutionRejectsNonPositiveDPI(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "page.png")
	createTestImage(t, path, 4, 4)

	if err := SetImageResolution(path, 0, 600); err == nil {
		t.Fatal("expected error for zero dpi")
	}
}

func TestReadResolutionWithoutMetadata(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "plain.png")
	createTestImage(t, path, 4, 4)

	h, v, err := ReadResolution(path)
	if err != nil {
		t.Fatalf("ReadResolution returned error: %v", err)
	}
	if h != 0 || v != 0 {
		t.Fatalf("expected no resolution, got %dx%d", h, v)
	}
}

func TestSavePage(t *testing.T) {
	tmp := t.TempDir()
	dst := filepath.Join(tmp, "nested", "doc__page1.png")

	src := image.NewGray(image.Rect(0, 0, 10, 5))
	if err := SavePage(src, dst, 150); err != nil {
		t.Fatalf("SavePage returned error: %v", err)
	}

	w, h, err := ImageSize(dst)
	if err != nil {
		t.Fatalf("ImageSize returned error: %v", err)
	}
	if w != 10 || h != 5 {
		t.Fatalf("unexpected size: got %dx%d, want 10x5", w, h)
	}

	hd, vd, err := ReadResolution(dst)
	if err != nil {
		t.Fatal(err)
	}
	if hd != 150 || vd != 150 {
		t.Fatalf("unexpected resolution: got %dx%d, want 150x150", hd, vd)
	}
}

func idat(t *testing.T, data []byte) []byte {
	t.Helper()
	chunks, _, err := parsePNG(data)
	if err != nil {
		t.Fatalf("parse png: %v", err)
	}
	var out []byte
	for _, c := range chunks {
		if c.typ == "IDAT" {
			out = append(out, c.raw...)
		}
	}
	return out
}
