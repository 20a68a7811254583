package img

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const inchesPerMetre = 1 / 0.0254

// maxPNGDPI is the largest density whose pixels-per-metre fits in pHYs.
var maxPNGDPI = int(math.Floor(math.MaxUint32 / inchesPerMetre))

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	jfifIdent    = []byte("JFIF\x00")

	// ErrUnsupportedFormat is returned for images that are neither PNG nor JPEG.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// ImageError reports an image that could not be read, understood or written.
type ImageError struct {
	Path string
	Op   string
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// SetImageResolution rewrites the resolution metadata stored in the PNG or
// JPEG at path. Pixel data is copied through untouched; only the pHYs chunk
// (PNG) or the JFIF density fields (JPEG) change.
func SetImageResolution(path string, hDPI, vDPI int) error {
	if hDPI <= 0 || vDPI <= 0 {
		return &ImageError{Path: path, Op: "set resolution", Err: fmt.Errorf("dpi must be positive (got %dx%d)", hDPI, vDPI)}
	}

	if _, err := imaging.Open(path); err != nil {
		return &ImageError{Path: path, Op: "open", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return &ImageError{Path: path, Op: "read", Err: err}
	}

	var out []byte
	switch {
	case bytes.HasPrefix(data, pngSignature):
		out, err = setPNGResolution(data, hDPI, vDPI)
	case isJPEG(data):
		out, err = setJPEGResolution(data, hDPI, vDPI)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return &ImageError{Path: path, Op: "set resolution", Err: err}
	}

	if err := writeFileAtomic(path, out); err != nil {
		return &ImageError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// ReadResolution returns the horizontal and vertical DPI stored in the image
// at path, or 0, 0 when the file carries no resolution metadata.
func ReadResolution(path string) (hDPI, vDPI int, _ error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, &ImageError{Path: path, Op: "read", Err: err}
	}

	switch {
	case bytes.HasPrefix(data, pngSignature):
		hDPI, vDPI, err = readPNGResolution(data)
	case isJPEG(data):
		hDPI, vDPI, err = readJPEGResolution(data)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return 0, 0, &ImageError{Path: path, Op: "read resolution", Err: err}
	}
	return hDPI, vDPI, nil
}

// ImageSize returns the pixel dimensions of the image at path.
func ImageSize(path string) (w int, h int, _ error) {
	src, err := imaging.Open(path)
	if err != nil {
		return 0, 0, &ImageError{Path: path, Op: "open", Err: err}
	}
	b := src.Bounds()
	return b.Dx(), b.Dy(), nil
}

type pngChunk struct {
	typ  string
	data []byte
	raw  []byte // length + type + data + crc, as read
}

// parsePNG splits data into chunks up to and including IEND. Bytes after
// IEND are returned as trailer so they can be written back unchanged.
func parsePNG(data []byte) (chunks []pngChunk, trailer []byte, _ error) {
	rest := data[len(pngSignature):]
	for len(rest) > 0 {
		if len(rest) < 12 {
			return nil, nil, errors.New("truncated png chunk")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		if uint64(n)+12 > uint64(len(rest)) {
			return nil, nil, errors.New("png chunk length exceeds file")
		}
		end := int(n) + 12
		c := pngChunk{
			typ:  string(rest[4:8]),
			data: rest[8 : 8+n],
			raw:  rest[:end],
		}
		chunks = append(chunks, c)
		rest = rest[end:]
		if c.typ == "IEND" {
			trailer = rest
			break
		}
	}
	if len(chunks) == 0 || chunks[0].typ != "IHDR" {
		return nil, nil, errors.New("png does not start with IHDR")
	}
	return chunks, trailer, nil
}

func physChunk(hDPI, vDPI int) []byte {
	data := make([]byte, 9)
	binary.BigEndian.PutUint32(data[0:4], dpiToPPM(hDPI))
	binary.BigEndian.PutUint32(data[4:8], dpiToPPM(vDPI))
	data[8] = 1 // unit: metre

	buf := make([]byte, 0, 21)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, "pHYs"...)
	buf = append(buf, data...)
	crc := crc32.NewIEEE()
	crc.Write(buf[4:])
	return binary.BigEndian.AppendUint32(buf, crc.Sum32())
}

func setPNGResolution(data []byte, hDPI, vDPI int) ([]byte, error) {
	if hDPI > maxPNGDPI || vDPI > maxPNGDPI {
		return nil, fmt.Errorf("png density limited to %d dpi", maxPNGDPI)
	}

	chunks, trailer, err := parsePNG(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(data)+21)
	out = append(out, pngSignature...)
	for i, c := range chunks {
		if c.typ == "pHYs" {
			continue
		}
		out = append(out, c.raw...)
		if i == 0 {
			out = append(out, physChunk(hDPI, vDPI)...)
		}
	}
	return append(out, trailer...), nil
}

func readPNGResolution(data []byte) (int, int, error) {
	chunks, _, err := parsePNG(data)
	if err != nil {
		return 0, 0, err
	}
	for _, c := range chunks {
		if c.typ != "pHYs" {
			continue
		}
		if len(c.data) != 9 {
			return 0, 0, errors.New("malformed pHYs chunk")
		}
		if c.data[8] != 1 {
			return 0, 0, nil
		}
		return ppmToDPI(binary.BigEndian.Uint32(c.data[0:4])), ppmToDPI(binary.BigEndian.Uint32(c.data[4:8])), nil
	}
	return 0, 0, nil
}

func dpiToPPM(dpi int) uint32 {
	return uint32(math.Round(float64(dpi) * inchesPerMetre))
}

func ppmToDPI(ppm uint32) int {
	return int(math.Round(float64(ppm) / inchesPerMetre))
}

func isJPEG(data []byte) bool {
	return len(data) > 3 && data[0] == 0xFF && data[1] == 0xD8
}

// jfifSegment locates the JFIF APP0 payload (after the length field) of the
// JPEG in data. It returns -1 when the first segment after SOI is not JFIF.
func jfifSegment(data []byte) int {
	if len(data) < 4+2+len(jfifIdent)+7 {
		return -1
	}
	if data[2] != 0xFF || data[3] != 0xE0 {
		return -1
	}
	payload := 6
	if !bytes.HasPrefix(data[payload:], jfifIdent) {
		return -1
	}
	return payload
}

func setJPEGResolution(data []byte, hDPI, vDPI int) ([]byte, error) {
	if hDPI > math.MaxUint16 || vDPI > math.MaxUint16 {
		return nil, fmt.Errorf("jpeg density limited to %d dpi", math.MaxUint16)
	}

	if p := jfifSegment(data); p >= 0 {
		out := bytes.Clone(data)
		out[p+7] = 1 // units: dots per inch
		binary.BigEndian.PutUint16(out[p+8:], uint16(hDPI))
		binary.BigEndian.PutUint16(out[p+10:], uint16(vDPI))
		return out, nil
	}

	seg := []byte{0xFF, 0xE0, 0x00, 0x10}
	seg = append(seg, jfifIdent...)
	seg = append(seg, 0x01, 0x02, 0x01)
	seg = binary.BigEndian.AppendUint16(seg, uint16(hDPI))
	seg = binary.BigEndian.AppendUint16(seg, uint16(vDPI))
	seg = append(seg, 0x00, 0x00)

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	out = append(out, data[2:]...)
	return out, nil
}

func readJPEGResolution(data []byte) (int, int, error) {
	p := jfifSegment(data)
	if p < 0 {
		return 0, 0, nil
	}
	h := int(binary.BigEndian.Uint16(data[p+8:]))
	v := int(binary.BigEndian.Uint16(data[p+10:]))
	switch data[p+7] {
	case 1:
		return h, v, nil
	case 2:
		return int(math.Round(float64(h) * 2.54)), int(math.Round(float64(v) * 2.54)), nil
	default:
		return 0, 0, nil
	}
}

func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
