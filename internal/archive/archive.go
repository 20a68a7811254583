// Package archive extracts, enumerates and builds the zip archives that batch
// runs read from and write to.
package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	// junkDir is the resource-fork directory macOS adds to zips it creates.
	junkDir = "__MACOSX"
	// junkPrefix marks AppleDouble sidecar files.
	junkPrefix = "._"
)

// ArchiveError reports a zip archive that could not be read or written.
type ArchiveError struct {
	Path string
	Op   string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// IsJunk reports whether path names a platform junk entry: anything under a
// __MACOSX directory or a file whose name starts with "._".
func IsJunk(path string) bool {
	path = filepath.ToSlash(path)
	for _, part := range strings.Split(path, "/") {
		if part == junkDir {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(path), junkPrefix)
}

// HasExt returns a name predicate matching any of exts, case-insensitively.
// Extensions are given with the leading dot.
func HasExt(exts ...string) func(name string) bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = true
	}
	return func(name string) bool {
		return set[strings.ToLower(filepath.Ext(name))]
	}
}

// IsArchive reports whether path carries a .zip extension.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// Extract expands every entry of the zip at archivePath into destDir.
func Extract(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return &ArchiveError{Path: archivePath, Op: "open", Err: err}
	}
	defer r.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", destDir, err)
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", destDir, err)
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return &ArchiveError{Path: archivePath, Op: "extract", Err: fmt.Errorf("entry %q escapes destination", f.Name)}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return &ArchiveError{Path: archivePath, Op: "extract", Err: err}
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("copy entry %s: %w", f.Name, err)
	}
	return out.Close()
}

// ListCandidates walks rootDir and returns every file whose name satisfies
// match, skipping __MACOSX directories and "._" files. The result is sorted
// so logs are reproducible; callers must not rely on the order.
func ListCandidates(rootDir string, match func(name string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == junkDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), junkPrefix) {
			return nil
		}
		if match(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", rootDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// CreateArchive writes a deflate-compressed zip at outputPath holding every
// file under sourceDir whose slash-separated relative path satisfies selector.
// An existing outputPath is replaced. It returns the number of entries written.
func CreateArchive(outputPath, sourceDir string, selector func(rel string) bool) (int, error) {
	files, err := ListCandidates(sourceDir, func(string) bool { return true })
	if err != nil {
		return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".tmp-*.zip")
	if err != nil {
		return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	zw := zip.NewWriter(tmp)
	count := 0
	for _, path := range files {
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			tmp.Close()
			return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
		}
		rel = filepath.ToSlash(rel)
		if IsJunk(rel) || !selector(rel) {
			continue
		}
		if err := addFile(zw, path, rel); err != nil {
			tmp.Close()
			return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
		}
		count++
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return 0, &ArchiveError{Path: outputPath, Op: "create", Err: err}
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", path, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Entries returns the entry names of the zip at path.
func Entries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		if r != nil {
			r.Close()
		}
		return nil, &ArchiveError{Path: path, Op: "open", Err: err}
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
