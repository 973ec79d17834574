// Package archive reads and writes the zip containers addons travel in.
//
// The codec works on an afero.Fs so installs and backups can be tested in
// memory. Extraction is not atomic; callers remove the destination on error.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrArchiveCorrupt is returned when a container cannot be opened.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrExtractFailed is returned when extraction stops partway.
	ErrExtractFailed = errors.New("extract failed")

	// ErrEntryNotFound is returned when a named entry is absent.
	ErrEntryNotFound = errors.New("archive entry not found")
)

// Reader gives read access to an opened container.
type Reader struct {
	path string
	file afero.File
	zr   *zip.Reader
}

// Open opens the container at path.
func Open(fs afero.Fs, path string) (*Reader, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}

	zr, err := zip.NewReader(file, info.Size())
	if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
		// Traversal is rejected per entry in ExtractTo.
		err = nil
	}
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, path, err)
	}

	return &Reader{path: path, file: file, zr: zr}, nil
}

// Path returns the location the container was opened from.
func (r *Reader) Path() string {
	return r.path
}

// Entries lists entry names in container order.
func (r *Reader) Entries() []string {
	names := make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Contents returns the bytes of the named entry.
func (r *Reader) Contents(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if strings.TrimPrefix(f.Name, "./") != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, name, err)
		}
		defer func() {
			_ = rc.Close()
		}()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
}

// ExtractTo writes every entry below dest, creating dest if needed.
// Entries that would land outside dest, or whose first path element is one
// of reserved, are rejected before anything is written.
func (r *Reader) ExtractTo(fs afero.Fs, dest string, reserved ...string) error {
	rels := make([]string, len(r.zr.File))
	for i, f := range r.zr.File {
		rel, err := entryPath(f.Name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrExtractFailed, err)
		}
		if isReserved(rel, reserved) {
			return fmt.Errorf("%w: entry %q uses a reserved name", ErrExtractFailed, f.Name)
		}
		rels[i] = rel
	}

	if err := fs.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtractFailed, dest, err)
	}

	for i, f := range r.zr.File {
		if rels[i] == "" {
			continue
		}
		target := filepath.Join(dest, rels[i])

		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrExtractFailed, f.Name, err)
			}
			continue
		}

		if err := extractFile(fs, f, target); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrExtractFailed, f.Name, err)
		}
	}

	return nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func entryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(name) {
		return "", fmt.Errorf("entry %q has an absolute path", name)
	}
	cleaned := path.Clean(name)
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("entry %q escapes the destination", name)
	}
	return filepath.FromSlash(cleaned), nil
}

func isReserved(rel string, reserved []string) bool {
	if rel == "" {
		return false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	for _, name := range reserved {
		if first == name {
			return true
		}
	}
	return false
}

func extractFile(fs afero.Fs, f *zip.File, target string) error {
	if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Writer builds a new container.
type Writer struct {
	file   afero.File
	zw     *zip.Writer
	closed bool
}

// Create creates (or truncates) a container at path.
func Create(fs afero.Fs, path string) (*Writer, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	file, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return &Writer{file: file, zw: zip.NewWriter(file)}, nil
}

// AddBytes stores data under name.
func (w *Writer) AddBytes(name string, data []byte, mode os.FileMode) error {
	header := &zip.FileHeader{
		Name:   filepath.ToSlash(name),
		Method: zip.Deflate,
	}
	header.SetMode(mode)

	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	return nil
}

// AddFile stores the file at src under name.
func (w *Writer) AddFile(fs afero.Fs, src, name string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if info.IsDir() {
		return fmt.Errorf("failed to add %s: is a directory", name)
	}

	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	defer func() {
		_ = in.Close()
	}()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	header.Name = filepath.ToSlash(name)
	header.Method = zip.Deflate

	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, in); err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	return nil
}

// AddDir stores every file below root, named relative to root, in lexical order.
func (w *Writer) AddDir(fs afero.Fs, root string) error {
	var files []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(files)

	for _, p := range files {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if err := w.AddFile(fs, p, rel); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the container. It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	zerr := w.zw.Close()
	ferr := w.file.Close()
	if zerr != nil {
		return fmt.Errorf("failed to finalize archive: %w", zerr)
	}
	return ferr
}
