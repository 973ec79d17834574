// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem mutations in addonctl go through the FS interface, which
// wraps an afero.Fs so that the overlay, archive and artifact code can be
// exercised against an in-memory tree in tests and the real disk otherwise.
//
// Key features:
//   - Atomic writes using temp file + rename
//   - Merge copies that never replace a destination subtree wholesale
//   - Upward pruning of directories left empty by a removal
//   - Path validation for relative paths and addon identifiers
package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FS provides an abstraction for filesystem operations.
// All filesystem mutations in addonctl must go through this interface.
type FS interface {
	// Stat returns file info for path.
	Stat(path string) (os.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error

	// Rename moves oldpath to newpath.
	Rename(oldpath, newpath string) error

	// Copy copies a file or directory from src to dst, merging directories.
	Copy(src, dst string) error

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Open opens a file for reading.
	Open(path string) (afero.File, error)

	// Create creates or truncates a file for writing.
	Create(path string) (afero.File, error)

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// IsDir reports whether path is an existing directory.
	IsDir(path string) bool

	// IsFile reports whether path is an existing regular file.
	IsFile(path string) bool

	// Walk walks the tree rooted at root in lexical order.
	Walk(root string, fn filepath.WalkFunc) error

	// ReadDir lists a directory sorted by name.
	ReadDir(path string) ([]os.FileInfo, error)

	// PruneEmptyDirs removes dir and its ancestors while they are empty,
	// stopping before stop.
	PruneEmptyDirs(dir, stop string)

	// RemoveEmptyTree removes every empty directory under root, root included.
	RemoveEmptyTree(root string)

	// ValidateRelPath validates a relative path for safety.
	ValidateRelPath(relPath string) error

	// ValidateIdentifier validates an addon name.
	ValidateIdentifier(id string) error

	// Afero exposes the backing filesystem.
	Afero() afero.Fs
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// AferoFS implements FS on top of an afero.Fs.
type AferoFS struct {
	fs afero.Fs
}

// New wraps an afero filesystem.
func New(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewRealFS returns an FS backed by the operating system.
func NewRealFS() *AferoFS {
	return New(afero.NewOsFs())
}

// NewMemFS returns an FS backed by memory, for tests.
func NewMemFS() *AferoFS {
	return New(afero.NewMemMapFs())
}

func (a *AferoFS) Afero() afero.Fs {
	return a.fs
}

func (a *AferoFS) Stat(path string) (os.FileInfo, error) {
	return a.fs.Stat(path)
}

func (a *AferoFS) MkdirAll(path string, perm os.FileMode) error {
	return a.fs.MkdirAll(path, perm)
}

func (a *AferoFS) Remove(path string) error {
	return a.fs.Remove(path)
}

func (a *AferoFS) RemoveAll(path string) error {
	return a.fs.RemoveAll(path)
}

func (a *AferoFS) Rename(oldpath, newpath string) error {
	if err := a.fs.MkdirAll(filepath.Dir(newpath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return a.fs.Rename(oldpath, newpath)
}

func (a *AferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

func (a *AferoFS) Open(path string) (afero.File, error) {
	return a.fs.Open(path)
}

func (a *AferoFS) Create(path string) (afero.File, error) {
	if err := a.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	return a.fs.Create(path)
}

func (a *AferoFS) Exists(path string) (bool, error) {
	return afero.Exists(a.fs, path)
}

func (a *AferoFS) IsDir(path string) bool {
	ok, err := afero.IsDir(a.fs, path)
	return err == nil && ok
}

func (a *AferoFS) IsFile(path string) bool {
	info, err := a.fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (a *AferoFS) Walk(root string, fn filepath.WalkFunc) error {
	return afero.Walk(a.fs, root, fn)
}

func (a *AferoFS) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(a.fs, path)
}

// Copy copies a file or directory from src to dst.
// Directories are merged into an existing destination rather than replacing it.
func (a *AferoFS) Copy(src, dst string) error {
	srcInfo, err := a.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	dstInfo, err := a.fs.Stat(dst)
	if err == nil {
		// A file cannot be merged into a directory or the other way around.
		if srcInfo.IsDir() != dstInfo.IsDir() {
			if err := a.fs.RemoveAll(dst); err != nil {
				return fmt.Errorf("failed to remove existing destination: %w", err)
			}
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat destination: %w", err)
	}

	if srcInfo.IsDir() {
		return a.copyDir(src, dst)
	}
	return a.copyFile(src, dst, srcInfo.Mode())
}

func (a *AferoFS) copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := a.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	if err := a.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	dstFile, err := a.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	return dstFile.Sync()
}

func (a *AferoFS) copyDir(src, dst string) error {
	srcInfo, err := a.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}

	if err := a.fs.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := afero.ReadDir(a.fs, src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := a.copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := a.Copy(srcPath, dstPath); err != nil {
			return err
		}
	}

	return nil
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (a *AferoFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmpFile, err := afero.TempFile(a.fs, dir, ".addonctl-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = a.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := a.fs.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := a.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}

// PruneEmptyDirs removes dir if it is empty, then walks upward doing the
// same for each parent. It never removes stop or anything above it.
// Failures end the walk silently.
func (a *AferoFS) PruneEmptyDirs(dir, stop string) {
	dir = filepath.Clean(dir)
	stop = filepath.Clean(stop)

	for dir != stop && strings.HasPrefix(dir, stop+string(filepath.Separator)) {
		empty, err := afero.IsEmpty(a.fs, dir)
		if err != nil || !empty {
			return
		}
		if err := a.fs.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// RemoveEmptyTree removes empty directories below root, deepest first,
// and root itself when nothing is left in it.
func (a *AferoFS) RemoveEmptyTree(root string) {
	var dirs []string
	_ = afero.Walk(a.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})

	for _, dir := range dirs {
		if empty, err := afero.IsEmpty(a.fs, dir); err == nil && empty {
			_ = a.fs.Remove(dir)
		}
	}
}

// ValidateRelPath validates a relative path for safety.
// Returns an error if the path is invalid or unsafe.
func (a *AferoFS) ValidateRelPath(relPath string) error {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))

	if relPath == "" || cleaned == "." {
		return fmt.Errorf("invalid path: empty or current directory")
	}

	if filepath.IsAbs(cleaned) {
		return fmt.Errorf("invalid path: must be relative, got absolute path %q", cleaned)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid path: path traversal not allowed in %q", cleaned)
	}

	return nil
}

// ValidateIdentifier validates an addon name. Names double as directory
// names, so only ASCII letters and digits are accepted.
func (a *AferoFS) ValidateIdentifier(id string) error {
	return ValidateName(id)
}

// ValidateName reports whether id is a usable addon name.
func ValidateName(id string) error {
	if id == "" {
		return fmt.Errorf("invalid identifier: empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier %q: only letters and digits are allowed", id)
	}
	return nil
}
