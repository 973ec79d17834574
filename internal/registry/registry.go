// Package registry manages installed addons.
//
// The addons directory is the source of truth: every subdirectory holding a
// valid info.ini is an addon. Nothing is cached between calls, so callers see
// the effect of a lifecycle change immediately.
//
// Key components:
//   - Registry: interface for listing, loading and deleting addons
//   - Addon: directory plus parsed manifest
//   - Well-known files inside an addon directory (bootstrap fragment,
//     SQL seeds, config)
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
)

// Well-known files inside an addon directory.
const (
	BootstrapFile = "bootstrap.js"
	InstallSQL    = "install.sql"
	TestdataSQL   = "testdata.sql"
	ConfigFile    = "config.json"
)

var (
	// ErrNotFound is returned when an addon directory does not exist.
	ErrNotFound = errors.New("addon not found")

	// ErrAlreadyExists is returned when creating an addon directory that exists.
	ErrAlreadyExists = errors.New("addon already exists")
)

// Addon is an installed addon.
type Addon struct {
	Name string
	Dir  string
	Info *manifest.Info
}

// Registry provides access to installed addons.
type Registry interface {
	// List returns every addon with a readable manifest, sorted by name.
	List() ([]*Addon, error)

	// Get loads one addon.
	Get(name string) (*Addon, error)

	// Exists checks if the addon directory exists.
	Exists(name string) (bool, error)

	// Dir returns the addon directory path.
	Dir(name string) string

	// Create creates an empty addon directory.
	Create(name string) error

	// SaveInfo writes the addon manifest.
	SaveInfo(name string, info *manifest.Info) error

	// Delete removes the addon directory and everything in it.
	Delete(name string) error

	// File returns the path of a well-known file inside the addon directory.
	File(name, file string) string

	// HasFile reports whether a well-known file is present.
	HasFile(name, file string) bool
}

// FileRegistry implements Registry over the addons directory.
type FileRegistry struct {
	fs        fsops.FS
	addonsDir string
	logger    zerolog.Logger
}

// NewFileRegistry creates a new FileRegistry.
func NewFileRegistry(fs fsops.FS, addonsDir string) *FileRegistry {
	return &FileRegistry{
		fs:        fs,
		addonsDir: addonsDir,
		logger:    logging.GetLogger("registry"),
	}
}

// List returns every addon with a readable manifest, sorted by name.
// Directories without one are skipped.
func (r *FileRegistry) List() ([]*Addon, error) {
	if !r.fs.IsDir(r.addonsDir) {
		return []*Addon{}, nil
	}

	entries, err := r.fs.ReadDir(r.addonsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read addons directory: %w", err)
	}

	addons := []*Addon{}
	for _, entry := range entries {
		if !entry.IsDir() || r.fs.ValidateIdentifier(entry.Name()) != nil {
			continue
		}
		addon, err := r.Get(entry.Name())
		if err != nil {
			r.logger.Debug().Err(err).Str("addon", entry.Name()).Msg("Skipping directory without usable manifest")
			continue
		}
		addons = append(addons, addon)
	}

	sort.Slice(addons, func(i, j int) bool {
		return addons[i].Name < addons[j].Name
	})
	return addons, nil
}

// Get loads one addon.
func (r *FileRegistry) Get(name string) (*Addon, error) {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("invalid addon name: %w", err)
	}

	dir := r.Dir(name)
	if !r.fs.IsDir(dir) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	info, err := manifest.ReadDir(r.fs, dir)
	if err != nil {
		return nil, err
	}
	if info.Name != name {
		return nil, fmt.Errorf("%w: name %q does not match directory %q", manifest.ErrManifestInvalid, info.Name, name)
	}

	return &Addon{Name: name, Dir: dir, Info: info}, nil
}

// Exists checks if the addon directory exists.
func (r *FileRegistry) Exists(name string) (bool, error) {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return false, fmt.Errorf("invalid addon name: %w", err)
	}
	return r.fs.IsDir(r.Dir(name)), nil
}

// Dir returns the addon directory path.
func (r *FileRegistry) Dir(name string) string {
	return filepath.Join(r.addonsDir, name)
}

// Create creates an empty addon directory.
func (r *FileRegistry) Create(name string) error {
	exists, err := r.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	if err := r.fs.MkdirAll(r.Dir(name), 0755); err != nil {
		return fmt.Errorf("failed to create addon directory: %w", err)
	}
	return nil
}

// SaveInfo writes the addon manifest.
func (r *FileRegistry) SaveInfo(name string, info *manifest.Info) error {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return fmt.Errorf("invalid addon name: %w", err)
	}
	return manifest.WriteDir(r.fs, r.Dir(name), info)
}

// Delete removes the addon directory and everything in it.
func (r *FileRegistry) Delete(name string) error {
	if err := r.fs.ValidateIdentifier(name); err != nil {
		return fmt.Errorf("invalid addon name: %w", err)
	}
	if err := r.fs.RemoveAll(r.Dir(name)); err != nil {
		return fmt.Errorf("failed to delete addon: %w", err)
	}
	return nil
}

// File returns the path of a well-known file inside the addon directory.
func (r *FileRegistry) File(name, file string) string {
	return filepath.Join(r.Dir(name), file)
}

// HasFile reports whether a well-known file is present.
func (r *FileRegistry) HasFile(name, file string) bool {
	return r.fs.IsFile(r.File(name, file))
}
