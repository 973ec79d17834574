// Package config manages addonctl configuration and filesystem paths.
//
// The application root is the live tree that addons are projected onto. All
// other locations (addon directories, runtime state, backups, locks and the
// generated registration table) are derived from it and can be relocated by
// setting ADDONCTL_ROOT or passing --root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by addonctl.
type Paths struct {
	// Root is the application root (the shared live tree)
	Root string

	// Addons holds one directory per installed addon
	Addons string

	// Runtime holds generated, non-versioned data
	Runtime string

	// Backups holds package archives, staged uploads and backup archives
	Backups string

	// Locks holds advisory lock files
	Locks string

	// ConfigDir is the application config directory
	ConfigDir string

	// ConfigFile is the project-level addonctl config file
	ConfigFile string

	// LogFile is where the file log sink appends
	LogFile string
}

// DefaultPaths returns the paths for the root named by ADDONCTL_ROOT, or
// the current working directory when it is unset.
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("ADDONCTL_ROOT")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = cwd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", root, err)
	}

	return NewPaths(abs), nil
}

// NewPaths derives every location from root.
func NewPaths(root string) *Paths {
	runtime := filepath.Join(root, "runtime")
	configDir := filepath.Join(root, "config")

	return &Paths{
		Root:       root,
		Addons:     filepath.Join(root, "addons"),
		Runtime:    runtime,
		Backups:    filepath.Join(runtime, "addons"),
		Locks:      filepath.Join(runtime, "locks"),
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, "addonctl.toml"),
		LogFile:    filepath.Join(runtime, "log", "addonctl.log"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Addons,
		p.Runtime,
		p.Backups,
		p.Locks,
		p.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
