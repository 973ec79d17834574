// Package installer unpacks addon packages into fresh addon directories.
package installer

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/archive"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/state"
)

// Installer extracts packages and reads their manifests.
type Installer struct {
	fs     fsops.FS
	logger zerolog.Logger
}

// New creates an Installer.
func New(fs fsops.FS) *Installer {
	return &Installer{
		fs:     fs,
		logger: logging.GetLogger("installer"),
	}
}

// ReadManifest reads info.ini from the package at archivePath.
func (i *Installer) ReadManifest(archivePath string) (*manifest.Info, error) {
	r, err := archive.Open(i.fs.Afero(), archivePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close()
	}()

	return manifest.ReadArchive(r)
}

// Extract unpacks the package at archivePath into destDir. Packages may not
// carry an overlay record or shadow trees. On error the directory may hold
// a partial tree; the caller removes it.
func (i *Installer) Extract(archivePath, destDir string) error {
	r, err := archive.Open(i.fs.Afero(), archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			i.logger.Debug().Err(cerr).Str("archive", archivePath).Msg("Failed to close package")
		}
	}()

	if err := r.ExtractTo(i.fs.Afero(), destDir, state.RecordFile, state.ShadowDir); err != nil {
		return fmt.Errorf("failed to extract %s: %w", archivePath, err)
	}

	i.logger.Debug().
		Str("archive", archivePath).
		Str("dest", destDir).
		Int("entries", len(r.Entries())).
		Msg("Package extracted")
	return nil
}
