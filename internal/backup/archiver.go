// Package backup writes timestamped zip snapshots of live files and addon
// directories. Backups are an audit and recovery aid; nothing reads them back
// automatically.
package backup

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/archive"
	"github.com/danieljhkim/addonctl/internal/clock"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
)

// Operation tags embedded in backup names.
const (
	TagConflictEnable  = "conflict-enable"
	TagConflictDisable = "conflict-disable"
	TagBackup          = "backup"
)

// Archiver creates backups under a single directory.
type Archiver struct {
	fs       fsops.FS
	clock    clock.Clock
	dir      string
	liveRoot string
	logger   zerolog.Logger
}

// NewArchiver creates an Archiver writing into dir and reading live files
// relative to liveRoot.
func NewArchiver(fs fsops.FS, clk clock.Clock, dir, liveRoot string) *Archiver {
	return &Archiver{
		fs:       fs,
		clock:    clk,
		dir:      dir,
		liveRoot: liveRoot,
		logger:   logging.GetLogger("backup"),
	}
}

// Dir returns the directory backups are written to.
func (a *Archiver) Dir() string {
	return a.dir
}

// PathFor returns the archive path for an addon, tag and the current time.
func (a *Archiver) PathFor(name, tag string) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s-%s-%s.zip", name, tag, clock.Stamp(a.clock)))
}

// Backup archives the live files at relPaths. On the first file that cannot
// be added the backup is abandoned; the archive is still closed and its path
// returned alongside the error. No archive is created for an empty list.
func (a *Archiver) Backup(name string, relPaths []string, tag string) (string, error) {
	if len(relPaths) == 0 {
		return "", nil
	}

	path := a.PathFor(name, tag)
	w, err := archive.Create(a.fs.Afero(), path)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	var addErr error
	for _, rel := range relPaths {
		src := filepath.Join(a.liveRoot, filepath.FromSlash(rel))
		if err := w.AddFile(a.fs.Afero(), src, rel); err != nil {
			addErr = err
			a.logger.Warn().Err(err).Str("addon", name).Str("path", rel).Msg("Backup abandoned")
			break
		}
	}

	if err := w.Close(); err != nil {
		a.logger.Warn().Err(err).Str("archive", path).Msg("Failed to close backup")
		if addErr == nil {
			addErr = err
		}
	}

	if addErr != nil {
		return path, fmt.Errorf("backup of %s incomplete: %w", name, addErr)
	}

	a.logger.Info().Str("addon", name).Str("archive", path).Int("files", len(relPaths)).Msg("Backup written")
	return path, nil
}

// BackupDir archives an entire addon directory.
func (a *Archiver) BackupDir(name, dir string) (string, error) {
	if !a.fs.IsDir(dir) {
		return "", fmt.Errorf("addon directory %s not found", dir)
	}

	path := a.PathFor(name, TagBackup)
	w, err := archive.Create(a.fs.Afero(), path)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	addErr := w.AddDir(a.fs.Afero(), dir)
	if err := w.Close(); err != nil && addErr == nil {
		addErr = err
	}
	if addErr != nil {
		return path, fmt.Errorf("backup of %s incomplete: %w", name, addErr)
	}

	a.logger.Info().Str("addon", name).Str("archive", path).Msg("Addon directory backed up")
	return path, nil
}

// List returns the backups of an addon, oldest first.
func (a *Archiver) List(name string) ([]string, error) {
	if !a.fs.IsDir(a.dir) {
		return []string{}, nil
	}

	entries, err := a.fs.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isBackupOf(entry.Name(), name) {
			continue
		}
		paths = append(paths, filepath.Join(a.dir, entry.Name()))
	}
	sort.Slice(paths, func(i, j int) bool {
		return stampOf(paths[i]) < stampOf(paths[j])
	})
	return paths, nil
}

func isBackupOf(file, name string) bool {
	if !strings.HasPrefix(file, name+"-") || !strings.HasSuffix(file, ".zip") {
		return false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(file, name+"-"), ".zip")
	for _, tag := range []string{TagConflictEnable, TagConflictDisable, TagBackup} {
		if strings.HasPrefix(rest, tag+"-") && len(rest) == len(tag)+1+len(clock.StampLayout) {
			return true
		}
	}
	return false
}

func stampOf(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".zip")
	if len(base) < len(clock.StampLayout) {
		return base
	}
	return base[len(base)-len(clock.StampLayout):]
}
