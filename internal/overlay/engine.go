// Package overlay moves addon files between an addon directory and the
// shared live tree.
//
// Project copies every candidate file out to the live tree and moves the
// addon's own copy into the addon's pristine shadow tree, so the addon
// directory no longer holds it. A live file overwritten for the first time is
// kept in the displaced shadow tree. Retract reverses both: the addon copy
// comes back from pristine, the live copy is removed and any displaced
// original is put back. After a retract the record's file list is empty, so
// the addon holds nothing in the live tree until it is projected again.
package overlay

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/state"
)

// Engine projects and retracts addons.
type Engine struct {
	fs       fsops.FS
	detector *planner.Detector
	records  state.RecordStore
	overlay  config.Overlay
	logger   zerolog.Logger
}

// NewEngine creates an overlay Engine.
func NewEngine(fs fsops.FS, detector *planner.Detector, records state.RecordStore, overlay config.Overlay) *Engine {
	return &Engine{
		fs:       fs,
		detector: detector,
		records:  records,
		overlay:  overlay,
		logger:   logging.GetLogger("overlay"),
	}
}

// Project copies the addon's tracked files onto the live tree, records the
// full path list and returns it. A failure leaves whatever was already
// projected in place.
func (e *Engine) Project(name, addonDir string) ([]string, error) {
	candidates, err := e.detector.Candidates(name, addonDir)
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(candidates))
	for _, c := range candidates {
		rels = append(rels, c.RelPath)
	}

	// The record is written first so a partial projection can be retracted.
	if _, err := e.records.SaveFiles(addonDir, rels); err != nil {
		return nil, err
	}

	pristineRoot := state.PristineDir(addonDir)
	displacedRoot := state.DisplacedDir(addonDir)

	for _, c := range candidates {
		live := e.detector.LivePath(c.RelPath)
		pristine := filepath.Join(pristineRoot, filepath.FromSlash(c.RelPath))
		displaced := filepath.Join(displacedRoot, filepath.FromSlash(c.RelPath))

		if !c.Projected && e.fs.IsFile(live) && !e.fs.IsFile(pristine) && !e.fs.IsFile(displaced) {
			if err := e.fs.Copy(live, displaced); err != nil {
				return nil, fmt.Errorf("failed to preserve %s: %w", c.RelPath, err)
			}
			e.logger.Debug().Str("addon", name).Str("path", c.RelPath).Msg("Preserved displaced live file")
		}

		if err := e.fs.Copy(c.Source, live); err != nil {
			return nil, fmt.Errorf("failed to project %s: %w", c.RelPath, err)
		}

		if !c.Projected {
			if err := e.fs.Rename(c.Source, pristine); err != nil {
				return nil, fmt.Errorf("failed to move %s out of the addon tree: %w", c.RelPath, err)
			}
		}
	}

	for _, dir := range e.overlay.ScanDirs() {
		e.fs.RemoveEmptyTree(filepath.Join(addonDir, dir))
	}

	e.logger.Info().Str("addon", name).Int("files", len(rels)).Msg("Addon projected")
	return rels, nil
}

// Retract removes the addon's files from the live tree and restores the
// addon's own copies, then clears the record's file list. Individual
// removal failures are logged and skipped.
func (e *Engine) Retract(name, addonDir string) ([]string, error) {
	rels, err := e.Projected(name, addonDir)
	if err != nil {
		return nil, err
	}

	for _, rel := range rels {
		e.restoreAddonCopy(name, addonDir, rel)
		e.removeLive(name, addonDir, rel)
	}

	e.fs.RemoveEmptyTree(filepath.Join(addonDir, state.ShadowDir))

	if _, err := e.records.SaveFiles(addonDir, []string{}); err != nil {
		return rels, err
	}

	e.logger.Info().Str("addon", name).Int("files", len(rels)).Msg("Addon retracted")
	return rels, nil
}

// Purge removes the files the addon currently holds in the live tree
// without restoring the addon copies, putting displaced originals back. It
// serves forced uninstalls, where the addon directory is about to be
// deleted. A retracted addon holds nothing, so nothing is removed.
func (e *Engine) Purge(name, addonDir string) ([]string, error) {
	rels, err := e.Projected(name, addonDir)
	if err != nil {
		return nil, err
	}

	for _, rel := range rels {
		e.removeLive(name, addonDir, rel)
	}

	e.logger.Info().Str("addon", name).Int("files", len(rels)).Msg("Addon purged from live tree")
	return rels, nil
}

// Projected returns the live paths the addon currently holds: the recorded
// paths plus anything still kept in the pristine tree. An addon that has
// never recorded a file list is assumed to hold the live files identical
// to its own copies.
func (e *Engine) Projected(name, addonDir string) ([]string, error) {
	rec, err := e.records.Load(addonDir)
	if err != nil {
		return nil, err
	}

	candidates, err := e.detector.Candidates(name, addonDir)
	if err != nil {
		return nil, err
	}

	var rels []string
	if rec.HasFiles() {
		rels = append(rels, rec.Files...)
	}
	for _, c := range candidates {
		switch {
		case c.Projected:
			rels = append(rels, c.RelPath)
		case !rec.HasFiles() && e.fs.IsFile(e.detector.LivePath(c.RelPath)):
			conflict, err := e.detector.Compare(c)
			if err != nil {
				return nil, err
			}
			if conflict == nil {
				rels = append(rels, c.RelPath)
			}
		}
	}

	rels = planner.Dedup(rels)
	planner.SortDeepestFirst(rels)
	return rels, nil
}

// AddonPath maps a live-tree relative path back into the addon directory.
func (e *Engine) AddonPath(name, addonDir, rel string) string {
	prefix := e.overlay.AssetsTarget(name) + "/"
	if strings.HasPrefix(rel, prefix) {
		rel = path.Join(e.overlay.AssetsDir, strings.TrimPrefix(rel, prefix))
	}
	return filepath.Join(addonDir, filepath.FromSlash(rel))
}

func (e *Engine) restoreAddonCopy(name, addonDir, rel string) {
	own := e.AddonPath(name, addonDir, rel)
	pristine := filepath.Join(state.PristineDir(addonDir), filepath.FromSlash(rel))
	live := e.detector.LivePath(rel)

	if e.fs.IsFile(own) {
		if e.fs.IsFile(pristine) {
			_ = e.fs.Remove(pristine)
		}
		return
	}

	if e.fs.IsFile(pristine) {
		if err := e.fs.Rename(pristine, own); err != nil {
			e.logger.Warn().Err(err).Str("addon", name).Str("path", rel).Msg("Failed to restore addon copy")
		}
		return
	}

	if e.fs.IsFile(live) {
		if err := e.fs.Copy(live, own); err != nil {
			e.logger.Warn().Err(err).Str("addon", name).Str("path", rel).Msg("Failed to copy live file back")
		}
	}
}

func (e *Engine) removeLive(name, addonDir, rel string) {
	live := e.detector.LivePath(rel)
	displaced := filepath.Join(state.DisplacedDir(addonDir), filepath.FromSlash(rel))

	if err := e.fs.Remove(live); err != nil && !os.IsNotExist(err) {
		e.logger.Debug().Err(err).Str("addon", name).Str("path", rel).Msg("Failed to remove live file")
	}

	if e.fs.IsFile(displaced) {
		if err := e.fs.Rename(displaced, live); err != nil {
			e.logger.Warn().Err(err).Str("addon", name).Str("path", rel).Msg("Failed to restore displaced file")
		}
		return
	}

	e.fs.PruneEmptyDirs(filepath.Dir(live), e.detector.LiveRoot())
}
