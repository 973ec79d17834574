// Package engine provides the core business logic for addon lifecycle
// operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It coordinates package extraction, conflict
// detection, backups, overlay projection, hooks, SQL seeds and artifact
// rebuilds.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Install/Uninstall: Adds and removes addon directories
//   - Enable/Disable: Projects and retracts addon files on the live tree
//   - Backup/Refresh: Manual backups and artifact regeneration
package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/artifact"
	"github.com/danieljhkim/addonctl/internal/backup"
	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/installer"
	"github.com/danieljhkim/addonctl/internal/lock"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/overlay"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/registry"
	"github.com/danieljhkim/addonctl/internal/seed"
	"github.com/danieljhkim/addonctl/internal/state"
)

// Engine orchestrates all addon lifecycle operations.
// It is the main API surface called by the CLI.
type Engine struct {
	fs        fsops.FS
	registry  registry.Registry
	records   state.RecordStore
	detector  *planner.Detector
	overlay   *overlay.Engine
	installer *installer.Installer
	archiver  *backup.Archiver
	resolver  *hooks.Resolver
	seeder    *seed.Runner
	rebuilder *artifact.Rebuilder
	locks     *lock.Manager
	config    *config.Config
	paths     config.Paths
	logger    zerolog.Logger
}

// New creates a new Engine with the given dependencies.
func New(
	fs fsops.FS,
	reg registry.Registry,
	records state.RecordStore,
	detector *planner.Detector,
	overlayEngine *overlay.Engine,
	inst *installer.Installer,
	archiver *backup.Archiver,
	resolver *hooks.Resolver,
	seeder *seed.Runner,
	rebuilder *artifact.Rebuilder,
	locks *lock.Manager,
	cfg *config.Config,
	paths config.Paths,
) *Engine {
	return &Engine{
		fs:        fs,
		registry:  reg,
		records:   records,
		detector:  detector,
		overlay:   overlayEngine,
		installer: inst,
		archiver:  archiver,
		resolver:  resolver,
		seeder:    seeder,
		rebuilder: rebuilder,
		locks:     locks,
		config:    cfg,
		paths:     paths,
		logger:    logging.GetLogger("engine"),
	}
}

// Refresh regenerates the derived artifacts.
func (e *Engine) Refresh(ctx context.Context) error {
	defer logging.LogOperationStart(e.logger, "refresh", "")()
	return e.rebuilder.Rebuild(ctx)
}

// lockAddon takes the per-addon lock.
func (e *Engine) lockAddon(ctx context.Context, name string) (lock.Unlock, error) {
	if err := fsops.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	unlock, err := e.locks.Addon(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to lock addon %s: %w", name, err)
	}
	return unlock, nil
}

func (e *Engine) hookFor(addon *registry.Addon) hooks.Hook {
	return e.resolver.Resolve(addon.Name, addon.Dir)
}

// conflicts returns the live paths that differ from the addon's copies.
// With heldOnly set, only paths the addon currently holds in the live tree
// are considered.
func (e *Engine) conflicts(addon *registry.Addon, heldOnly bool) ([]string, error) {
	paths, err := e.detector.Detect(addon.Name, addon.Dir, true)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}
	if !heldOnly || len(paths) == 0 {
		return paths, nil
	}

	held, err := e.overlay.Projected(addon.Name, addon.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read projected files: %w", err)
	}
	return slices.DeleteFunc(paths, func(p string) bool {
		return !slices.Contains(held, p)
	}), nil
}

// noconflict fails with a *ConflictError when any considered live file
// differs from the addon's copy.
func (e *Engine) noconflict(addon *registry.Addon, heldOnly bool) error {
	paths, err := e.conflicts(addon, heldOnly)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		return &ConflictError{Addon: addon.Name, Paths: paths}
	}
	return nil
}

// guard runs the conflict check. Without force a conflict aborts; with
// force the conflicting live files are archived under tag when global file
// backups are on. It returns the backup path, if any.
func (e *Engine) guard(addon *registry.Addon, force, heldOnly bool, tag string) (string, error) {
	paths, err := e.conflicts(addon, heldOnly)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	if !force {
		return "", &ConflictError{Addon: addon.Name, Paths: paths}
	}
	if !e.config.Backup.GlobalFiles {
		return "", nil
	}

	archivePath, err := e.archiver.Backup(addon.Name, paths, tag)
	if err != nil {
		e.logger.Warn().Err(err).Str("addon", addon.Name).Msg("Conflict backup incomplete")
	}
	return archivePath, nil
}

// checkInfo runs the addon's CheckInfo hook. Without hook code the
// manifest itself must be complete.
func (e *Engine) checkInfo(ctx context.Context, name string, info *manifest.Info, hook hooks.Hook) error {
	if hook == nil {
		if !info.Complete() {
			return fmt.Errorf("%w: %s: title and version are required", ErrManifestInvalid, name)
		}
		return nil
	}
	return hooks.Call(ctx, name, hook, hooks.OpCheckInfo)
}

func (e *Engine) setStatus(addon *registry.Addon, status manifest.Status) error {
	addon.Info.Status = status
	if err := e.registry.SaveInfo(addon.Name, addon.Info); err != nil {
		return fmt.Errorf("failed to save addon info: %w", err)
	}
	return nil
}
