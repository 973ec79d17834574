package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/addonctl/internal/backup"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/registry"
)

// Enable projects an addon's tracked files onto the live tree.
//
// Without Force any conflicting live file aborts the operation before
// anything is touched. A failure after projection starts leaves the
// partially projected files in place; Disable retracts them.
func (e *Engine) Enable(ctx context.Context, req *EnableRequest) (*ToggleResult, error) {
	defer logging.LogOperationStart(e.logger, "enable", req.Name)()

	unlock, err := e.lockAddon(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	addon, err := e.registry.Get(req.Name)
	if err != nil {
		return nil, err
	}

	return e.enable(ctx, addon, req.Force)
}

// enable runs the enable sequence. The caller holds the addon lock.
func (e *Engine) enable(ctx context.Context, addon *registry.Addon, force bool) (*ToggleResult, error) {
	backupPath, err := e.guard(addon, force, false, backup.TagConflictEnable)
	if err != nil {
		return nil, err
	}

	files, err := e.overlay.Project(addon.Name, addon.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to project %s: %w", addon.Name, err)
	}

	if err := hooks.Call(ctx, addon.Name, e.hookFor(addon), hooks.OpEnable); err != nil {
		return nil, err
	}

	if err := e.setStatus(addon, manifest.StatusEnabled); err != nil {
		return nil, err
	}

	if err := e.rebuilder.Rebuild(ctx); err != nil {
		return nil, err
	}

	e.logger.Info().Str("addon", addon.Name).Int("files", len(files)).Msg("Addon enabled")
	return &ToggleResult{Info: addon.Info, Files: files, Backup: backupPath}, nil
}
