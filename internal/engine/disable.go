package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/addonctl/internal/backup"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
)

// Disable retracts an addon from the live tree and restores its own copies
// of the projected files.
//
// Without Force a live file edited since enable is reported as a conflict.
// With Force the edited file is backed up and discarded, and the addon gets
// back the copy it was enabled with.
func (e *Engine) Disable(ctx context.Context, req *DisableRequest) (*ToggleResult, error) {
	defer logging.LogOperationStart(e.logger, "disable", req.Name)()

	unlock, err := e.lockAddon(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	addon, err := e.registry.Get(req.Name)
	if err != nil {
		return nil, err
	}

	backupPath, err := e.guard(addon, req.Force, true, backup.TagConflictDisable)
	if err != nil {
		return nil, err
	}

	files, err := e.overlay.Retract(addon.Name, addon.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to retract %s: %w", addon.Name, err)
	}

	if err := hooks.Call(ctx, addon.Name, e.hookFor(addon), hooks.OpDisable); err != nil {
		return nil, err
	}

	if err := e.setStatus(addon, manifest.StatusDisabled); err != nil {
		return nil, err
	}

	if err := e.rebuilder.Rebuild(ctx); err != nil {
		return nil, err
	}

	e.logger.Info().Str("addon", addon.Name).Int("files", len(files)).Msg("Addon disabled")
	return &ToggleResult{Info: addon.Info, Files: files, Backup: backupPath}, nil
}
