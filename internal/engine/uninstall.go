package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/logging"
)

// Uninstall removes an addon directory.
//
// An enabled addon is refused unless Force is set. Without Force the
// files the addon still holds in the live tree must be unmodified; with
// Force they are deleted first. Live files the addon no longer holds, such
// as originals put back by a disable, are left alone. Once the directory is
// being deleted nothing is rolled back.
func (e *Engine) Uninstall(ctx context.Context, req *UninstallRequest) (*UninstallResult, error) {
	defer logging.LogOperationStart(e.logger, "uninstall", req.Name)()

	unlock, err := e.lockAddon(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	addon, err := e.registry.Get(req.Name)
	if err != nil {
		return nil, err
	}

	if addon.Info.Enabled() && !req.Force {
		return nil, fmt.Errorf("%w: %s is enabled", ErrStatusGate, addon.Name)
	}

	result := &UninstallResult{Name: addon.Name}
	if req.Force {
		purged, err := e.overlay.Purge(addon.Name, addon.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to remove live files of %s: %w", addon.Name, err)
		}
		result.Purged = purged
	} else if err := e.noconflict(addon, true); err != nil {
		return nil, err
	}

	if err := hooks.Call(ctx, addon.Name, e.hookFor(addon), hooks.OpUninstall); err != nil {
		return nil, err
	}

	if err := e.registry.Delete(addon.Name); err != nil {
		return nil, err
	}

	if err := e.rebuilder.Rebuild(ctx); err != nil {
		return nil, err
	}

	e.logger.Info().Str("addon", addon.Name).Int("purged", len(result.Purged)).Msg("Addon uninstalled")
	return result, nil
}
