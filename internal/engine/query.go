package engine

import (
	"context"
	"fmt"

	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/registry"
)

// Backup archives an addon's whole directory and returns the archive path.
func (e *Engine) Backup(ctx context.Context, name string) (string, error) {
	defer logging.LogOperationStart(e.logger, "backup", name)()

	unlock, err := e.lockAddon(ctx, name)
	if err != nil {
		return "", err
	}
	defer unlock()

	addon, err := e.registry.Get(name)
	if err != nil {
		return "", err
	}

	return e.archiver.BackupDir(addon.Name, addon.Dir)
}

// List returns every installed addon sorted by name.
func (e *Engine) List(ctx context.Context) (*ListResult, error) {
	addons, err := e.registry.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list addons: %w", err)
	}

	result := &ListResult{Addons: make([]AddonSummary, 0, len(addons))}
	for _, addon := range addons {
		result.Addons = append(result.Addons, AddonSummary{
			Name:      addon.Name,
			Title:     addon.Info.Title,
			Version:   addon.Info.Version,
			Author:    addon.Info.Author,
			Status:    addon.Info.Status,
			Installed: addon.Info.Installed,
		})
	}
	return result, nil
}

// Info returns the details of one addon.
func (e *Engine) Info(ctx context.Context, name string) (*InfoResult, error) {
	addon, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	rec, err := e.records.Load(addon.Dir)
	if err != nil {
		return nil, err
	}

	backups, err := e.archiver.List(addon.Name)
	if err != nil {
		return nil, err
	}

	files := rec.Files
	if files == nil {
		files = []string{}
	}

	return &InfoResult{
		Info:         addon.Info,
		Dir:          addon.Dir,
		Files:        files,
		HasConfig:    e.registry.HasFile(addon.Name, registry.ConfigFile),
		HasTestdata:  e.registry.HasFile(addon.Name, registry.TestdataSQL),
		HasBootstrap: e.registry.HasFile(addon.Name, registry.BootstrapFile),
		Backups:      backups,
	}, nil
}

// Conflicts reports the live files that differ from the addon's copies
// without changing anything.
func (e *Engine) Conflicts(ctx context.Context, name string) (*ConflictsResult, error) {
	addon, err := e.registry.Get(name)
	if err != nil {
		return nil, err
	}

	conflicts, err := e.detector.Conflicts(addon.Name, addon.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}
	if conflicts == nil {
		conflicts = []planner.Conflict{}
	}
	return &ConflictsResult{Name: addon.Name, Conflicts: conflicts}, nil
}
