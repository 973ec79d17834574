package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/danieljhkim/addonctl/internal/backup"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/registry"
	"github.com/danieljhkim/addonctl/internal/seed"
)

// PackagePath returns where Install looks for an addon's package.
func (e *Engine) PackagePath(name string) string {
	return filepath.Join(e.paths.Backups, name+".zip")
}

// Install extracts <backups>/<name>.zip into a new addon directory, runs the
// install hook and seed, and enables the addon.
//
// The package is extracted and checked in a staging directory first. An
// addon being reinstalled with Force is only retracted and replaced once
// that succeeds. Any later failure removes the new directory again, so an
// install either completes or leaves no addon behind.
func (e *Engine) Install(ctx context.Context, req *InstallRequest) (result *InstallResult, err error) {
	defer logging.LogOperationStart(e.logger, "install", req.Name)()

	unlock, err := e.lockAddon(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := e.registry.Exists(req.Name)
	if err != nil {
		return nil, err
	}
	if exists && !req.Force {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, req.Name)
	}

	pkg := e.PackagePath(req.Name)
	if !e.fs.IsFile(pkg) {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, pkg)
	}

	info, err := e.installer.ReadManifest(pkg)
	if err != nil {
		return nil, err
	}
	if info.Name != req.Name {
		return nil, fmt.Errorf("%w: package declares %q, expected %q", ErrManifestInvalid, info.Name, req.Name)
	}

	staging, err := e.unpack(ctx, req.Name, pkg)
	if err != nil {
		return nil, err
	}
	defer e.removeDir(req.Name, staging)

	if exists {
		if err := e.replace(req.Name); err != nil {
			return nil, err
		}
	}

	dir := e.registry.Dir(req.Name)
	projecting := false
	defer func() {
		if err != nil {
			e.rollback(req.Name, dir, projecting)
		}
	}()

	if err := e.fs.Rename(staging, dir); err != nil {
		return nil, fmt.Errorf("failed to move addon into place: %w", err)
	}

	addon, err := e.registry.Get(req.Name)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		if err := e.noconflict(addon, false); err != nil {
			return nil, err
		}
	}

	seeded, err := e.setup(ctx, addon, e.hookFor(addon))
	if err != nil {
		return nil, err
	}

	projecting = true
	toggled, err := e.enable(ctx, addon, true)
	if err != nil {
		return nil, err
	}

	result = e.installResult(addon, seeded)
	result.Files = toggled.Files
	return result, nil
}

// unpack extracts pkg into a staging directory beside the addon directories
// and runs the manifest check there. The staging directory is removed on
// failure.
func (e *Engine) unpack(ctx context.Context, name, pkg string) (string, error) {
	staging := filepath.Join(e.paths.Addons, "."+name+"-"+uuid.NewString())

	err := e.installer.Extract(pkg, staging)
	if err == nil {
		var info *manifest.Info
		info, err = manifest.ReadDir(e.fs, staging)
		if err == nil {
			err = e.checkInfo(ctx, name, info, e.resolver.Resolve(name, staging))
		}
	}
	if err != nil {
		e.removeDir(name, staging)
		return "", err
	}
	return staging, nil
}

// replace retracts an installed addon and deletes its directory. Live files
// edited since it was enabled are backed up first.
func (e *Engine) replace(name string) error {
	dir := e.registry.Dir(name)

	if old, err := e.registry.Get(name); err == nil {
		if _, err := e.guard(old, true, true, backup.TagConflictDisable); err != nil {
			return err
		}
	} else {
		e.logger.Warn().Err(err).Str("addon", name).Msg("Replacing addon with unreadable manifest")
	}

	if _, err := e.overlay.Retract(name, dir); err != nil {
		return fmt.Errorf("failed to retract %s: %w", name, err)
	}
	if err := e.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove previous install of %s: %w", name, err)
	}

	e.logger.Info().Str("addon", name).Msg("Previous install replaced")
	return nil
}

func (e *Engine) removeDir(name, dir string) {
	if err := e.fs.RemoveAll(dir); err != nil {
		e.logger.Debug().Err(err).Str("addon", name).Str("dir", dir).Msg("Failed to remove directory")
	}
}

// InstallFromUpload installs an uploaded package. The package is staged in
// the backups directory under a random name and always removed afterwards.
// Unlike Install it never overwrites an existing addon and does not enable
// the new one.
func (e *Engine) InstallFromUpload(ctx context.Context, req *UploadRequest) (result *InstallResult, err error) {
	defer logging.LogOperationStart(e.logger, "upload", req.Filename)()

	if err := e.validateUpload(req); err != nil {
		return nil, err
	}

	staged := filepath.Join(e.paths.Backups, uuid.NewString()+".zip")
	defer func() {
		if rerr := e.fs.Remove(staged); rerr != nil && !os.IsNotExist(rerr) {
			e.logger.Debug().Err(rerr).Str("file", staged).Msg("Failed to remove staged upload")
		}
	}()
	if err := e.stage(req, staged); err != nil {
		return nil, err
	}

	info, err := e.installer.ReadManifest(staged)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lockAddon(ctx, info.Name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := e.registry.Create(info.Name); err != nil {
		return nil, err
	}

	dir := e.registry.Dir(info.Name)
	defer func() {
		if err != nil {
			e.rollback(info.Name, dir, false)
		}
	}()

	if err := e.installer.Extract(staged, dir); err != nil {
		return nil, err
	}

	addon, err := e.registry.Get(info.Name)
	if err != nil {
		return nil, err
	}

	hook := e.hookFor(addon)
	if err := e.checkInfo(ctx, addon.Name, addon.Info, hook); err != nil {
		return nil, err
	}

	seeded, err := e.setup(ctx, addon, hook)
	if err != nil {
		return nil, err
	}

	return e.installResult(addon, seeded), nil
}

// setup marks the addon installed, runs its install hook and applies
// install.sql. Seed failures are logged only.
func (e *Engine) setup(ctx context.Context, addon *registry.Addon, hook hooks.Hook) (seed.Result, error) {
	addon.Info.Installed = true
	if err := e.registry.SaveInfo(addon.Name, addon.Info); err != nil {
		return seed.Result{}, fmt.Errorf("failed to save addon info: %w", err)
	}

	if err := hooks.Call(ctx, addon.Name, hook, hooks.OpInstall); err != nil {
		return seed.Result{}, err
	}

	res, err := e.seeder.RunFile(ctx, e.registry.File(addon.Name, registry.InstallSQL))
	if err != nil {
		e.logger.Warn().Err(err).Str("addon", addon.Name).Msg("Install seed skipped")
	}
	return res, nil
}

// rollback removes a half-installed addon. When projection may have started
// its live files are retracted first.
func (e *Engine) rollback(name, dir string, projected bool) {
	if projected {
		if _, err := e.overlay.Retract(name, dir); err != nil {
			e.logger.Warn().Err(err).Str("addon", name).Msg("Rollback retract failed")
		}
	}
	if err := e.fs.RemoveAll(dir); err != nil {
		e.logger.Warn().Err(err).Str("addon", name).Msg("Failed to remove addon directory")
		return
	}
	e.logger.Info().Str("addon", name).Msg("Install rolled back")
}

func (e *Engine) installResult(addon *registry.Addon, seeded seed.Result) *InstallResult {
	return &InstallResult{
		Info:        addon.Info,
		HasConfig:   e.registry.HasFile(addon.Name, registry.ConfigFile),
		HasTestdata: e.registry.HasFile(addon.Name, registry.TestdataSQL),
		Seed:        seeded,
	}
}

func (e *Engine) validateUpload(req *UploadRequest) error {
	if req.Reader == nil {
		return fmt.Errorf("%w: no file uploaded", ErrUploadRejected)
	}
	limit := e.config.Upload.MaxBytes
	if limit > 0 && req.Size > limit {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrUploadRejected, req.Filename, req.Size, limit)
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !slices.Contains(e.config.Upload.Extensions, ext) {
		return fmt.Errorf("%w: extension %q not allowed", ErrUploadRejected, ext)
	}
	return nil
}

// stage copies the upload to path, enforcing the size limit on the actual
// content rather than the declared size.
func (e *Engine) stage(req *UploadRequest, path string) error {
	if err := e.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	f, err := e.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to stage upload: %w", err)
	}

	src := req.Reader
	limit := e.config.Upload.MaxBytes
	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to stage upload: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s is empty", ErrUploadRejected, req.Filename)
	}
	if limit > 0 && n > limit {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrUploadRejected, req.Filename, limit)
	}
	return nil
}
