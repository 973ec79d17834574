package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/danieljhkim/addonctl/internal/artifact"
	"github.com/danieljhkim/addonctl/internal/backup"
	"github.com/danieljhkim/addonctl/internal/cache"
	"github.com/danieljhkim/addonctl/internal/clock"
	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/engine"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/hash"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/installer"
	"github.com/danieljhkim/addonctl/internal/lock"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/overlay"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/registry"
	"github.com/danieljhkim/addonctl/internal/seed"
	"github.com/danieljhkim/addonctl/internal/state"
	"github.com/danieljhkim/addonctl/internal/watch"
)

// hookTable holds in-process addon hooks registered by the host binary.
var hookTable = hooks.NewTable()

// RegisterHook makes an in-process hook available to the named addon. It
// takes precedence over scripts shipped in the addon's hooks/ directory.
func RegisterHook(name string, factory hooks.Factory) {
	hookTable.Register(name, factory)
}

// app bundles the engine with the resources it holds open.
type app struct {
	paths   *config.Paths
	config  *config.Config
	engine  *engine.Engine
	watcher *watch.Watcher
	closers []func() error
}

// Close releases the database and cache connections.
func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// resolvePaths honors --root before ADDONCTL_ROOT and the working directory.
func resolvePaths() (*config.Paths, error) {
	if rootDir == "" {
		return config.DefaultPaths()
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", rootDir, err)
	}
	return config.NewPaths(abs), nil
}

// newApp creates an engine with real implementations of all dependencies.
func newApp() (*app, error) {
	paths, err := resolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logging.SetupLogger(verbosity, paths.LogFile)

	cfg, err := config.Load(paths)
	if err != nil {
		return nil, err
	}

	a := &app{paths: paths, config: cfg}

	db, err := seed.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	// A nil *sql.DB must not become a non-nil Execer.
	var execer seed.Execer
	if db != nil {
		execer = db
		a.closers = append(a.closers, db.Close)
	}

	inv := cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	a.closers = append(a.closers, inv.Close)

	fs := fsops.NewRealFS()
	hasher := hash.NewSHA256Hasher(fs.Afero())
	clk := &clock.RealClock{}

	reg := registry.NewFileRegistry(fs, paths.Addons)
	records := state.NewFileRecordStore(fs)
	detector, err := planner.NewDetector(fs, hasher, cfg.Overlay, paths.Root)
	if err != nil {
		a.Close()
		return nil, err
	}
	resolver := hooks.NewResolver(fs, hookTable)
	locks := lock.NewManager(paths.Locks, cfg.Lock.Timeout)

	a.engine = engine.New(
		fs,
		reg,
		records,
		detector,
		overlay.NewEngine(fs, detector, records, cfg.Overlay),
		installer.New(fs),
		backup.NewArchiver(fs, clk, paths.Backups, paths.Root),
		resolver,
		seed.NewRunner(fs, execer, cfg.Database.Driver, cfg.Database.Prefix),
		artifact.NewRebuilder(fs, reg, resolver, inv, locks, cfg.Artifact, cfg.Cache.Keys, paths.Root),
		locks,
		cfg,
		*paths,
	)
	a.watcher = watch.New(fs, reg, records, detector, watchDebounce)

	return a, nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	initColors()
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportConflicts prints the offending paths of a conflict error. It returns
// err unchanged so callers can write `return reportConflicts(err)`.
func reportConflicts(err error) error {
	var conflict *engine.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}

	if jsonOutput {
		_ = outputJSON(map[string]interface{}{
			"error":     engine.ErrConflict.Error(),
			"addon":     conflict.Addon,
			"conflicts": conflict.Paths,
		})
		return err
	}

	PrintSection("Conflicts Detected")
	PrintList(conflict.Paths, 1)
	fmt.Println()
	PrintWarning("Use --force to override conflicts.")
	return err
}
