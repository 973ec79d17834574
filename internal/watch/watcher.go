// Package watch reports drift between enabled addons and the live tree.
//
// The watcher observes the live directories holding projected files. When
// one of them changes it re-runs conflict detection for the owning addon and
// reports the result. It never modifies anything.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/registry"
	"github.com/danieljhkim/addonctl/internal/state"
)

// DefaultDebounce groups the bursts of events editors produce for one save.
const DefaultDebounce = 100 * time.Millisecond

// Drift describes how an addon's projected files diverged from its copies.
type Drift struct {
	Addon string `json:"addon"`

	// Changed are live files whose content differs from the addon's copy
	Changed []string `json:"changed"`

	// Missing are recorded live files that no longer exist
	Missing []string `json:"missing"`
}

// Empty reports whether nothing drifted.
func (d *Drift) Empty() bool {
	return len(d.Changed) == 0 && len(d.Missing) == 0
}

// Watcher watches enabled addons' live files.
type Watcher struct {
	fs       fsops.FS
	registry registry.Registry
	records  state.RecordStore
	detector *planner.Detector
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	onDrift func(Drift)
}

// New creates a Watcher. A non-positive debounce uses DefaultDebounce.
func New(fs fsops.FS, reg registry.Registry, records state.RecordStore, detector *planner.Detector, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		fs:       fs,
		registry: reg,
		records:  records,
		detector: detector,
		debounce: debounce,
		logger:   logging.GetLogger("watch"),
	}
}

// SetDriftCallback sets the function called for every non-empty drift.
func (w *Watcher) SetDriftCallback(cb func(Drift)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDrift = cb
}

// Owners maps every recorded live path of an enabled addon to that addon.
func (w *Watcher) Owners() (map[string]string, error) {
	addons, err := w.registry.List()
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)
	for _, addon := range addons {
		if !addon.Info.Enabled() {
			continue
		}
		rec, err := w.records.Load(addon.Dir)
		if err != nil {
			w.logger.Warn().Err(err).Str("addon", addon.Name).Msg("Skipping addon with unreadable record")
			continue
		}
		for _, rel := range rec.Files {
			owners[rel] = addon.Name
		}
	}
	return owners, nil
}

// Check compares one addon's projected files with the live tree.
func (w *Watcher) Check(name string) (*Drift, error) {
	addon, err := w.registry.Get(name)
	if err != nil {
		return nil, err
	}

	changed, err := w.detector.Detect(addon.Name, addon.Dir, true)
	if err != nil {
		return nil, fmt.Errorf("failed to detect conflicts: %w", err)
	}

	rec, err := w.records.Load(addon.Dir)
	if err != nil {
		return nil, err
	}

	drift := &Drift{Addon: addon.Name, Changed: changed, Missing: []string{}}
	if drift.Changed == nil {
		drift.Changed = []string{}
	}
	for _, rel := range rec.Files {
		ok, err := w.fs.Exists(w.detector.LivePath(rel))
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", rel, err)
		}
		if !ok {
			drift.Missing = append(drift.Missing, rel)
		}
	}
	return drift, nil
}

// Run watches until ctx is cancelled. The set of watched paths is taken
// once at start.
func (w *Watcher) Run(ctx context.Context) error {
	owners, err := w.Owners()
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()

	for _, dir := range w.watchDirs(owners) {
		if err := fw.Add(dir); err != nil {
			w.logger.Debug().Err(err).Str("dir", dir).Msg("Cannot watch directory")
		}
	}
	w.logger.Info().Int("files", len(owners)).Int("dirs", len(fw.WatchList())).Msg("Watching projected files")

	timer := time.NewTimer(0)
	<-timer.C

	pending := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(w.detector.LiveRoot(), event.Name)
			if err != nil {
				continue
			}
			addon, ok := owners[filepath.ToSlash(rel)]
			if !ok {
				continue
			}
			pending[addon] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			pending = make(map[string]struct{})
			sort.Strings(names)

			for _, name := range names {
				w.report(name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) report(name string) {
	drift, err := w.Check(name)
	if err != nil {
		w.logger.Warn().Err(err).Str("addon", name).Msg("Drift check failed")
		return
	}
	if drift.Empty() {
		return
	}

	w.logger.Info().Str("addon", name).Strs("changed", drift.Changed).Strs("missing", drift.Missing).Msg("Drift detected")

	w.mu.Lock()
	cb := w.onDrift
	w.mu.Unlock()
	if cb != nil {
		cb(*drift)
	}
}

// watchDirs returns the distinct existing live directories holding the
// given paths.
func (w *Watcher) watchDirs(owners map[string]string) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for rel := range owners {
		dir := filepath.Dir(w.detector.LivePath(rel))
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if w.fs.IsDir(dir) {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}
