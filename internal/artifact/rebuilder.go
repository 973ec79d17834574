// Package artifact regenerates the files derived from the set of enabled
// addons: the combined bootstrap bundle and the hook/route registration
// table.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/addonctl/internal/cache"
	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/lock"
	"github.com/danieljhkim/addonctl/internal/logging"
	"github.com/danieljhkim/addonctl/internal/registry"
)

// ErrWriteError is returned when a derived artifact cannot be written.
var ErrWriteError = errors.New("write error")

// BundleTemplate wraps the concatenated bootstrap fragments.
const BundleTemplate = "define([], function () {\n    {__JS__}\n});"

const jsPlaceholder = "{__JS__}"

// Table is the registration table written when autoload is off.
type Table struct {
	Autoload bool                          `json:"autoload" yaml:"autoload" toml:"autoload"`
	Addons   map[string]hooks.Registration `json:"addons" yaml:"addons" toml:"addons"`
}

// Rebuilder regenerates derived artifacts.
type Rebuilder struct {
	fs       fsops.FS
	registry registry.Registry
	resolver *hooks.Resolver
	cache    cache.Invalidator
	locks    *lock.Manager
	cfg      config.Artifact
	keys     []string
	root     string
	logger   zerolog.Logger
}

// NewRebuilder creates a Rebuilder. Artifact paths in cfg are relative to root.
// locks may be nil when the caller already serializes rebuilds.
func NewRebuilder(
	fs fsops.FS,
	reg registry.Registry,
	resolver *hooks.Resolver,
	inv cache.Invalidator,
	locks *lock.Manager,
	cfg config.Artifact,
	cacheKeys []string,
	root string,
) *Rebuilder {
	if inv == nil {
		inv = cache.Nop{}
	}
	return &Rebuilder{
		fs:       fs,
		registry: reg,
		resolver: resolver,
		cache:    inv,
		locks:    locks,
		cfg:      cfg,
		keys:     cacheKeys,
		root:     root,
		logger:   logging.GetLogger("artifact"),
	}
}

// BundlePath returns the absolute bundle location.
func (r *Rebuilder) BundlePath() string {
	return filepath.Join(r.root, filepath.FromSlash(r.cfg.BundlePath))
}

// TablePath returns the absolute registration table location.
func (r *Rebuilder) TablePath() string {
	return filepath.Join(r.root, filepath.FromSlash(r.cfg.RegistryFile))
}

// Rebuild rewrites the bundle, invalidates the cache keys and, unless
// autoload is on, rewrites the registration table. Write failures are fatal.
func (r *Rebuilder) Rebuild(ctx context.Context) error {
	if r.locks != nil {
		unlock, err := r.locks.Global(ctx)
		if err != nil {
			return err
		}
		defer unlock()
	}

	addons, err := r.registry.List()
	if err != nil {
		return err
	}

	bundle, err := r.Bundle(addons)
	if err != nil {
		return err
	}
	if err := r.fs.AtomicWrite(r.BundlePath(), bundle, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteError, r.cfg.BundlePath, err)
	}

	if err := r.cache.Invalidate(ctx, r.keys...); err != nil {
		r.logger.Warn().Err(err).Msg("Cache invalidation failed")
	}

	if !r.cfg.Autoload {
		data, err := r.EncodeTable(r.Table(addons))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteError, r.cfg.RegistryFile, err)
		}
		if err := r.fs.AtomicWrite(r.TablePath(), data, 0644); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWriteError, r.cfg.RegistryFile, err)
		}
	}

	r.logger.Debug().Int("addons", len(addons)).Bool("autoload", r.cfg.Autoload).Msg("Artifacts rebuilt")
	return nil
}

// Bundle concatenates the bootstrap fragments of enabled addons in the order
// given, which List keeps sorted by name.
func (r *Rebuilder) Bundle(addons []*registry.Addon) ([]byte, error) {
	var fragments []string
	for _, addon := range addons {
		if !addon.Info.Enabled() || !r.registry.HasFile(addon.Name, registry.BootstrapFile) {
			continue
		}
		data, err := r.fs.ReadFile(r.registry.File(addon.Name, registry.BootstrapFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read bootstrap of %s: %w", addon.Name, err)
		}
		fragments = append(fragments, string(data))
	}
	return []byte(strings.Replace(BundleTemplate, jsPlaceholder, strings.Join(fragments, "\n"), 1)), nil
}

// Table builds the registration table for enabled addons.
func (r *Rebuilder) Table(addons []*registry.Addon) *Table {
	table := &Table{Autoload: false, Addons: make(map[string]hooks.Registration)}
	for _, addon := range addons {
		if !addon.Info.Enabled() {
			continue
		}
		var h hooks.Hook
		if r.resolver != nil {
			h = r.resolver.Resolve(addon.Name, addon.Dir)
		}
		table.Addons[addon.Name] = hooks.RegistrationFor(h, addon.Info)
	}
	return table
}

// EncodeTable serializes the table in the format chosen by the file extension.
func (r *Rebuilder) EncodeTable(table *Table) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(r.cfg.RegistryFile)) {
	case ".yaml", ".yml":
		return yaml.Marshal(table)
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(table); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(table, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}
