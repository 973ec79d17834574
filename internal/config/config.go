package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g.
// ADDONCTL_BACKUP_GLOBAL_FILES=false sets backup.global_files.
const EnvPrefix = "ADDONCTL_"

// Config is the complete addonctl configuration.
type Config struct {
	Overlay  Overlay  `koanf:"overlay"`
	Backup   Backup   `koanf:"backup"`
	Artifact Artifact `koanf:"artifact"`
	Cache    Cache    `koanf:"cache"`
	Database Database `koanf:"database"`
	Upload   Upload   `koanf:"upload"`
	Lock     Lock     `koanf:"lock"`
}

// Overlay describes the tracked directory set: which top-level addon
// directories are projected onto the live tree and where assets land.
type Overlay struct {
	// TrackedDirs map to the identically named live top-level directory
	TrackedDirs []string `koanf:"tracked_dirs"`

	// AssetsDir is the addon-private assets directory
	AssetsDir string `koanf:"assets_dir"`

	// AssetsPublic is the live prefix; assets land in <AssetsPublic>/<addon>/
	AssetsPublic string `koanf:"assets_public"`

	// Ignore lists glob patterns (matched against live-relative paths)
	// that are never projected
	Ignore []string `koanf:"ignore"`
}

// Backup controls conflict backups.
type Backup struct {
	// GlobalFiles archives conflicting live files before enable/disable
	GlobalFiles bool `koanf:"global_files"`
}

// Artifact controls the derived aggregate artifacts.
type Artifact struct {
	// BundlePath is the aggregate bootstrap bundle, relative to the root
	BundlePath string `koanf:"bundle_path"`

	// RegistryFile is the registration table, relative to the root.
	// The extension (.json, .yaml, .yml, .toml) selects the encoding.
	RegistryFile string `koanf:"registry_file"`

	// Autoload skips writing the registration table
	Autoload bool `koanf:"autoload"`
}

// Cache configures downstream cache invalidation.
type Cache struct {
	// RedisAddr enables redis invalidation when set
	RedisAddr string `koanf:"redis_addr"`

	RedisDB int `koanf:"redis_db"`

	// Keys are deleted after every lifecycle change
	Keys []string `koanf:"keys"`
}

// Database configures the seed runner. An empty DSN disables seeding.
type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Prefix string `koanf:"prefix"`
}

// Upload bounds uploaded packages.
type Upload struct {
	MaxBytes   int64    `koanf:"max_bytes"`
	Extensions []string `koanf:"extensions"`
}

// Lock configures advisory locking.
type Lock struct {
	Timeout time.Duration `koanf:"timeout"`
}

// ScanDirs returns every addon directory that takes part in projection:
// the tracked directories followed by the assets directory.
func (o Overlay) ScanDirs() []string {
	dirs := make([]string, 0, len(o.TrackedDirs)+1)
	dirs = append(dirs, o.TrackedDirs...)
	return append(dirs, o.AssetsDir)
}

// AssetsTarget returns the live-relative, slash-separated directory that
// an addon's assets are projected into.
func (o Overlay) AssetsTarget(name string) string {
	return path.Join(o.AssetsPublic, name)
}

func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		"overlay.tracked_dirs":   []string{"app", "public", "templates"},
		"overlay.assets_dir":     "assets",
		"overlay.assets_public":  "public/assets/addons",
		"overlay.ignore":         []string{},
		"backup.global_files":    true,
		"artifact.bundle_path":   "public/assets/js/addons.js",
		"artifact.registry_file": "config/addons.json",
		"artifact.autoload":      false,
		"cache.redis_addr":       "",
		"cache.redis_db":         0,
		"cache.keys":             []string{"addons", "hooks"},
		"database.driver":        "mysql",
		"database.dsn":           "",
		"database.prefix":        "",
		"upload.max_bytes":       int64(102400000),
		"upload.extensions":      []string{".zip"},
		"lock.timeout":           "30s",
	}
}

// Default returns the configuration with no files or environment applied.
func Default() *Config {
	cfg, err := load(nil)
	if err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	return cfg
}

// UserConfigFile returns the per-user config file location.
func UserConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "addonctl", "config.toml")
}

// Load merges defaults, the user config file, the project config file and
// ADDONCTL_ environment variables, in increasing precedence.
func Load(paths *Paths) (*Config, error) {
	files := []string{UserConfigFile()}
	if paths != nil {
		files = append(files, paths.ConfigFile)
	}
	return load(files)
}

func load(files []string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := k.Load(file.Provider(f), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", f, err)
		}
	}

	if files != nil {
		err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
			// Only the first underscore separates section from key.
			return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load env vars: %w", err)
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Overlay.TrackedDirs) == 0 {
		return fmt.Errorf("invalid config: overlay.tracked_dirs is empty")
	}
	for _, dir := range c.Overlay.ScanDirs() {
		if dir == "" || strings.ContainsAny(dir, `/\`) || dir == "." || dir == ".." {
			return fmt.Errorf("invalid config: tracked directory %q must be a single path element", dir)
		}
	}
	for _, dir := range c.Overlay.TrackedDirs {
		if dir == c.Overlay.AssetsDir {
			return fmt.Errorf("invalid config: assets_dir %q is also a tracked directory", dir)
		}
	}
	if c.Overlay.AssetsPublic == "" || path.IsAbs(c.Overlay.AssetsPublic) {
		return fmt.Errorf("invalid config: overlay.assets_public must be a relative path")
	}

	switch strings.ToLower(filepath.Ext(c.Artifact.RegistryFile)) {
	case ".json", ".yaml", ".yml", ".toml":
	default:
		return fmt.Errorf("invalid config: unsupported registry file format %q", c.Artifact.RegistryFile)
	}

	switch c.Database.Driver {
	case "", "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid config: unsupported database driver %q", c.Database.Driver)
	}

	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("invalid config: lock.timeout must be positive")
	}
	return nil
}
