package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPaths(t *testing.T) {
	t.Run("respects ADDONCTL_ROOT", func(t *testing.T) {
		customRoot := t.TempDir()
		t.Setenv("ADDONCTL_ROOT", customRoot)

		paths, err := DefaultPaths()
		require.NoError(t, err)

		assert.Equal(t, customRoot, paths.Root)
		assert.Equal(t, filepath.Join(customRoot, "addons"), paths.Addons)
		assert.Equal(t, filepath.Join(customRoot, "runtime", "addons"), paths.Backups)
		assert.Equal(t, filepath.Join(customRoot, "config", "addonctl.toml"), paths.ConfigFile)
	})

	t.Run("falls back to the working directory", func(t *testing.T) {
		t.Setenv("ADDONCTL_ROOT", "")

		paths, err := DefaultPaths()
		require.NoError(t, err)

		cwd, err := os.Getwd()
		require.NoError(t, err)
		assert.Equal(t, cwd, paths.Root)
	})
}

func TestPaths_EnsureDirectories(t *testing.T) {
	t.Run("creates all necessary directories", func(t *testing.T) {
		paths := NewPaths(filepath.Join(t.TempDir(), "a", "b", "site"))

		require.NoError(t, paths.EnsureDirectories())

		for _, dir := range []string{paths.Addons, paths.Runtime, paths.Backups, paths.Locks, paths.ConfigDir} {
			assert.DirExists(t, dir)
		}
	})

	t.Run("succeeds if directories already exist", func(t *testing.T) {
		paths := NewPaths(t.TempDir())

		require.NoError(t, paths.EnsureDirectories())
		assert.NoError(t, paths.EnsureDirectories())
	})
}
