package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/danieljhkim/addonctl/internal/archive"
	"github.com/danieljhkim/addonctl/internal/engine"
)

// setupTestRoot creates an application root holding the package of a
// "demo" addon with one controller file.
func setupTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	pkgDir := filepath.Join(root, "runtime", "addons")
	if err := os.MkdirAll(pkgDir, 0755); err != nil {
		t.Fatalf("Failed to create package dir: %v", err)
	}

	w, err := archive.Create(afero.NewOsFs(), filepath.Join(pkgDir, "demo.zip"))
	if err != nil {
		t.Fatalf("Failed to create package: %v", err)
	}
	entries := map[string]string{
		"info.ini":                 "name = demo\ntitle = Demo\nversion = 1.0.0\n",
		"app/controller/Index.php": "<?php // demo\n",
	}
	for name, content := range entries {
		if err := w.AddBytes(name, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to write package: %v", err)
	}

	return root
}

// runCommand executes the CLI with fresh flag values and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	jsonOutput = false
	rootDir = ""
	verbosity = 0
	installForce, uninstallForce = false, false
	enableForce, disableForce = false, false

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	rootCmd.SetArgs(args)
	var bufErr bytes.Buffer
	rootCmd.SetErr(&bufErr)
	err := rootCmd.Execute()

	_ = w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String(), err
}

func TestListCommand_Empty(t *testing.T) {
	root := setupTestRoot(t)

	output, err := runCommand(t, "--root", root, "--json", "list")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var result engine.ListResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v, output: %q", err, output)
	}
	if len(result.Addons) != 0 {
		t.Errorf("expected no addons, got %d", len(result.Addons))
	}
}

func TestLifecycleCommands(t *testing.T) {
	root := setupTestRoot(t)
	live := filepath.Join(root, "app", "controller", "Index.php")

	if _, err := runCommand(t, "--root", root, "install", "demo"); err != nil {
		t.Fatalf("install error = %v", err)
	}
	if _, err := os.Stat(live); err != nil {
		t.Fatalf("expected %s after install: %v", live, err)
	}

	output, err := runCommand(t, "--root", root, "--json", "info", "demo")
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	var info engine.InfoResult
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		t.Fatalf("invalid info JSON: %v, output: %q", err, output)
	}
	if len(info.Files) != 1 || info.Files[0] != "app/controller/Index.php" {
		t.Errorf("info.Files = %v", info.Files)
	}

	if err := os.WriteFile(live, []byte("edited"), 0644); err != nil {
		t.Fatal(err)
	}

	output, err = runCommand(t, "--root", root, "--json", "disable", "demo")
	if !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("disable error = %v, want conflict", err)
	}
	if !strings.Contains(output, "app/controller/Index.php") {
		t.Errorf("expected conflict list in output, got %q", output)
	}

	if _, err := runCommand(t, "--root", root, "disable", "--force", "demo"); err != nil {
		t.Fatalf("disable --force error = %v", err)
	}
	if _, err := os.Stat(live); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat error = %v", live, err)
	}

	if _, err := runCommand(t, "--root", root, "backup", "demo"); err != nil {
		t.Fatalf("backup error = %v", err)
	}

	if _, err := runCommand(t, "--root", root, "uninstall", "demo"); err != nil {
		t.Fatalf("uninstall error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "addons", "demo")); !os.IsNotExist(err) {
		t.Errorf("expected addon directory to be removed, stat error = %v", err)
	}
}

func TestInstallCommand_UnknownAddon(t *testing.T) {
	root := setupTestRoot(t)

	_, err := runCommand(t, "--root", root, "install", "missing")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("install error = %v, want not found", err)
	}
}

func TestRefreshCommand(t *testing.T) {
	root := setupTestRoot(t)

	if _, err := runCommand(t, "--root", root, "refresh"); err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	for _, rel := range []string{"public/assets/js/addons.js", "config/addons.json"} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s: %v", rel, err)
		}
	}
}
