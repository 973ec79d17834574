package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateRelPath(t *testing.T) {
	fs := NewMemFS()

	tests := []struct {
		name      string
		path      string
		wantError bool
	}{
		{
			name:      "valid relative path",
			path:      "app/controller/Index.php",
			wantError: false,
		},
		{
			name:      "valid single file",
			path:      "file.txt",
			wantError: false,
		},
		{
			name:      "empty path",
			path:      "",
			wantError: true,
		},
		{
			name:      "current directory",
			path:      ".",
			wantError: true,
		},
		{
			name:      "absolute path",
			path:      "/etc/hosts",
			wantError: true,
		},
		{
			name:      "parent directory traversal",
			path:      "../etc/hosts",
			wantError: true,
		},
		{
			name:      "traversal in middle",
			path:      "foo/../../../etc/hosts",
			wantError: true,
		},
		{
			name:      "dotted file name is not traversal",
			path:      "..config/file.txt",
			wantError: false,
		},
		{
			name:      "path with dot prefix",
			path:      ".hidden/file.txt",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateRelPath(tt.path)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateRelPath(%q) error = %v, wantError %v", tt.path, err, tt.wantError)
			}
		})
	}
}

func TestValidateIdentifier(t *testing.T) {
	fs := NewMemFS()

	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{"simple", "demo", false},
		{"mixed case and digits", "Cms2", false},
		{"empty", "", true},
		{"dash", "my-addon", true},
		{"underscore", "my_addon", true},
		{"parent directory", "..", true},
		{"separator", "demo/sub", true},
		{"backslash", "demo\\sub", true},
		{"unicode letter", "démo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantError %v", tt.id, err, tt.wantError)
			}
		})
	}
}

func writeFile(t *testing.T, fs FS, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := fs.AtomicWrite(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, fs FS, path string) string {
	t.Helper()
	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestExists(t *testing.T) {
	fs := NewMemFS()
	writeFile(t, fs, "/root/exists.txt", "x")

	exists, err := fs.Exists("/root/exists.txt")
	if err != nil || !exists {
		t.Errorf("Exists(existing) = %v, %v; want true, nil", exists, err)
	}

	exists, err = fs.Exists("/root/missing.txt")
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}

	if !fs.IsDir("/root") {
		t.Error("IsDir should be true for directory")
	}
	if fs.IsDir("/root/exists.txt") {
		t.Error("IsDir should be false for file")
	}
	if !fs.IsFile("/root/exists.txt") {
		t.Error("IsFile should be true for file")
	}
	if fs.IsFile("/root") {
		t.Error("IsFile should be false for directory")
	}
}

func TestCopy_MergesDirectories(t *testing.T) {
	fs := NewMemFS()
	writeFile(t, fs, "/addon/app/controller/Index.php", "addon index")
	writeFile(t, fs, "/addon/app/view/a.html", "view")
	writeFile(t, fs, "/live/app/controller/Other.php", "other")
	writeFile(t, fs, "/live/app/controller/Index.php", "old index")

	if err := fs.Copy("/addon/app", "/live/app"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	if got := readFile(t, fs, "/live/app/controller/Index.php"); got != "addon index" {
		t.Errorf("Index.php = %q, want overwritten content", got)
	}
	if got := readFile(t, fs, "/live/app/controller/Other.php"); got != "other" {
		t.Errorf("Other.php = %q, merge should keep unrelated files", got)
	}
	if got := readFile(t, fs, "/live/app/view/a.html"); got != "view" {
		t.Errorf("a.html = %q, want copied", got)
	}
}

func TestCopy_TypeMismatchReplacesDestination(t *testing.T) {
	fs := NewMemFS()
	writeFile(t, fs, "/src/thing", "file now")
	writeFile(t, fs, "/dst/thing/inner.txt", "was a dir")

	if err := fs.Copy("/src/thing", "/dst/thing"); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if !fs.IsFile("/dst/thing") {
		t.Fatal("destination should now be a file")
	}
	if got := readFile(t, fs, "/dst/thing"); got != "file now" {
		t.Errorf("content = %q", got)
	}
}

func TestCopy_MissingSource(t *testing.T) {
	fs := NewMemFS()
	if err := fs.Copy("/nope", "/dst"); err == nil {
		t.Error("Copy should fail for missing source")
	}
}

func TestAtomicWrite(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		fs := NewMemFS()
		writeFile(t, fs, "/out/file.txt", "first")
		if err := fs.AtomicWrite("/out/file.txt", []byte("second"), 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}
		if got := readFile(t, fs, "/out/file.txt"); got != "second" {
			t.Errorf("content = %q, want %q", got, "second")
		}

		entries, err := fs.ReadDir("/out")
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the target file, found %d entries", len(entries))
		}
	})

	t.Run("disk creates parents", func(t *testing.T) {
		fs := NewRealFS()
		target := filepath.Join(t.TempDir(), "a", "b", "file.txt")
		if err := fs.AtomicWrite(target, []byte("content"), 0600); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}
		info, err := os.Stat(target)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %v, want 0600", info.Mode().Perm())
		}
	})
}

func TestPruneEmptyDirs(t *testing.T) {
	fs := NewMemFS()
	writeFile(t, fs, "/live/app/keep.txt", "keep")
	if err := fs.MkdirAll("/live/app/controller/admin", 0755); err != nil {
		t.Fatal(err)
	}

	fs.PruneEmptyDirs("/live/app/controller/admin", "/live")

	if fs.IsDir("/live/app/controller") {
		t.Error("empty controller directory should be pruned")
	}
	if !fs.IsDir("/live/app") {
		t.Error("non-empty app directory must survive")
	}

	if err := fs.MkdirAll("/live/empty", 0755); err != nil {
		t.Fatal(err)
	}
	fs.PruneEmptyDirs("/live/empty", "/live")
	if !fs.IsDir("/live") {
		t.Error("stop directory must never be removed")
	}

	fs.PruneEmptyDirs("/elsewhere/dir", "/live")
}

func TestRemoveEmptyTree(t *testing.T) {
	fs := NewMemFS()
	if err := fs.MkdirAll("/addon/app/controller/deep", 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, fs, "/addon/templates/x.html", "x")
	if err := fs.MkdirAll("/addon/templates/empty", 0755); err != nil {
		t.Fatal(err)
	}

	fs.RemoveEmptyTree("/addon/app")
	fs.RemoveEmptyTree("/addon/templates")

	if fs.IsDir("/addon/app") {
		t.Error("fully empty tree should be removed")
	}
	if fs.IsDir("/addon/templates/empty") {
		t.Error("empty subdirectory should be removed")
	}
	if !fs.IsFile("/addon/templates/x.html") {
		t.Error("files must be untouched")
	}
}

func TestRename_CreatesParent(t *testing.T) {
	fs := NewMemFS()
	writeFile(t, fs, "/a/file.txt", "moved")

	if err := fs.Rename("/a/file.txt", "/b/c/file.txt"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if got := readFile(t, fs, "/b/c/file.txt"); got != "moved" {
		t.Errorf("content = %q", got)
	}
	if exists, _ := fs.Exists("/a/file.txt"); exists {
		t.Error("source should be gone")
	}
}
