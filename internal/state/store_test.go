package state

import (
	"testing"

	"github.com/danieljhkim/addonctl/internal/fsops"
)

func TestFileRecordStore_LoadMissing(t *testing.T) {
	store := NewFileRecordStore(fsops.NewMemFS())

	rec, err := store.Load("/addons/demo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.HasFiles() || len(rec.Extra) != 0 {
		t.Errorf("expected empty record, got %+v", rec)
	}
}

func TestFileRecordStore_MergeKeepsExistingKeys(t *testing.T) {
	fs := fsops.NewMemFS()
	store := NewFileRecordStore(fs)
	dir := "/addons/demo"

	if err := fs.AtomicWrite(RecordPath(dir), []byte(`{"owner":"ops","files":["old.txt"]}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.SaveFiles(dir, []string{"public/x.css", "app/controller/Index.php"}); err != nil {
		t.Fatalf("SaveFiles failed: %v", err)
	}

	rec, err := store.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(rec.Extra["owner"]) != `"ops"` {
		t.Errorf("owner key lost: %+v", rec.Extra)
	}
	want := []string{"app/controller/Index.php", "public/x.css"}
	if len(rec.Files) != 2 || rec.Files[0] != want[0] || rec.Files[1] != want[1] {
		t.Errorf("Files = %v, want %v", rec.Files, want)
	}

	if _, err := store.Merge(dir, map[string]any{"owner": "dev"}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	rec, _ = store.Load(dir)
	if string(rec.Extra["owner"]) != `"dev"` {
		t.Errorf("owner = %s, want dev", rec.Extra["owner"])
	}
	if !rec.Contains("public/x.css") {
		t.Error("files must survive an unrelated merge")
	}
}

func TestFileRecordStore_SaveEmptyList(t *testing.T) {
	store := NewFileRecordStore(fsops.NewMemFS())

	rec, err := store.SaveFiles("/addons/empty", nil)
	if err != nil {
		t.Fatalf("SaveFiles failed: %v", err)
	}
	if !rec.HasFiles() || len(rec.Files) != 0 {
		t.Errorf("expected recorded empty list, got %v", rec.Files)
	}
}

func TestFileRecordStore_CorruptRecord(t *testing.T) {
	fs := fsops.NewMemFS()
	store := NewFileRecordStore(fs)
	if err := fs.AtomicWrite(RecordPath("/addons/bad"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load("/addons/bad"); err == nil {
		t.Error("expected error for corrupt record")
	}
}
