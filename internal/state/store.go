package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danieljhkim/addonctl/internal/fsops"
)

// RecordStore persists overlay records.
type RecordStore interface {
	// Load reads the record of an addon directory. A missing file yields an
	// empty record.
	Load(addonDir string) (*Record, error)

	// Merge writes changes on top of the existing record and returns the result.
	Merge(addonDir string, changes map[string]any) (*Record, error)

	// SaveFiles sets the "files" key, keeping every other key.
	SaveFiles(addonDir string, files []string) (*Record, error)
}

// FileRecordStore implements RecordStore with .addonrc files.
type FileRecordStore struct {
	fs fsops.FS
}

// NewFileRecordStore creates a new FileRecordStore.
func NewFileRecordStore(fs fsops.FS) *FileRecordStore {
	return &FileRecordStore{fs: fs}
}

// Load reads the record of an addon directory.
func (s *FileRecordStore) Load(addonDir string) (*Record, error) {
	data, err := s.fs.ReadFile(RecordPath(addonDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &Record{}, nil
		}
		return nil, fmt.Errorf("failed to read overlay record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overlay record: %w", err)
	}
	return &rec, nil
}

// Merge writes changes on top of the existing record.
func (s *FileRecordStore) Merge(addonDir string, changes map[string]any) (*Record, error) {
	rec, err := s.Load(addonDir)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return rec, nil
	}

	for k, v := range changes {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %q: %w", k, err)
		}
		if k == filesKey {
			var files []string
			if err := json.Unmarshal(raw, &files); err != nil {
				return nil, fmt.Errorf("%q must be a list of paths: %w", k, err)
			}
			rec.Files = normalizeFiles(files)
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = raw
	}

	if err := s.write(addonDir, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveFiles sets the "files" key.
func (s *FileRecordStore) SaveFiles(addonDir string, files []string) (*Record, error) {
	return s.Merge(addonDir, map[string]any{filesKey: files})
}

func (s *FileRecordStore) write(addonDir string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal overlay record: %w", err)
	}
	if err := s.fs.AtomicWrite(RecordPath(addonDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write overlay record: %w", err)
	}
	return nil
}
