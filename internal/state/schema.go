package state

import (
	"encoding/json"
	"path/filepath"
	"sort"
)

const (
	// RecordFile is the name of the overlay record inside an addon directory.
	RecordFile = ".addonrc"

	// ShadowDir holds the pristine and displaced trees.
	ShadowDir = ".overlay"

	filesKey = "files"
)

// Record is the persisted overlay state of one addon.
type Record struct {
	// Files lists live-tree relative paths (slash separated) the addon
	// projected, deepest first. Nil when the record holds no "files" key.
	Files []string

	// Extra carries every other key of the JSON object untouched.
	Extra map[string]json.RawMessage
}

// HasFiles reports whether a file list has ever been recorded.
func (r *Record) HasFiles() bool {
	return r.Files != nil
}

// Contains reports whether rel is in the file list.
func (r *Record) Contains(rel string) bool {
	for _, f := range r.Files {
		if f == rel {
			return true
		}
	}
	return false
}

// MarshalJSON flattens Files and Extra into one object.
func (r *Record) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		obj[k] = v
	}
	if r.Files != nil {
		files, err := json.Marshal(r.Files)
		if err != nil {
			return nil, err
		}
		obj[filesKey] = files
	}
	return json.Marshal(obj)
}

// UnmarshalJSON splits the object into Files and Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	r.Files = nil
	r.Extra = nil
	for k, v := range obj {
		if k == filesKey {
			var files []string
			if err := json.Unmarshal(v, &files); err != nil {
				return err
			}
			if files == nil {
				files = []string{}
			}
			r.Files = files
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

// RecordPath returns the location of the record for an addon directory.
func RecordPath(addonDir string) string {
	return filepath.Join(addonDir, RecordFile)
}

// PristineDir holds the addon's own copy of each projected file, keyed by
// live-tree relative path.
func PristineDir(addonDir string) string {
	return filepath.Join(addonDir, ShadowDir, "pristine")
}

// DisplacedDir holds live files the addon overwrote on first projection,
// keyed by live-tree relative path.
func DisplacedDir(addonDir string) string {
	return filepath.Join(addonDir, ShadowDir, "displaced")
}

// normalizeFiles dedups and orders paths deepest first, then lexically.
func normalizeFiles(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = filepath.ToSlash(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := depth(out[i]), depth(out[j])
		if di != dj {
			return di > dj
		}
		return out[i] < out[j]
	})
	return out
}

func depth(rel string) int {
	n := 0
	for _, c := range rel {
		if c == '/' {
			n++
		}
	}
	return n
}
