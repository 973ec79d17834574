// Package manifest reads and writes an addon's info.ini.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/danieljhkim/addonctl/internal/archive"
	"github.com/danieljhkim/addonctl/internal/fsops"
)

// FileName is the manifest entry name, both in archives and addon directories.
const FileName = "info.ini"

var (
	// ErrManifestMissing is returned when no manifest exists.
	ErrManifestMissing = errors.New("manifest missing")

	// ErrManifestInvalid is returned when the manifest cannot be parsed or
	// its name is absent or malformed.
	ErrManifestInvalid = errors.New("manifest invalid")
)

// Status is the enablement state recorded in the manifest.
type Status int

const (
	StatusDisabled Status = 0
	StatusEnabled  Status = 1
)

func (s Status) String() string {
	if s == StatusEnabled {
		return "enabled"
	}
	return "disabled"
}

// Info is the parsed content of info.ini.
type Info struct {
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Author      string            `json:"author,omitempty"`
	Version     string            `json:"version,omitempty"`
	Status      Status            `json:"status"`
	Installed   bool              `json:"installed"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// known keys, in the order they are written
var knownKeys = []string{"name", "title", "intro", "author", "version", "status", "init"}

// Parse decodes info.ini content.
func Parse(data []byte) (*Info, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	sec := cfg.Section(ini.DefaultSection)
	info := &Info{
		Name:        strings.TrimSpace(sec.Key("name").String()),
		Title:       sec.Key("title").String(),
		Description: sec.Key("intro").String(),
		Author:      sec.Key("author").String(),
		Version:     sec.Key("version").String(),
		Installed:   truthy(sec.Key("init").String()),
	}
	if truthy(sec.Key("status").String()) {
		info.Status = StatusEnabled
	}

	for _, key := range sec.Keys() {
		if isKnown(key.Name()) {
			continue
		}
		if info.Extra == nil {
			info.Extra = make(map[string]string)
		}
		info.Extra[key.Name()] = key.String()
	}

	if info.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrManifestInvalid)
	}
	if err := fsops.ValidateName(info.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	return info, nil
}

// Marshal encodes info as ini text. Known keys come first in a fixed order,
// extra keys follow sorted by name.
func (i *Info) Marshal() ([]byte, error) {
	cfg := ini.Empty()
	sec := cfg.Section(ini.DefaultSection)

	values := map[string]string{
		"name":    i.Name,
		"title":   i.Title,
		"intro":   i.Description,
		"author":  i.Author,
		"version": i.Version,
		"status":  strconv.Itoa(int(i.Status)),
		"init":    "0",
	}
	if i.Installed {
		values["init"] = "1"
	}

	for _, key := range knownKeys {
		if values[key] == "" {
			continue
		}
		if _, err := sec.NewKey(key, values[key]); err != nil {
			return nil, err
		}
	}

	extras := make([]string, 0, len(i.Extra))
	for key := range i.Extra {
		extras = append(extras, key)
	}
	sort.Strings(extras)
	for _, key := range extras {
		if _, err := sec.NewKey(key, i.Extra[key]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Complete reports whether the fields an addon needs to be listed are set.
func (i *Info) Complete() bool {
	return i.Name != "" && i.Title != "" && i.Version != ""
}

// Enabled reports whether the addon is enabled.
func (i *Info) Enabled() bool {
	return i.Status == StatusEnabled
}

// ReadArchive reads the manifest entry from an opened package.
func ReadArchive(r *archive.Reader) (*Info, error) {
	data, err := r.Contents(FileName)
	if err != nil {
		if errors.Is(err, archive.ErrEntryNotFound) {
			return nil, fmt.Errorf("%w: %s has no %s", ErrManifestMissing, filepath.Base(r.Path()), FileName)
		}
		return nil, err
	}
	return Parse(data)
}

// ReadDir reads the manifest stored in an addon directory.
func ReadDir(fs fsops.FS, dir string) (*Info, error) {
	data, err := fs.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, dir)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data)
}

// WriteDir atomically writes info into an addon directory.
func WriteDir(fs fsops.FS, dir string, info *Info) error {
	data, err := info.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := fs.AtomicWrite(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func isKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
