package hooks

import (
	"path/filepath"
	"sync"

	"github.com/danieljhkim/addonctl/internal/fsops"
)

// ScriptDir is the directory inside an addon holding hook executables.
const ScriptDir = "hooks"

// Factory builds the hook for an addon installed at dir.
type Factory func(name, dir string) Hook

// Table maps addon names to in-process hook implementations.
type Table struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory for an addon.
func (t *Table) Register(name string, f Factory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factories[name] = f
}

// Lookup returns the factory for an addon.
func (t *Table) Lookup(name string) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[name]
	return f, ok
}

// Resolver finds the hook for an addon.
type Resolver struct {
	fs    fsops.FS
	table *Table
}

// NewResolver creates a Resolver. A nil table means script hooks only.
func NewResolver(fs fsops.FS, table *Table) *Resolver {
	if table == nil {
		table = NewTable()
	}
	return &Resolver{fs: fs, table: table}
}

// Resolve returns the registered hook, a ScriptHook when the addon ships a
// hooks/ directory, or nil when the addon has no code.
func (r *Resolver) Resolve(name, dir string) Hook {
	if f, ok := r.table.Lookup(name); ok {
		return f(name, dir)
	}
	if r.fs.IsDir(filepath.Join(dir, ScriptDir)) {
		return NewScriptHook(r.fs, name, dir)
	}
	return nil
}
