package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/addonctl/internal/fsops"
)

// ScriptHook runs hooks/<op> executables from the addon directory. A missing
// script is a no-op, except for checkinfo where it means complete.
type ScriptHook struct {
	fs   fsops.FS
	name string
	dir  string
}

// NewScriptHook creates a ScriptHook for the addon at dir.
func NewScriptHook(fs fsops.FS, name, dir string) *ScriptHook {
	return &ScriptHook{fs: fs, name: name, dir: dir}
}

func (s *ScriptHook) Install(ctx context.Context) error   { return s.run(ctx, OpInstall) }
func (s *ScriptHook) Uninstall(ctx context.Context) error { return s.run(ctx, OpUninstall) }
func (s *ScriptHook) Enable(ctx context.Context) error    { return s.run(ctx, OpEnable) }
func (s *ScriptHook) Disable(ctx context.Context) error   { return s.run(ctx, OpDisable) }

func (s *ScriptHook) CheckInfo(ctx context.Context) bool {
	return s.run(ctx, OpCheckInfo) == nil
}

func (s *ScriptHook) script(op Op) string {
	return filepath.Join(s.dir, ScriptDir, string(op))
}

func (s *ScriptHook) run(ctx context.Context, op Op) error {
	script := s.script(op)
	if !s.fs.IsFile(script) {
		return nil
	}

	cmd := exec.CommandContext(ctx, script)
	cmd.Dir = s.dir
	cmd.Env = append(os.Environ(),
		"ADDON_NAME="+s.name,
		"ADDON_DIR="+s.dir,
		"ADDON_OP="+string(op),
	)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(output.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", filepath.Base(script), err)
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(script), err, msg)
	}
	return nil
}
