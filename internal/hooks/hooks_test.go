package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/manifest"
)

type fakeHook struct {
	calls      []Op
	installErr error
	complete   bool
	panicOn    Op
}

func (f *fakeHook) Install(ctx context.Context) error {
	f.calls = append(f.calls, OpInstall)
	if f.panicOn == OpInstall {
		panic("boom")
	}
	return f.installErr
}

func (f *fakeHook) Uninstall(ctx context.Context) error {
	f.calls = append(f.calls, OpUninstall)
	return nil
}

func (f *fakeHook) CheckInfo(ctx context.Context) bool {
	f.calls = append(f.calls, OpCheckInfo)
	return f.complete
}

type enablingHook struct {
	fakeHook
}

func (e *enablingHook) Enable(ctx context.Context) error {
	e.calls = append(e.calls, OpEnable)
	return nil
}

func (e *enablingHook) Registration() Registration {
	return Registration{Hooks: []string{"app_init"}}
}

func TestCall(t *testing.T) {
	ctx := context.Background()

	t.Run("nil hook is a no-op", func(t *testing.T) {
		assert.NoError(t, Call(ctx, "demo", nil, OpInstall))
	})

	t.Run("failures wrap ErrHookFailed", func(t *testing.T) {
		h := &fakeHook{installErr: errors.New("db down")}
		err := Call(ctx, "demo", h, OpInstall)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrHookFailed))
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("panic is a failure", func(t *testing.T) {
		h := &fakeHook{panicOn: OpInstall}
		err := Call(ctx, "demo", h, OpInstall)
		assert.True(t, errors.Is(err, ErrHookFailed))
	})

	t.Run("optional capabilities are skipped", func(t *testing.T) {
		h := &fakeHook{}
		assert.NoError(t, Call(ctx, "demo", h, OpEnable))
		assert.NoError(t, Call(ctx, "demo", h, OpDisable))
		assert.Empty(t, h.calls)
	})

	t.Run("optional capabilities are called when present", func(t *testing.T) {
		h := &enablingHook{}
		assert.NoError(t, Call(ctx, "demo", h, OpEnable))
		assert.Equal(t, []Op{OpEnable}, h.calls)
	})

	t.Run("incomplete info fails", func(t *testing.T) {
		assert.True(t, errors.Is(Call(ctx, "demo", &fakeHook{}, OpCheckInfo), ErrHookFailed))
		assert.NoError(t, Call(ctx, "demo", &fakeHook{complete: true}, OpCheckInfo))
	})
}

func TestRegistrationFor(t *testing.T) {
	reg := RegistrationFor(&enablingHook{}, nil)
	assert.Equal(t, []string{"app_init"}, reg.Hooks)
	assert.Equal(t, []string{}, reg.Routes)

	info := &manifest.Info{Name: "demo", Extra: map[string]string{"hooks": "app_init, view_filter", "routes": "/demo"}}
	reg = RegistrationFor(nil, info)
	assert.Equal(t, []string{"app_init", "view_filter"}, reg.Hooks)
	assert.Equal(t, []string{"/demo"}, reg.Routes)

	reg = RegistrationFor(nil, &manifest.Info{Name: "demo"})
	assert.Equal(t, Registration{Hooks: []string{}, Routes: []string{}}, reg)
}

func TestResolver(t *testing.T) {
	fs := fsops.NewMemFS()
	table := NewTable()
	table.Register("coded", func(name, dir string) Hook { return &fakeHook{complete: true} })
	r := NewResolver(fs, table)

	assert.IsType(t, &fakeHook{}, r.Resolve("coded", "/site/addons/coded"))
	assert.Nil(t, r.Resolve("plain", "/site/addons/plain"))

	require.NoError(t, fs.MkdirAll("/site/addons/scripted/hooks", 0755))
	assert.IsType(t, &ScriptHook{}, r.Resolve("scripted", "/site/addons/scripted"))
}

func writeScript(t *testing.T, dir string, op Op, body string) {
	t.Helper()
	path := filepath.Join(dir, ScriptDir, string(op))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
}

func TestScriptHook(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	h := NewScriptHook(fsops.NewRealFS(), "demo", dir)

	writeScript(t, dir, OpInstall, `echo "$ADDON_NAME:$ADDON_OP" > installed.txt`)
	writeScript(t, dir, OpDisable, `echo "cannot disable" >&2; exit 3`)

	require.NoError(t, Call(ctx, "demo", h, OpInstall))
	data, err := os.ReadFile(filepath.Join(dir, "installed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "demo:install\n", string(data))

	err = Call(ctx, "demo", h, OpDisable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHookFailed))
	assert.Contains(t, err.Error(), "cannot disable")

	assert.NoError(t, Call(ctx, "demo", h, OpUninstall), "missing script is a no-op")
	assert.True(t, h.CheckInfo(ctx), "missing checkinfo means complete")

	writeScript(t, dir, OpCheckInfo, `exit 1`)
	assert.False(t, h.CheckInfo(ctx))
}
