// Package hooks runs addon-supplied lifecycle code.
//
// An addon's hook is resolved by name from an in-process Table, or, when the
// addon ships a hooks/ directory, from executables inside it. Install,
// Uninstall and CheckInfo are mandatory; Enable, Disable and Registration are
// optional capabilities discovered with type assertions.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/addonctl/internal/manifest"
)

// ErrHookFailed wraps every hook failure.
var ErrHookFailed = errors.New("hook failed")

// Op names a hook call point.
type Op string

const (
	OpInstall   Op = "install"
	OpUninstall Op = "uninstall"
	OpEnable    Op = "enable"
	OpDisable   Op = "disable"
	OpCheckInfo Op = "checkinfo"
)

// Hook is the mandatory capability set of addon code.
type Hook interface {
	Install(ctx context.Context) error
	Uninstall(ctx context.Context) error

	// CheckInfo reports whether the addon's manifest and config are complete.
	CheckInfo(ctx context.Context) bool
}

// Enabler is implemented by hooks that act on enable.
type Enabler interface {
	Enable(ctx context.Context) error
}

// Disabler is implemented by hooks that act on disable.
type Disabler interface {
	Disable(ctx context.Context) error
}

// Registrar is implemented by hooks that declare host hooks and routes.
type Registrar interface {
	Registration() Registration
}

// Registration is one addon's entry in the registration table.
type Registration struct {
	Hooks  []string `json:"hooks" yaml:"hooks" toml:"hooks"`
	Routes []string `json:"routes" yaml:"routes" toml:"routes"`
}

// Call invokes op on h. Optional capabilities that h lacks are skipped, a
// nil hook does nothing, and panics count as failures.
func Call(ctx context.Context, name string, h Hook, op Op) (err error) {
	if h == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s %s: panic: %v", ErrHookFailed, name, op, r)
		}
	}()

	switch op {
	case OpInstall:
		err = h.Install(ctx)
	case OpUninstall:
		err = h.Uninstall(ctx)
	case OpEnable:
		if e, ok := h.(Enabler); ok {
			err = e.Enable(ctx)
		}
	case OpDisable:
		if d, ok := h.(Disabler); ok {
			err = d.Disable(ctx)
		}
	case OpCheckInfo:
		if !h.CheckInfo(ctx) {
			err = fmt.Errorf("manifest or config incomplete")
		}
	default:
		err = fmt.Errorf("unknown hook operation %q", op)
	}

	if err != nil && !errors.Is(err, ErrHookFailed) {
		err = fmt.Errorf("%w: %s %s: %v", ErrHookFailed, name, op, err)
	}
	return err
}

// RegistrationFor returns the hooks and routes an addon declares: from the
// hook when it is a Registrar, else from the comma-separated "hooks" and
// "routes" manifest keys.
func RegistrationFor(h Hook, info *manifest.Info) Registration {
	if r, ok := h.(Registrar); ok {
		reg := r.Registration()
		if reg.Hooks == nil {
			reg.Hooks = []string{}
		}
		if reg.Routes == nil {
			reg.Routes = []string{}
		}
		return reg
	}

	reg := Registration{Hooks: []string{}, Routes: []string{}}
	if info != nil {
		reg.Hooks = splitList(info.Extra["hooks"])
		reg.Routes = splitList(info.Extra["routes"])
	}
	return reg
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
