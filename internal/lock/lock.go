// Package lock provides cross-process advisory locks: one per addon around a
// lifecycle operation and one global lock around artifact rebuilds.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout is returned when a lock could not be acquired in time.
var ErrTimeout = errors.New("timed out waiting for lock")

const retryDelay = 50 * time.Millisecond

// Unlock releases an acquired lock.
type Unlock func()

// Manager hands out flock-based locks stored in one directory.
type Manager struct {
	dir     string
	timeout time.Duration
}

// NewManager creates a Manager keeping lock files in dir.
func NewManager(dir string, timeout time.Duration) *Manager {
	return &Manager{dir: dir, timeout: timeout}
}

// Addon locks one addon.
func (m *Manager) Addon(ctx context.Context, name string) (Unlock, error) {
	return m.acquire(ctx, "addon-"+name+".lock")
}

// Global locks the shared artifacts.
func (m *Manager) Global(ctx context.Context) (Unlock, error) {
	return m.acquire(ctx, "global.lock")
}

func (m *Manager) acquire(ctx context.Context, file string) (Unlock, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(m.dir, file)
	fl := flock.New(path)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
	}

	return func() {
		_ = fl.Unlock()
	}, nil
}
