package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/addonctl/internal/archive"
	"github.com/danieljhkim/addonctl/internal/artifact"
	"github.com/danieljhkim/addonctl/internal/hooks"
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/registry"
)

var (
	// ErrNotFound indicates an addon or one of its files was not found.
	ErrNotFound = registry.ErrNotFound

	// ErrAlreadyExists indicates the addon directory already exists.
	ErrAlreadyExists = registry.ErrAlreadyExists

	// ErrConflict indicates live files differ from the addon's copies.
	ErrConflict = errors.New("conflict detected")

	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrStatusGate indicates an enabled addon was uninstalled without force.
	ErrStatusGate = errors.New("addon must be disabled first")

	// ErrUploadRejected indicates an uploaded package failed size or
	// extension checks.
	ErrUploadRejected = errors.New("upload rejected")

	ErrArchiveCorrupt  = archive.ErrArchiveCorrupt
	ErrExtractFailed   = archive.ErrExtractFailed
	ErrManifestMissing = manifest.ErrManifestMissing
	ErrManifestInvalid = manifest.ErrManifestInvalid
	ErrHookFailed      = hooks.ErrHookFailed
	ErrWriteError      = artifact.ErrWriteError
)

// ConflictError lists the live paths that block an operation.
type ConflictError struct {
	Addon string
	Paths []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s has %d conflicting file(s): %s",
		ErrConflict, e.Addon, len(e.Paths), strings.Join(e.Paths, ", "))
}

// Is makes errors.Is(err, ErrConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
