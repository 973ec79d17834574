package engine

import "io"

// InstallRequest represents a request to install an addon from its package
// in the backups directory.
type InstallRequest struct {
	// Name is the addon name; the package is <backups>/<name>.zip
	Name string

	// Force reinstalls over an existing directory and skips the conflict check
	Force bool
}

// UploadRequest represents a request to install an uploaded package.
type UploadRequest struct {
	// Filename is the client-supplied file name, used for the extension check
	Filename string

	// Size is the declared size in bytes
	Size int64

	// Reader supplies the package content
	Reader io.Reader
}

// UninstallRequest represents a request to remove an addon.
type UninstallRequest struct {
	Name string

	// Force allows uninstalling an enabled addon and removes its live files
	Force bool
}

// EnableRequest represents a request to project an addon onto the live tree.
type EnableRequest struct {
	Name string

	// Force overwrites conflicting live files after backing them up
	Force bool
}

// DisableRequest represents a request to retract an addon from the live tree.
type DisableRequest struct {
	Name string

	// Force removes conflicting live files after backing them up
	Force bool
}
