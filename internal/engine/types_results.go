package engine

import (
	"github.com/danieljhkim/addonctl/internal/manifest"
	"github.com/danieljhkim/addonctl/internal/planner"
	"github.com/danieljhkim/addonctl/internal/seed"
)

// InstallResult represents the result of an install.
type InstallResult struct {
	// Info is the manifest after install
	Info *manifest.Info `json:"info"`

	// HasConfig reports whether the addon ships a config.json
	HasConfig bool `json:"config"`

	// HasTestdata reports whether the addon ships testdata.sql
	HasTestdata bool `json:"testdata"`

	// Seed counts install.sql statements
	Seed seed.Result `json:"seed"`

	// Files lists the live paths projected by the install
	Files []string `json:"files,omitempty"`
}

// ToggleResult represents the result of enable or disable.
type ToggleResult struct {
	Info *manifest.Info `json:"info"`

	// Files lists the live paths projected or retracted
	Files []string `json:"files"`

	// Backup is the conflict backup archive, if one was written
	Backup string `json:"backup,omitempty"`
}

// UninstallResult represents the result of an uninstall.
type UninstallResult struct {
	Name string `json:"name"`

	// Purged lists live paths removed by a forced uninstall
	Purged []string `json:"purged,omitempty"`
}

// AddonSummary is one row of List.
type AddonSummary struct {
	Name    string          `json:"name"`
	Title   string          `json:"title,omitempty"`
	Version string          `json:"version,omitempty"`
	Author  string          `json:"author,omitempty"`
	Status  manifest.Status `json:"status"`

	Installed bool `json:"installed"`
}

// ListResult represents the result of List.
type ListResult struct {
	Addons []AddonSummary `json:"addons"`
}

// InfoResult represents the details of one addon.
type InfoResult struct {
	Info *manifest.Info `json:"info"`
	Dir  string         `json:"dir"`

	// Files is the overlay record
	Files []string `json:"files"`

	HasConfig    bool `json:"config"`
	HasTestdata  bool `json:"testdata"`
	HasBootstrap bool `json:"bootstrap"`

	// Backups lists backup archives, oldest first
	Backups []string `json:"backups"`
}

// ConflictsResult represents a dry-run conflict check.
type ConflictsResult struct {
	Name      string             `json:"name"`
	Conflicts []planner.Conflict `json:"conflicts"`
}
