package planner

import (
	"sort"
	"strings"
)

// Candidate is one file an addon can place in the live tree.
type Candidate struct {
	// RelPath is the live-tree path relative to the live root, slash separated
	RelPath string

	// Source is the absolute path of the addon's copy
	Source string

	// Projected is true when Source lives in the pristine shadow tree,
	// meaning the file has already been moved out of the addon tree
	Projected bool
}

// Conflict is a live file that differs from the addon's copy.
type Conflict struct {
	// Path is the live-tree relative path
	Path string `json:"path"`

	// Reason is a human-readable explanation of the difference
	Reason string `json:"reason"`

	// Existing is the hash of the live file, when it was computed
	Existing string `json:"existing,omitempty"`

	// Incoming is the hash of the addon's copy, when it was computed
	Incoming string `json:"incoming,omitempty"`
}

// Conflict reasons
const (
	ReasonNotFile        = "live path is not a regular file"
	ReasonSizeDiffers    = "size differs"
	ReasonContentDiffers = "content differs"
)

// Plan is the projection plan for one addon.
type Plan struct {
	// Addon is the addon name
	Addon string

	// Candidates lists every projectable file, deepest first
	Candidates []Candidate

	// Conflicts lists the candidates whose live copy differs
	Conflicts []Conflict
}

// NewPlan creates a new empty Plan.
func NewPlan(addon string) *Plan {
	return &Plan{
		Addon:      addon,
		Candidates: []Candidate{},
		Conflicts:  []Conflict{},
	}
}

// HasConflicts returns true if the plan has any conflicts.
func (p *Plan) HasConflicts() bool {
	return len(p.Conflicts) > 0
}

// Paths returns the relative path of every candidate.
func (p *Plan) Paths() []string {
	paths := make([]string, 0, len(p.Candidates))
	for _, c := range p.Candidates {
		paths = append(paths, c.RelPath)
	}
	return paths
}

// ConflictPaths returns the relative path of every conflict.
func (p *Plan) ConflictPaths() []string {
	paths := make([]string, 0, len(p.Conflicts))
	for _, c := range p.Conflicts {
		paths = append(paths, c.Path)
	}
	return paths
}

// SortDeepestFirst orders slash-separated paths by depth, deepest first,
// breaking ties lexically.
func SortDeepestFirst(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		di := strings.Count(paths[i], "/")
		dj := strings.Count(paths[j], "/")
		if di != dj {
			return di > dj
		}
		return paths[i] < paths[j]
	})
}
