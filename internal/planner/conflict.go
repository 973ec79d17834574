package planner

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/hash"
	"github.com/danieljhkim/addonctl/internal/state"
)

// Detector finds the files an addon projects and the live files they would clobber.
type Detector struct {
	fs       fsops.FS
	hasher   hash.Hasher
	overlay  config.Overlay
	liveRoot string
	ignore   []glob.Glob
}

// NewDetector creates a Detector. Ignore patterns are matched against
// live-tree relative paths with '/' as the separator.
func NewDetector(fs fsops.FS, hasher hash.Hasher, overlay config.Overlay, liveRoot string) (*Detector, error) {
	d := &Detector{
		fs:       fs,
		hasher:   hasher,
		overlay:  overlay,
		liveRoot: liveRoot,
	}
	for _, pattern := range overlay.Ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		d.ignore = append(d.ignore, g)
	}
	return d, nil
}

// LiveRoot returns the root of the live tree.
func (d *Detector) LiveRoot() string {
	return d.liveRoot
}

// LivePath returns the absolute live-tree location of a relative path.
func (d *Detector) LivePath(rel string) string {
	return filepath.Join(d.liveRoot, filepath.FromSlash(rel))
}

// MapPath converts a path relative to the addon root into a live-tree
// relative path. The assets directory maps under the public assets prefix.
func (d *Detector) MapPath(name, addonRel string) string {
	addonRel = filepath.ToSlash(addonRel)
	assets := d.overlay.AssetsDir
	if addonRel == assets {
		return d.overlay.AssetsTarget(name)
	}
	if len(addonRel) > len(assets) && addonRel[:len(assets)+1] == assets+"/" {
		return path.Join(d.overlay.AssetsTarget(name), addonRel[len(assets)+1:])
	}
	return addonRel
}

// Ignored reports whether rel matches an ignore pattern.
func (d *Detector) Ignored(rel string) bool {
	for _, g := range d.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Candidates lists every file the addon projects. Files still present in
// the addon's tracked directories win over the pristine copies kept from an
// earlier projection.
func (d *Detector) Candidates(name, addonDir string) ([]Candidate, error) {
	byRel := make(map[string]Candidate)

	for _, dir := range d.overlay.ScanDirs() {
		root := filepath.Join(addonDir, dir)
		if !d.fs.IsDir(root) {
			continue
		}
		err := d.fs.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			addonRel, err := filepath.Rel(addonDir, p)
			if err != nil {
				return err
			}
			rel := d.MapPath(name, addonRel)
			if d.Ignored(rel) {
				return nil
			}
			byRel[rel] = Candidate{RelPath: rel, Source: p}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}

	pristine := state.PristineDir(addonDir)
	if d.fs.IsDir(pristine) {
		err := d.fs.Walk(pristine, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(pristine, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if _, ok := byRel[rel]; ok || d.Ignored(rel) {
				return nil
			}
			byRel[rel] = Candidate{RelPath: rel, Source: p, Projected: true}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", pristine, err)
		}
	}

	rels := make([]string, 0, len(byRel))
	for rel := range byRel {
		rels = append(rels, rel)
	}
	SortDeepestFirst(rels)

	candidates := make([]Candidate, 0, len(rels))
	for _, rel := range rels {
		candidates = append(candidates, byRel[rel])
	}
	return candidates, nil
}

// Plan computes candidates and conflicts in one walk.
func (d *Detector) Plan(name, addonDir string) (*Plan, error) {
	candidates, err := d.Candidates(name, addonDir)
	if err != nil {
		return nil, err
	}

	plan := NewPlan(name)
	plan.Candidates = candidates
	for _, c := range candidates {
		conflict, err := d.Compare(c)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			plan.Conflicts = append(plan.Conflicts, *conflict)
		}
	}
	return plan, nil
}

// Detect returns candidate paths, or only the conflicting ones when
// onlyConflicts is set.
func (d *Detector) Detect(name, addonDir string, onlyConflicts bool) ([]string, error) {
	plan, err := d.Plan(name, addonDir)
	if err != nil {
		return nil, err
	}
	if onlyConflicts {
		return plan.ConflictPaths(), nil
	}
	return plan.Paths(), nil
}

// Conflicts returns the conflicting candidates with a reason for each.
func (d *Detector) Conflicts(name, addonDir string) ([]Conflict, error) {
	plan, err := d.Plan(name, addonDir)
	if err != nil {
		return nil, err
	}
	return plan.Conflicts, nil
}

// Compare checks one candidate against the live tree. It returns nil when
// nothing exists at the live location or the copies are identical.
func (d *Detector) Compare(c Candidate) (*Conflict, error) {
	live := d.LivePath(c.RelPath)

	liveInfo, err := d.fs.Stat(live)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", live, err)
	}
	if !liveInfo.Mode().IsRegular() {
		return &Conflict{Path: c.RelPath, Reason: ReasonNotFile}, nil
	}

	srcInfo, err := d.fs.Stat(c.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", c.Source, err)
	}
	if srcInfo.Size() != liveInfo.Size() {
		return &Conflict{Path: c.RelPath, Reason: ReasonSizeDiffers}, nil
	}

	liveHash, err := d.hasher.HashFile(live)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", live, err)
	}
	srcHash, err := d.hasher.HashFile(c.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", c.Source, err)
	}
	if liveHash != srcHash {
		return &Conflict{
			Path:     c.RelPath,
			Reason:   ReasonContentDiffers,
			Existing: liveHash,
			Incoming: srcHash,
		}, nil
	}
	return nil, nil
}

// Dedup returns paths with duplicates removed, preserving the first occurrence.
func Dedup(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

