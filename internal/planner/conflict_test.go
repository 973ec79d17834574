package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/addonctl/internal/config"
	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/hash"
	"github.com/danieljhkim/addonctl/internal/state"
)

const (
	liveRoot = "/site"
	addonDir = "/site/addons/demo"
)

func put(t *testing.T, fs fsops.FS, path, content string) {
	t.Helper()
	require.NoError(t, fs.AtomicWrite(path, []byte(content), 0644))
}

func newDetector(t *testing.T, fs fsops.FS, ignore ...string) *Detector {
	t.Helper()
	overlay := config.Default().Overlay
	overlay.Ignore = ignore
	d, err := NewDetector(fs, hash.NewSHA256Hasher(fs.Afero()), overlay, liveRoot)
	require.NoError(t, err)
	return d
}

func TestDetector_MapPath(t *testing.T) {
	d := newDetector(t, fsops.NewMemFS())

	assert.Equal(t, "app/controller/Index.php", d.MapPath("demo", "app/controller/Index.php"))
	assert.Equal(t, "public/assets/addons/demo/js/demo.js", d.MapPath("demo", "assets/js/demo.js"))
	assert.Equal(t, "public/assets/addons/demo", d.MapPath("demo", "assets"))
	assert.Equal(t, "assetsx/file", d.MapPath("demo", "assetsx/file"))
}

func TestDetector_DetectAllCandidates(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/controller/Index.php", "index")
	put(t, fs, addonDir+"/templates/demo/list.html", "list")
	put(t, fs, addonDir+"/assets/js/demo.js", "js")
	put(t, fs, addonDir+"/install.sql", "not tracked")
	put(t, fs, addonDir+"/info.ini", "name = demo")

	d := newDetector(t, fs)
	paths, err := d.Detect("demo", addonDir, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"public/assets/addons/demo/js/demo.js",
		"app/controller/Index.php",
		"templates/demo/list.html",
	}, paths)
}

func TestDetector_ConflictsBySizeAndContent(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/same.php", "same")
	put(t, fs, liveRoot+"/app/same.php", "same")
	put(t, fs, addonDir+"/app/size.php", "short")
	put(t, fs, liveRoot+"/app/size.php", "much longer")
	put(t, fs, addonDir+"/app/content.php", "aaaa")
	put(t, fs, liveRoot+"/app/content.php", "bbbb")
	put(t, fs, addonDir+"/app/new.php", "new")

	d := newDetector(t, fs)

	conflicts, err := d.Conflicts("demo", addonDir)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)

	byPath := map[string]Conflict{}
	for _, c := range conflicts {
		byPath[c.Path] = c
	}
	assert.Equal(t, ReasonContentDiffers, byPath["app/content.php"].Reason)
	assert.NotEmpty(t, byPath["app/content.php"].Existing)
	assert.Equal(t, ReasonSizeDiffers, byPath["app/size.php"].Reason)

	paths, err := d.Detect("demo", addonDir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/content.php", "app/size.php"}, paths)
}

func TestDetector_ConflictVanishesWhenIdentical(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/controller/Index.php", "addon")
	put(t, fs, liveRoot+"/app/controller/Index.php", "edited")

	d := newDetector(t, fs)

	paths, err := d.Detect("demo", addonDir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/controller/Index.php"}, paths)

	put(t, fs, liveRoot+"/app/controller/Index.php", "addon")

	paths, err = d.Detect("demo", addonDir, true)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestDetector_LiveDirectoryConflicts(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/thing", "file")
	require.NoError(t, fs.MkdirAll(liveRoot+"/app/thing", 0755))

	conflicts, err := newDetector(t, fs).Conflicts("demo", addonDir)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ReasonNotFile, conflicts[0].Reason)
}

func TestDetector_SameSizeUsesHash(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/a.php", "xxxx")
	put(t, fs, liveRoot+"/app/a.php", "yyyy")

	hasher := hash.NewFakeHasher()
	hasher.SetHash(filepath.Join(addonDir, "app/a.php"), "h1")
	hasher.SetHash(filepath.Join(liveRoot, "app/a.php"), "h1")

	d, err := NewDetector(fs, hasher, config.Default().Overlay, liveRoot)
	require.NoError(t, err)

	paths, err := d.Detect("demo", addonDir, true)
	require.NoError(t, err)
	assert.Empty(t, paths, "equal size and equal hash is not a conflict")
}

func TestDetector_IgnoreGlobs(t *testing.T) {
	fs := fsops.NewMemFS()
	put(t, fs, addonDir+"/app/controller/Index.php", "index")
	put(t, fs, addonDir+"/app/.DS_Store", "junk")
	put(t, fs, addonDir+"/public/readme.md", "doc")

	d := newDetector(t, fs, "**/.DS_Store", "public/*.md")

	paths, err := d.Detect("demo", addonDir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/controller/Index.php"}, paths)
}

func TestDetector_InvalidIgnorePattern(t *testing.T) {
	overlay := config.Default().Overlay
	overlay.Ignore = []string{"[unclosed"}
	_, err := NewDetector(fsops.NewMemFS(), hash.NewFakeHasher(), overlay, liveRoot)
	assert.Error(t, err)
}

func TestDetector_PristineCandidates(t *testing.T) {
	fs := fsops.NewMemFS()
	pristine := state.PristineDir(addonDir)
	put(t, fs, pristine+"/app/controller/Index.php", "original")
	put(t, fs, liveRoot+"/app/controller/Index.php", "hand edited")
	put(t, fs, addonDir+"/app/fresh.php", "fresh")
	put(t, fs, pristine+"/app/fresh.php", "stale")

	d := newDetector(t, fs)

	candidates, err := d.Candidates("demo", addonDir)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	byRel := map[string]Candidate{}
	for _, c := range candidates {
		byRel[c.RelPath] = c
	}
	assert.True(t, byRel["app/controller/Index.php"].Projected)
	assert.False(t, byRel["app/fresh.php"].Projected, "addon tree wins over pristine")
	assert.Equal(t, addonDir+"/app/fresh.php", byRel["app/fresh.php"].Source)

	paths, err := d.Detect("demo", addonDir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"app/controller/Index.php"}, paths)
}

func TestDetector_Deterministic(t *testing.T) {
	fs := fsops.NewMemFS()
	for _, p := range []string{"app/z.php", "app/a/b.php", "templates/t.html", "public/p.css"} {
		put(t, fs, addonDir+"/"+p, p)
	}
	d := newDetector(t, fs)

	first, err := d.Detect("demo", addonDir, false)
	require.NoError(t, err)
	second, err := d.Detect("demo", addonDir, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "app/a/b.php", first[0])
}
