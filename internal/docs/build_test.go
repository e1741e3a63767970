package docs

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/ferrisdoc/internal/cas"
	"github.com/jcdickinson/ferrisdoc/internal/discover"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

func buildSources() []Source {
	return []Source{
		{Path: "src/lib.rs", Module: "crate", Content: "//! Root.\n\n/// Entry point.\npub fn run() {}\n\npub mod util;\n"},
		{Path: "src/util.rs", Module: "crate::util", Content: "//! Helpers.\n\n/// Adds one.\npub fn inc(v: u32) -> u32 { v + 1 }\n"},
		{Path: "src/extra.rs", Module: "crate", Content: "/// Again.\npub fn run() {}\n"},
	}
}

func recordPaths(recs []model.SymbolRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Path()
	}
	return out
}

func TestBuild(t *testing.T) {
	opts := DefaultOptions()
	opts.Concurrency = 2
	ix, diags, err := Build(context.Background(), buildSources(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"crate::run", "crate::util", "crate::run", "crate::util::inc"}, recordPaths(slices.Collect(ix.All())))

	require.Len(t, diags, 1)
	assert.Equal(t, model.DuplicateDeclaration, diags[0].Kind)
	assert.Equal(t, "src/extra.rs", diags[0].File)

	util, ok := ix.Module("crate::util")
	require.True(t, ok)
	assert.Equal(t, "Helpers.", util.Doc().Summary)
	root, _ := ix.Module("crate")
	assert.Equal(t, []string{"src/lib.rs", "src/extra.rs"}, root.Files, "files merge in input order")
}

func TestBuild_TraitImplsShareMethodNames(t *testing.T) {
	src := Source{Path: "src/lib.rs", Module: "crate", Content: `pub struct Foo;

impl fmt::Display for Foo {
    fn fmt(&self, f: &mut fmt::Formatter<'_>) -> fmt::Result { Ok(()) }
}

impl fmt::Debug for Foo {
    fn fmt(&self, f: &mut fmt::Formatter<'_>) -> fmt::Result { Ok(()) }
}
`}
	ix, diags, err := Build(context.Background(), []Source{src}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Len(t, ix.Lookup("crate::Foo::fmt"), 2)
}

func TestBuild_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix, _, err := Build(ctx, buildSources(), DefaultOptions())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, ix)
	assert.Zero(t, ix.Len())
}

func TestBuild_Cache(t *testing.T) {
	opts := DefaultOptions()
	opts.Cache = cas.New(t.TempDir())
	sources := buildSources()

	cold, coldDiags, err := Build(context.Background(), sources, opts)
	require.NoError(t, err)
	for _, src := range sources {
		_, err := opts.Cache.Get(cacheKey(src, opts))
		assert.NoError(t, err, "no cache entry for %s", src.Path)
	}

	warm, warmDiags, err := Build(context.Background(), sources, opts)
	require.NoError(t, err)
	assert.Equal(t, slices.Collect(cold.All()), slices.Collect(warm.All()))
	assert.Equal(t, coldDiags, warmDiags)

	// a corrupt entry is reparsed
	require.NoError(t, opts.Cache.Put(cacheKey(sources[0], opts), []byte("not json")))
	fr, cached := parseCached(sources[0], opts)
	assert.False(t, cached)
	assert.Equal(t, ParseFile(sources[0], opts), fr)

	fr, cached = parseCached(sources[0], opts)
	assert.True(t, cached)
	assert.Equal(t, "Entry point.", fr.Records[0].Summary)
}

func TestCacheKey(t *testing.T) {
	src := buildSources()[0]
	opts := DefaultOptions()
	base := cacheKey(src, opts)

	assert.Equal(t, base, cacheKey(src, opts))

	moved := src
	moved.Path = "src/other.rs"
	assert.NotEqual(t, base, cacheKey(moved, opts))

	wider := opts
	wider.GapLimit = 3
	assert.NotEqual(t, base, cacheKey(src, wider))

	wider = opts
	wider.Concurrency = 16
	assert.Equal(t, base, cacheKey(src, wider), "concurrency does not affect results")
}

func TestLoadSources(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "lib.rs"), []byte("pub fn a() {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "big.rs"), []byte("pub fn big() {}\n"), 0644))

	entries := []discover.FileEntry{
		{Path: "src/lib.rs", Module: "crate", Size: 14},
		{Path: "src/big.rs", Module: "crate::big", Size: 1 << 20},
	}
	sources, err := LoadSources(root, entries, 1024)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, Source{Path: "src/lib.rs", Module: "crate", Content: "pub fn a() {}\n"}, sources[0])

	sources, err = LoadSources(root, entries, 0)
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	_, err = LoadSources(root, []discover.FileEntry{{Path: "src/missing.rs", Module: "crate::missing"}}, 0)
	assert.Error(t, err)
}
