package associate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/recognize"
	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

func run(t *testing.T, src string, opts Options) (recognize.Result, Result) {
	t.Helper()
	spans, err := scan.Scan(src)
	require.NoError(t, err)
	rec := recognize.Declarations(src, spans)
	return rec, Associate(src, spans, rec, opts)
}

func docOf(t *testing.T, rec recognize.Result, res Result, name string) *model.DocBlock {
	t.Helper()
	for i, d := range rec.Decls {
		if d.Name == name {
			return res.Docs[i]
		}
	}
	require.Failf(t, "declaration not found", "%s", name)
	return nil
}

// blockText returns the block's lines joined by newlines.
func blockText(b model.DocBlock) string {
	parts := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

func defaults() Options {
	return Options{GapLimit: DefaultGapLimit}
}

func TestAssociate_Adjacent(t *testing.T) {
	src := "/// Adds one.\n/// Saturates at max.\nfn inc(v: u8) -> u8 { v.saturating_add(1) }\n"
	rec, res := run(t, src, defaults())

	b := docOf(t, rec, res, "inc")
	require.NotNil(t, b)
	assert.Equal(t, "Adds one.\nSaturates at max.", blockText(*b))
	assert.Equal(t, 0, b.Start)
	assert.Empty(t, res.Dangling)

	for _, l := range b.Lines {
		assert.True(t, strings.HasPrefix(src[l.Offset:], l.Text), "offset %d does not point at %q", l.Offset, l.Text)
	}
}

func TestAssociate_GapLimit(t *testing.T) {
	oneBlank := "/// Doc.\n\nfn a() {}\n"
	twoBlank := "/// Doc.\n\n\nfn a() {}\n"

	rec, res := run(t, oneBlank, defaults())
	assert.NotNil(t, docOf(t, rec, res, "a"), "one blank line is within the default limit")

	rec, res = run(t, twoBlank, defaults())
	assert.Nil(t, docOf(t, rec, res, "a"))
	require.Len(t, res.Dangling, 1)
	assert.Equal(t, "Doc.", blockText(res.Dangling[0]))

	rec, res = run(t, oneBlank, Options{GapLimit: 0})
	assert.Nil(t, docOf(t, rec, res, "a"))
	assert.Len(t, res.Dangling, 1)

	rec, res = run(t, twoBlank, Options{GapLimit: 2})
	assert.NotNil(t, docOf(t, rec, res, "a"))
}

func TestAssociate_Attributes(t *testing.T) {
	t.Run("between doc and declaration", func(t *testing.T) {
		src := "/// A point.\n#[derive(Debug, Clone)]\n#[repr(C)]\npub struct Point;\n"
		rec, res := run(t, src, defaults())
		b := docOf(t, rec, res, "Point")
		require.NotNil(t, b)
		assert.Equal(t, "A point.", blockText(*b))
	})

	t.Run("doc between attributes", func(t *testing.T) {
		src := "#[derive(Debug)]\n/// A point.\n#[repr(C)]\npub struct Point;\n"
		rec, res := run(t, src, defaults())
		b := docOf(t, rec, res, "Point")
		require.NotNil(t, b)
		assert.Equal(t, "A point.", blockText(*b))
	})

	t.Run("attribute with brackets in a string", func(t *testing.T) {
		src := "/// Docs.\n#[doc(alias = \"]\")]\nfn f() {}\n"
		rec, res := run(t, src, defaults())
		assert.NotNil(t, docOf(t, rec, res, "f"))
	})
}

func TestAssociate_OrdinaryCommentBreaks(t *testing.T) {
	src := "/// Orphaned.\n// TODO: move\nfn a() {}\n"
	rec, res := run(t, src, defaults())
	assert.Nil(t, docOf(t, rec, res, "a"))
	require.Len(t, res.Dangling, 1)
	assert.Equal(t, "Orphaned.", blockText(res.Dangling[0]))
}

func TestAssociate_OneBlockPerDeclaration(t *testing.T) {
	src := "/// First.\nfn a() {}\nfn b() {}\n/// Third.\nfn c() {}\n"
	rec, res := run(t, src, defaults())
	assert.Equal(t, "First.", blockText(*docOf(t, rec, res, "a")))
	assert.Nil(t, docOf(t, rec, res, "b"))
	assert.Equal(t, "Third.", blockText(*docOf(t, rec, res, "c")))
	assert.Empty(t, res.Dangling)
}

func TestAssociate_BlockComments(t *testing.T) {
	src := "/**\n * Builds a widget.\n *\n * Widgets are cheap.\n */\npub fn build() {}\n"
	rec, res := run(t, src, defaults())
	b := docOf(t, rec, res, "build")
	require.NotNil(t, b)
	assert.Equal(t, []string{"Builds a widget.", "", "Widgets are cheap."}, lineTexts(b))
	for _, l := range b.Lines {
		assert.True(t, strings.HasPrefix(src[l.Offset:], l.Text))
	}

	// a plain block comment is not documentation
	_, res = run(t, "/* not docs */\nfn f() {}\n", defaults())
	assert.Empty(t, res.Dangling)
}

func TestAssociate_InnerDocs(t *testing.T) {
	src := `//! Crate docs.
//! More crate docs.

/// Outer module docs.
pub mod inner {
    //! Inner module docs.

    /// Function docs.
    pub fn f() {}
}
`
	rec, res := run(t, src, defaults())
	require.Len(t, res.FileDocs, 1)
	assert.Equal(t, "Crate docs.\nMore crate docs.", blockText(res.FileDocs[0]))
	assert.True(t, res.FileDocs[0].Inner)

	assert.Equal(t, "Outer module docs.", blockText(*docOf(t, rec, res, "inner")))
	assert.Equal(t, "Function docs.", blockText(*docOf(t, rec, res, "f")))

	require.Equal(t, model.Module, rec.Decls[0].Kind)
	require.Len(t, res.ModuleDocs[0], 1)
	assert.Equal(t, "Inner module docs.", blockText(res.ModuleDocs[0][0]))
	assert.Empty(t, res.Dangling)
}

func TestAssociate_Banner(t *testing.T) {
	src := "/// @file Widgets.\n/// Everything about widgets.\n\nfn a() {}\n"
	isBanner := func(b model.DocBlock) bool { return strings.Contains(blockText(b), "@file") }

	rec, res := run(t, src, Options{GapLimit: DefaultGapLimit, IsBanner: isBanner})
	require.Len(t, res.FileDocs, 1)
	assert.Equal(t, "@file Widgets.\nEverything about widgets.", blockText(res.FileDocs[0]))
	assert.Nil(t, docOf(t, rec, res, "a"), "a banner documents the file, not the next item")

	rec, res = run(t, src, defaults())
	assert.Empty(t, res.FileDocs)
	assert.NotNil(t, docOf(t, rec, res, "a"))
}

func TestAssociate_DanglingAtEOF(t *testing.T) {
	src := "fn a() {}\n\n/// Nothing follows.\n"
	rec, res := run(t, src, defaults())
	assert.Nil(t, docOf(t, rec, res, "a"))
	require.Len(t, res.Dangling, 1)
	assert.Equal(t, "Nothing follows.", blockText(res.Dangling[0]))
}

func TestAssociate_Members(t *testing.T) {
	src := `/// Colors.
pub enum Color {
    /// Red.
    Red,
    /// Struct-like.
    Custom {
        /// Red channel.
        r: u8,
    },
}
`
	rec, res := run(t, src, defaults())
	assert.Equal(t, "Colors.", blockText(*docOf(t, rec, res, "Color")))
	assert.Equal(t, "Red.", blockText(*docOf(t, rec, res, "Red")))
	assert.Equal(t, "Struct-like.", blockText(*docOf(t, rec, res, "Custom")))
	assert.Equal(t, "Red channel.", blockText(*docOf(t, rec, res, "r")))
}

func lineTexts(b *model.DocBlock) []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Text
	}
	return out
}
