package docs

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/tags"
)

func fixture(t *testing.T) Source {
	t.Helper()
	data, err := os.ReadFile("testdata/fixture.rs")
	require.NoError(t, err)
	return Source{Path: "src/lib.rs", Module: "crate", Content: string(data)}
}

// byPath indexes records by path, keeping the first per key. Impl blocks
// are keyed by their header.
func byPath(fr *model.FileResult) map[string]model.SymbolRecord {
	out := make(map[string]model.SymbolRecord)
	for _, r := range fr.Records {
		key := r.Path()
		if r.Declaration.Kind == model.Impl {
			key = "impl " + r.Declaration.Trait + " for " + r.Declaration.SelfType
		}
		if _, ok := out[key]; !ok {
			out[key] = r
		}
	}
	return out
}

func get(t *testing.T, recs map[string]model.SymbolRecord, path string) model.SymbolRecord {
	t.Helper()
	r, ok := recs[path]
	require.True(t, ok, "no record for %s", path)
	return r
}

func TestParseFile_Fixture(t *testing.T) {
	fr := ParseFile(fixture(t), DefaultOptions())
	recs := byPath(fr)

	t.Run("module docs", func(t *testing.T) {
		assert.Equal(t, "Fixture crate.\n\nUsed by the extraction tests.", fr.ModuleDoc.Summary)
		files := fr.ModuleDoc.TagsOf(model.File)
		require.Len(t, files, 1)
		assert.Equal(t, "fixture.rs Exercises every declaration form the extractor understands.", files[0].Value)
	})

	t.Run("structs", func(t *testing.T) {
		view := get(t, recs, "crate::View")
		assert.Equal(t, model.Struct, view.Declaration.Kind)
		assert.Equal(t, []string{"'a", "T"}, view.Declaration.GenericParams)
		assert.Contains(t, view.Declaration.Signature, "where T: Clone")
		assert.Equal(t, "A borrowed view with a lifetime.", view.Summary)
		tp := view.TagsOf(model.TypeParam)
		require.Len(t, tp, 2)
		assert.Equal(t, "'a", tp[0].Name)
		assert.Equal(t, "element type", tp[1].Value)

		items := get(t, recs, "crate::View::items")
		assert.Equal(t, model.Field, items.Declaration.Kind)
		assert.Equal(t, model.Public, items.Declaration.Visibility)
		assert.Equal(t, "The viewed items.", items.Summary)

		length := get(t, recs, "crate::View::len")
		assert.Equal(t, model.Private, length.Declaration.Visibility)
		assert.False(t, length.Documented())

		assert.Equal(t, model.ShapeTuple, get(t, recs, "crate::Meters").Declaration.Shape)
		marker := get(t, recs, "crate::Marker")
		assert.Equal(t, model.ShapeUnit, marker.Declaration.Shape)
		assert.Equal(t, model.PackagePrivate, marker.Declaration.Visibility)
	})

	t.Run("enum", func(t *testing.T) {
		shape := get(t, recs, "crate::Shape")
		assert.Equal(t, model.Enum, shape.Declaration.Kind)
		assert.Equal(t, "Every variant shape.", shape.Summary, "attributes sit between the doc and the item")

		assert.Equal(t, model.ShapeUnit, get(t, recs, "crate::Shape::Empty").Declaration.Shape)
		assert.Equal(t, model.ShapeTuple, get(t, recs, "crate::Shape::Circle").Declaration.Shape)
		rect := get(t, recs, "crate::Shape::Rect")
		assert.Equal(t, model.ShapeStruct, rect.Declaration.Shape)
		assert.Equal(t, "A rectangle.", rect.Summary)
		assert.Equal(t, "Width.", get(t, recs, "crate::Shape::Rect::w").Summary)
		assert.Equal(t, model.Public, get(t, recs, "crate::Shape::Rect::w").Declaration.Visibility)
		assert.Equal(t, "Height.", get(t, recs, "crate::Shape::Rect::h").Summary)
	})

	t.Run("trait and impls", func(t *testing.T) {
		assert.Equal(t, model.Trait, get(t, recs, "crate::Area").Declaration.Kind)

		area := get(t, recs, "crate::Area::area")
		assert.False(t, area.Declaration.HasBody)
		ret := area.TagsOf(model.Return)
		require.Len(t, ret, 1)
		assert.Equal(t, "the area in square units", ret[0].Value)
		assert.True(t, get(t, recs, "crate::Area::is_empty").Declaration.HasBody)

		impl := get(t, recs, "impl Area for Shape")
		assert.Equal(t, "Area", impl.Declaration.Trait)
		assert.Equal(t, "Shape", impl.Declaration.SelfType)
		display := get(t, recs, "impl fmt::Display for Meters")
		assert.Equal(t, "fmt::Display", display.Declaration.Trait)

		assert.Equal(t, model.Function, get(t, recs, "crate::Shape::area").Declaration.Kind)
		assert.Equal(t, model.Function, get(t, recs, "crate::Meters::fmt").Declaration.Kind)
	})

	t.Run("macro const static alias", func(t *testing.T) {
		double := get(t, recs, "crate::double")
		assert.Equal(t, model.Macro, double.Declaration.Kind)
		assert.Equal(t, 2, double.Declaration.Arms)
		assert.Equal(t, model.Public, double.Declaration.Visibility)

		assert.Equal(t, "pub const MAX_SIZE: usize", get(t, recs, "crate::MAX_SIZE").Declaration.Signature)
		assert.True(t, get(t, recs, "crate::COUNTER").Declaration.Mutable)
		result := get(t, recs, "crate::Result")
		assert.Equal(t, model.TypeAlias, result.Declaration.Kind)
		assert.Equal(t, []string{"T"}, result.Declaration.GenericParams)
		assert.Equal(t, "The crate error.", get(t, recs, "crate::Error").Summary)
	})

	t.Run("functions", func(t *testing.T) {
		checksum := get(t, recs, "crate::checksum")
		require.NotNil(t, checksum.Declaration.Qualifiers)
		assert.True(t, checksum.Declaration.Qualifiers.Unsafe)
		assert.Equal(t, "C", checksum.Declaration.Qualifiers.ABI)
		assert.Equal(t, "Calls into C.", checksum.Summary)
		safety := checksum.TagsOf(model.Safety)
		require.Len(t, safety, 1)
		assert.Equal(t, "`ptr` must be valid for `len` bytes.", safety[0].Value)
		params := checksum.TagsOf(model.Param)
		require.Len(t, params, 2)
		assert.Equal(t, "in", params[0].Direction)
		assert.Equal(t, "len", params[1].Name)

		assert.True(t, get(t, recs, "crate::later").Declaration.Qualifiers.Async)
		assert.Equal(t, model.PackagePrivate, get(t, recs, "crate::parent_only").Declaration.Visibility)
		assert.Equal(t, model.PackagePrivate, get(t, recs, "crate::scoped").Declaration.Visibility)
		assert.Equal(t, "A foreign function.", get(t, recs, "crate::abs").Summary)
	})

	t.Run("inline module", func(t *testing.T) {
		inner := get(t, recs, "crate::inner")
		assert.Equal(t, "An inline module.\n\nInner module docs.", inner.Summary)

		work := get(t, recs, "crate::inner::work")
		assert.Equal(t, "Does inner things.", work.Summary)
		assert.Equal(t, "An inner function.", work.Details)
	})

	t.Run("dangling and diagnostics", func(t *testing.T) {
		require.Len(t, fr.Dangling, 1)
		d := fr.Dangling[0]
		assert.Equal(t, "crate", d.Module)
		assert.Equal(t, "Nothing follows this comment.", d.Doc.Summary)
		assert.Equal(t, strings.Count(fixture(t).Content[:d.Block.Start], "\n")+1, d.Line)

		var kinds []model.DiagnosticKind
		for _, diag := range fr.Diagnostics {
			kinds = append(kinds, diag.Kind)
		}
		assert.Equal(t, []model.DiagnosticKind{model.DemotedTag, model.DanglingDocBlock}, kinds)
	})

	_, ok := recs["crate::fmt"]
	assert.False(t, ok, "use declarations are not items")
}

func TestParseFile_Deterministic(t *testing.T) {
	src := fixture(t)
	first := ParseFile(src, DefaultOptions())
	for range 3 {
		assert.Equal(t, first, ParseFile(src, DefaultOptions()))
	}
}

func TestParseFile_JSONRoundTrip(t *testing.T) {
	fr := ParseFile(fixture(t), DefaultOptions())
	data, err := json.Marshal(fr)
	require.NoError(t, err)

	var back model.FileResult
	require.NoError(t, json.Unmarshal(data, &back))
	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestParseFile_Unterminated(t *testing.T) {
	src := "/// Documented.\nfn a() {}\n\nfn b() { let s = \"open;\n"
	fr := ParseFile(Source{Path: "src/lib.rs", Module: "crate", Content: src}, DefaultOptions())

	require.NotEmpty(t, fr.Records)
	assert.Equal(t, "a", fr.Records[0].Declaration.Name)
	assert.Equal(t, "Documented.", fr.Records[0].Summary, "records before the fault are kept")

	require.Len(t, fr.Diagnostics, 1)
	diag := fr.Diagnostics[0]
	assert.Equal(t, model.UnterminatedSpan, diag.Kind)
	assert.Equal(t, strings.Index(src, "\"open"), diag.Offset)
	assert.Equal(t, 4, diag.Line)
}

func TestParseFile_DanglingInsideBody(t *testing.T) {
	src := "mod m {\n    fn f() {\n        /// stray\n        let x = 1;\n    }\n}\n"
	fr := ParseFile(Source{Path: "src/lib.rs", Module: "crate", Content: src}, DefaultOptions())

	require.Len(t, fr.Dangling, 1)
	assert.Equal(t, "crate::m", fr.Dangling[0].Module)
	assert.Equal(t, 3, fr.Dangling[0].Line)
	require.Len(t, fr.Diagnostics, 1)
	assert.Equal(t, model.DanglingDocBlock, fr.Diagnostics[0].Kind)
	assert.Equal(t, "crate::m", fr.Diagnostics[0].Path)
}

func TestParseFile_BriefPolicy(t *testing.T) {
	src := "/// @brief One.\n/// @brief Two.\nfn f() {}\n"
	for _, tc := range []struct {
		opts Options
		want string
	}{
		{DefaultOptions(), "One."},
		{Options{GapLimit: 1, BriefPolicy: tags.LastWins}, "Two."},
	} {
		fr := ParseFile(Source{Path: "src/lib.rs", Module: "crate", Content: src}, tc.opts)
		require.Len(t, fr.Records, 1)
		assert.Equal(t, tc.want, fr.Records[0].Summary)
		require.Len(t, fr.Diagnostics, 1)
		assert.Equal(t, model.DemotedTag, fr.Diagnostics[0].Kind)
		assert.Equal(t, model.Brief, fr.Diagnostics[0].TagKey)
	}
}

func TestParseFile_Empty(t *testing.T) {
	fr := ParseFile(Source{Path: "src/lib.rs", Module: "crate"}, DefaultOptions())
	assert.Empty(t, fr.Records)
	assert.Empty(t, fr.Dangling)
	assert.Empty(t, fr.Diagnostics)
	assert.True(t, fr.ModuleDoc.Empty())
}

func TestParseFile_BriefAndParam(t *testing.T) {
	src := "/// @brief desc\n/// @param x value\npub fn f(x: i32) {}\n"
	fr := ParseFile(Source{Path: "src/lib.rs", Module: "crate", Content: src}, DefaultOptions())

	require.Len(t, fr.Records, 1)
	r := fr.Records[0]
	assert.Equal(t, model.Function, r.Declaration.Kind)
	assert.Equal(t, "f", r.Declaration.Name)
	assert.Equal(t, model.Public, r.Declaration.Visibility)
	assert.Equal(t, "desc", r.Summary)
	assert.Equal(t, []model.Tag{{Key: model.Param, Name: "x", Value: "value", Offset: strings.Index(src, "@param")}}, r.Tags)
	assert.Empty(t, fr.Diagnostics)
}
