package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

const sample = `//! Crate docs.

/// Adds one.
pub fn inc(v: u32)   ->   u32 {   // trailing
    /* inline */ v + 1
}

/*
 * Block comment
 */
const S: &str = "a  // not a comment
    /* still a string */";
let r = r#"  spaced  "#;
`

func TestCompress(t *testing.T) {
	got, err := Compress(sample, Options{})
	require.NoError(t, err)
	assert.Equal(t, `pub fn inc(v: u32) -> u32 {
v + 1
}
const S: &str = "a  // not a comment
    /* still a string */";
let r = r#"  spaced  "#;`, got)
}

func TestCompress_LineNumbers(t *testing.T) {
	got, err := Compress(sample, Options{LineNumbers: true})
	require.NoError(t, err)
	assert.Equal(t, `4: pub fn inc(v: u32) -> u32 {
5: v + 1
6: }
11: const S: &str = "a  // not a comment
    /* still a string */";
13: let r = r#"  spaced  "#;`, got)
}

func TestCompress_KeepDocs(t *testing.T) {
	got, err := Compress("//! Crate.\n\n/// Doc.   \n/** Block. */ fn f() {} // plain\n", Options{KeepDocs: true})
	require.NoError(t, err)
	assert.Equal(t, "//! Crate.\n/// Doc.\n/** Block. */\nfn f() {}", got)
}

func TestCompress_CommentsSeparateTokens(t *testing.T) {
	got, err := Compress("let a/**/= 1;\nlet b = a/*\n*/+ 2;\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, "let a = 1;\nlet b = a\n+ 2;", got)
}

func TestLines(t *testing.T) {
	lines, err := Lines("\n\n  fn a() {}\t\n\n// gone\n  fn b() {}\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, []Line{{Number: 3, Text: "fn a() {}"}, {Number: 6, Text: "fn b() {}"}}, lines)

	lines, err = Lines("// only a comment\n\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCompress_Unterminated(t *testing.T) {
	_, err := Compress("fn f() { let s = \"open; }\n", Options{})
	var uerr *scan.UnterminatedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, scan.StringLiteral, uerr.Kind)
}

func TestFile(t *testing.T) {
	got, err := File("src/lib.rs", "// head\n\nfn a() {}\nconst S: &str = \"x\ny\";\n", Options{LineNumbers: true})
	require.NoError(t, err)
	assert.Equal(t, "@@@ src/lib.rs | rust\n> Lines: 3-5\n```\n3: fn a() {}\n4: const S: &str = \"x\ny\";\n```", got)

	got, err = File("empty.rs", "// nothing\n", Options{})
	require.NoError(t, err)
	assert.Equal(t, "@@@ empty.rs | rust\n> Lines: 0-0\n```\n\n```", got)

	_, err = File("bad.rs", "/* open", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.rs")
}
