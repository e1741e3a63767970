package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

func TestRenderConstructs(t *testing.T) {
	src := "/// Doc.\n#[inline]\npub fn run() {\n    go();\n}\n"
	recs := []model.SymbolRecord{
		{
			Declaration: model.Declaration{
				Kind: model.Function, Name: "run", Line: 3, Signature: "pub fn run()",
				AttrStart: strings.Index(src, "#[inline]"), End: strings.Index(src, "}") + 1,
			},
			Module: "crate",
			File:   "src/lib.rs",
		},
		{
			Declaration: model.Declaration{Kind: model.Struct, Name: "Gone", Line: 7, AttrStart: 0, End: 500},
			Module:      "crate",
			File:        "src/lib.rs",
		},
		{
			Declaration: model.Declaration{Kind: model.Const, Name: "MAX", Line: 2},
			Module:      "crate::util",
			File:        "src/util.rs",
		},
	}
	source := func(file string) (string, error) {
		if file == "src/lib.rs" {
			return src, nil
		}
		return "", errors.New("missing")
	}

	var sb strings.Builder
	renderConstructs(&sb, recs, source, true)
	want := "@@@ src/lib.rs | rust\n" +
		"\n### fn: `crate::run`\n- Signature: `pub fn run()`\n- Lines: 2-5\n```rust\n2: #[inline]\n3: pub fn run() {\n4:     go();\n5: }\n```\n" +
		"\n### struct: `crate::Gone`\n- Line: 7\n" +
		"\n@@@ src/util.rs | rust\n" +
		"\n### const: `crate::util::MAX`\n- Line: 2\n"
	if got := sb.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}

	sb.Reset()
	renderConstructs(&sb, recs[:1], nil, false)
	want = "@@@ src/lib.rs | rust\n\n### fn: `crate::run`\n- Signature: `pub fn run()`\n- Line: 3\n"
	if got := sb.String(); got != want {
		t.Errorf("without source got:\n%s\nwant:\n%s", got, want)
	}
}
