package db

import (
	"path/filepath"
	"testing"

	"github.com/jcdickinson/ferrisdoc/internal/index"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testIndex() (*index.Index, []model.Diagnostic) {
	ix := index.New()
	fr := &model.FileResult{
		File:      "src/lib.rs",
		Module:    "crate",
		ModuleDoc: model.Doc{Summary: "Crate docs."},
		Records: []model.SymbolRecord{
			{
				Declaration: model.Declaration{Kind: model.Struct, Name: "Parser", Visibility: model.Public, Line: 3, Signature: "pub struct Parser"},
				Module:      "crate",
				File:        "src/lib.rs",
				Doc:         model.Doc{Summary: "Parses 100% of input_files."},
			},
			{
				Declaration: model.Declaration{Kind: model.Function, Name: "parse", Visibility: model.Public, Line: 8, Scope: []string{"Parser"}},
				Module:      "crate::Parser",
				File:        "src/lib.rs",
				Doc:         model.Doc{Summary: "Runs the parser.", Tags: []model.Tag{{Key: model.Return, Value: "the tree"}}},
			},
			{
				Declaration: model.Declaration{Kind: model.Module, Name: "util", Visibility: model.Private, Line: 12},
				Module:      "crate",
				File:        "src/lib.rs",
			},
		},
	}
	diags := ix.Insert(fr)
	diags = append(diags, model.Diagnostic{Kind: model.DanglingDocBlock, File: "src/lib.rs", Line: 20, Message: "dangling"})
	return ix, diags
}

func TestSaveIndex(t *testing.T) {
	db := testDB(t)
	ix, diags := testIndex()

	if err := db.SaveIndex("/src/demo", 1, ix, diags); err != nil {
		t.Fatalf("SaveIndex: %v", err)
	}

	scan, err := db.LastScan()
	if err != nil {
		t.Fatal(err)
	}
	if scan == nil || scan.Root != "/src/demo" || scan.Symbols != 3 || scan.Diagnostics != 1 {
		t.Fatalf("unexpected scan: %+v", scan)
	}

	t.Run("lookup", func(t *testing.T) {
		recs, err := db.Lookup("crate::Parser::parse")
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
		if recs[0].Summary != "Runs the parser." || len(recs[0].Tags) != 1 {
			t.Errorf("record did not round-trip: %+v", recs[0])
		}
		if recs[0].Declaration.Scope[0] != "Parser" {
			t.Errorf("scope = %v", recs[0].Declaration.Scope)
		}
	})

	t.Run("children", func(t *testing.T) {
		recs, err := db.Children("crate")
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 3 {
			t.Fatalf("expected 3 records under crate, got %d", len(recs))
		}
		recs, err = db.Children("crate::Parser")
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].Declaration.Name != "parse" {
			t.Errorf("unexpected children of crate::Parser: %+v", recs)
		}
	})

	t.Run("search", func(t *testing.T) {
		recs, err := db.Search("parser", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Errorf("expected 2 matches, got %d", len(recs))
		}
		recs, err = db.Search("100%", 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].Declaration.Name != "Parser" {
			t.Errorf("literal %% search: %+v", recs)
		}
	})

	t.Run("find", func(t *testing.T) {
		recs, err := db.Find([]model.DeclKind{model.Function, model.Module}, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 || recs[0].Declaration.Name != "util" || recs[1].Declaration.Name != "parse" {
			t.Errorf("find by kind: %+v", recs)
		}

		recs, err = db.Find(nil, "^[Pp]arse", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 2 {
			t.Errorf("find by pattern: expected 2 matches, got %d", len(recs))
		}

		recs, err = db.Find([]model.DeclKind{model.Struct}, "ser$", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 || recs[0].Path() != "crate::Parser" {
			t.Errorf("find by kind and pattern: %+v", recs)
		}

		recs, err = db.Find([]model.DeclKind{model.Trait}, "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 0 {
			t.Errorf("expected no traits, got %+v", recs)
		}
	})

	t.Run("module doc", func(t *testing.T) {
		doc, err := db.ModuleDoc("crate")
		if err != nil {
			t.Fatal(err)
		}
		if doc == nil || doc.Summary != "Crate docs." {
			t.Errorf("module doc = %+v", doc)
		}
	})

	t.Run("diagnostics", func(t *testing.T) {
		got, err := db.Diagnostics()
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Kind != model.DanglingDocBlock {
			t.Errorf("diagnostics = %+v", got)
		}
	})
}

func TestSaveIndex_Replaces(t *testing.T) {
	db := testDB(t)
	ix, diags := testIndex()

	if err := db.SaveIndex("/a", 1, ix, diags); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveIndex("/b", 1, index.New(), nil); err != nil {
		t.Fatal(err)
	}

	recs, err := db.Children("")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty index after replace, got %d records", len(recs))
	}
	scan, err := db.LastScan()
	if err != nil {
		t.Fatal(err)
	}
	if scan.Root != "/b" {
		t.Errorf("last scan root = %q, want /b", scan.Root)
	}
}

func TestLastScan_Empty(t *testing.T) {
	db := testDB(t)
	scan, err := db.LastScan()
	if err != nil {
		t.Fatal(err)
	}
	if scan != nil {
		t.Errorf("expected no scan, got %+v", scan)
	}
}
