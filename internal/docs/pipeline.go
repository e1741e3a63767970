package docs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jcdickinson/ferrisdoc/internal/associate"
	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/recognize"
	"github.com/jcdickinson/ferrisdoc/internal/scan"
	"github.com/jcdickinson/ferrisdoc/internal/tags"
)

// Source is one input buffer together with the module path it defines.
type Source struct {
	Path    string
	Module  string
	Content string
}

// ParseFile runs the scan, recognize, associate and tag stages over one
// source. It never fails: lexical faults and anomalies become diagnostics
// and everything recognized before a fault is kept.
func ParseFile(src Source, opts Options) *model.FileResult {
	res := &model.FileResult{File: src.Path, Module: src.Module}
	lines := scan.NewLines(src.Content)

	spans, err := scan.Scan(src.Content)
	var uerr *scan.UnterminatedError
	if errors.As(err, &uerr) {
		res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
			Kind:    model.UnterminatedSpan,
			File:    src.Path,
			Offset:  uerr.Offset,
			Line:    lines.Line(uerr.Offset),
			Message: uerr.Error(),
		})
		// the open span is always last
		spans = spans[:len(spans)-1]
	}

	rec := recognize.Declarations(src.Content, spans)
	assoc := associate.Associate(src.Content, spans, rec, associate.Options{
		GapLimit: opts.GapLimit,
		IsBanner: func(b model.DocBlock) bool { return tags.HasFile(b.Lines) },
	})

	parse := func(blocks []model.DocBlock) model.Doc {
		if len(blocks) == 0 {
			return model.Doc{}
		}
		p := tags.ParseBlocks(blocks, opts.BriefPolicy)
		for _, t := range p.Demoted {
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:    model.DemotedTag,
				File:    src.Path,
				Offset:  t.Offset,
				Line:    lines.Line(t.Offset),
				TagKey:  model.Brief,
				Message: fmt.Sprintf("%s demoted to an unrecognized tag (brief policy %s)", t.Name, opts.BriefPolicy),
			})
		}
		return p.Doc
	}

	res.ModuleDoc = parse(assoc.FileDocs)

	for i, d := range rec.Decls {
		var blocks []model.DocBlock
		if b := assoc.Docs[i]; b != nil {
			blocks = append(blocks, *b)
		}
		blocks = append(blocks, assoc.ModuleDocs[i]...)
		res.Records = append(res.Records, model.SymbolRecord{
			Declaration: d,
			Module:      joinScope(src.Module, d.Scope),
			File:        src.Path,
			Doc:         parse(blocks),
		})
	}

	for _, b := range assoc.Dangling {
		module := src.Module
		if enc := enclosing(rec.Decls, b.Start); enc >= 0 {
			module = model.JoinPath(joinScope(src.Module, rec.Decls[enc].Scope), rec.Decls[enc].Name)
		}
		line := lines.Line(b.Start)
		res.Dangling = append(res.Dangling, model.DanglingBlock{
			File:   src.Path,
			Module: module,
			Line:   line,
			Block:  b,
			Doc:    parse([]model.DocBlock{b}),
		})
		res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
			Kind:    model.DanglingDocBlock,
			File:    src.Path,
			Offset:  b.Start,
			Line:    line,
			Path:    module,
			Message: "doc comment is not attached to any declaration",
		})
	}

	sort.SliceStable(res.Diagnostics, func(i, j int) bool {
		return res.Diagnostics[i].Offset < res.Diagnostics[j].Offset
	})
	return res
}

// enclosing returns the innermost scope-opening declaration containing
// offset, or -1.
func enclosing(decls []model.Declaration, offset int) int {
	best := -1
	for i, d := range decls {
		if d.Start > offset {
			break
		}
		if offset >= d.End {
			continue
		}
		switch d.Kind {
		case model.Module, model.Trait, model.Impl, model.Struct, model.Enum:
			best = i
		}
	}
	return best
}

func joinScope(module string, scope []string) string {
	for _, s := range scope {
		module = model.JoinPath(module, s)
	}
	return module
}
