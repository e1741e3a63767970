// Package associate groups doc comments into blocks and binds each block to
// the declaration it documents.
package associate

import (
	"sort"
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/recognize"
	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

// DefaultGapLimit is the number of blank lines tolerated between a doc block
// and its declaration.
const DefaultGapLimit = 1

// Options configure association.
type Options struct {
	GapLimit int
	// IsBanner reports whether a leading outer block documents the file
	// itself. Nil disables banners.
	IsBanner func(model.DocBlock) bool
}

// Result is the association of one file.
type Result struct {
	Docs       []*model.DocBlock  // outer docs, parallel to the declarations
	ModuleDocs [][]model.DocBlock // inner docs of inline modules, parallel to the declarations
	FileDocs   []model.DocBlock   // banner and inner docs of the file module
	Dangling   []model.DocBlock
}

// Associate binds the doc blocks in spans to the declarations in rec.
func Associate(src string, spans []scan.Span, rec recognize.Result, opts Options) Result {
	a := &associator{src: src, attrs: rec.Attrs, gapLimit: opts.GapLimit}
	if a.gapLimit < 0 {
		a.gapLimit = 0
	}
	blocks := a.blocks(spans)

	res := Result{
		Docs:       make([]*model.DocBlock, len(rec.Decls)),
		ModuleDocs: make([][]model.DocBlock, len(rec.Decls)),
	}

	var outer []int
	for i, b := range blocks {
		if !b.Inner {
			outer = append(outer, i)
		}
	}
	claimed := make(map[int]bool)

	if len(outer) > 0 && opts.IsBanner != nil {
		b := blocks[outer[0]]
		if (len(rec.Decls) == 0 || b.End <= rec.Decls[0].AttrStart) && opts.IsBanner(b) {
			res.FileDocs = append(res.FileDocs, b)
			claimed[outer[0]] = true
		}
	}

	for di, d := range rec.Decls {
		// last outer block ending before the declaration; attributes may
		// sit on either side of it
		k := sort.Search(len(outer), func(k int) bool { return blocks[outer[k]].End > d.Start }) - 1
		if k < 0 || claimed[outer[k]] {
			continue
		}
		b := blocks[outer[k]]
		if blank, ok := a.gap(b.End, d.Start); ok && blank <= a.gapLimit {
			claimed[outer[k]] = true
			res.Docs[di] = &b
		}
	}

	for i, b := range blocks {
		if b.Inner {
			if m := innermostModule(rec, b.Start); m >= 0 {
				res.ModuleDocs[m] = append(res.ModuleDocs[m], b)
			} else {
				res.FileDocs = append(res.FileDocs, b)
			}
			continue
		}
		if !claimed[i] {
			res.Dangling = append(res.Dangling, b)
		}
	}
	sort.SliceStable(res.FileDocs, func(i, j int) bool { return res.FileDocs[i].Start < res.FileDocs[j].Start })
	return res
}

type associator struct {
	src      string
	attrs    []recognize.Range
	gapLimit int
}

// blocks builds doc blocks from comment spans, merging neighbours of the same
// style separated only by whitespace and attributes.
func (a *associator) blocks(spans []scan.Span) []model.DocBlock {
	var out []model.DocBlock
	for _, sp := range spans {
		style := sp.Doc()
		if style == scan.NotDoc {
			continue
		}
		if sp.Kind == scan.BlockComment && !strings.HasSuffix(sp.Text, "*/") {
			continue
		}
		lines := docLines(sp)
		inner := style == scan.InnerDoc
		if n := len(out); n > 0 && out[n-1].Inner == inner {
			if blank, ok := a.gap(out[n-1].End, sp.Start); ok && blank <= a.gapLimit {
				out[n-1].Lines = append(out[n-1].Lines, lines...)
				out[n-1].End = sp.End
				continue
			}
		}
		out = append(out, model.DocBlock{Lines: lines, Start: sp.Start, End: sp.End, Inner: inner})
	}
	return out
}

// gap reports whether src[from:to] holds only whitespace and attributes, and
// how many blank lines it contains.
func (a *associator) gap(from, to int) (int, bool) {
	if from > to {
		return 0, false
	}
	var b strings.Builder
	pos := from
	k := sort.Search(len(a.attrs), func(k int) bool { return a.attrs[k].End > from })
	for ; k < len(a.attrs) && a.attrs[k].Start < to; k++ {
		at := a.attrs[k]
		if at.Start < pos {
			// attribute straddles the region start
			return 0, false
		}
		b.WriteString(a.src[pos:at.Start])
		b.WriteByte('#')
		pos = min(at.End, to)
	}
	b.WriteString(a.src[pos:to])

	lines := strings.Split(b.String(), "\n")
	blank := 0
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" && strings.Trim(t, "#") != "" {
			return 0, false
		}
		if i > 0 && i < len(lines)-1 && t == "" {
			blank++
		}
	}
	return blank, true
}

func innermostModule(rec recognize.Result, offset int) int {
	best := -1
	bestStart := -1
	for _, mb := range rec.ModuleBodies {
		if mb.Range.Start <= offset && offset < mb.Range.End && mb.Range.Start > bestStart {
			best, bestStart = mb.Decl, mb.Range.Start
		}
	}
	return best
}

// docLines strips comment delimiters from a doc comment span.
func docLines(sp scan.Span) []model.DocLine {
	if sp.Kind == scan.LineComment {
		text := sp.Text[3:]
		off := sp.Start + 3
		if strings.HasPrefix(text, " ") {
			text, off = text[1:], off+1
		}
		return []model.DocLine{{Text: strings.TrimRight(text, " \t\r"), Offset: off}}
	}

	body := sp.Text[3 : len(sp.Text)-2]
	off := sp.Start + 3
	raw := strings.Split(body, "\n")
	var lines []model.DocLine
	for i, l := range raw {
		lineOff := off
		off += len(l) + 1

		text, lead := l, 0
		if i > 0 {
			t := strings.TrimLeft(text, " \t")
			lead += len(text) - len(t)
			text = t
			if strings.HasPrefix(text, "*") {
				text = text[1:]
				lead++
			}
		}
		if strings.HasPrefix(text, " ") {
			text = text[1:]
			lead++
		}
		text = strings.TrimRight(text, " \t\r")
		if (i == 0 || i == len(raw)-1) && strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, model.DocLine{Text: text, Offset: lineOff + lead})
	}
	return lines
}
