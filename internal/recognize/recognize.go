// Package recognize finds declaration sites in scanned Rust source.
//
// It works on a flat token stream with brackets matched up front, so it never
// needs a full parse: items are recognized by their leading keywords, groups
// that cannot contain items (function bodies, initializers, macro bodies) are
// skipped by jumping to their matching bracket, and groups that can contain
// items (modules, impls, traits, foreign blocks, struct and enum bodies) are
// pushed as frames on an explicit stack.
package recognize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/model"
	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

// Range is a half-open byte range.
type Range struct {
	Start int
	End   int
}

// Result holds everything the associator needs from a file.
type Result struct {
	Decls        []model.Declaration // sorted by Start
	Attrs        []Range             // attribute ranges, sorted
	ModuleBodies []ModuleBody
}

// ModuleBody is the brace-delimited body of an inline module.
type ModuleBody struct {
	Decl  int // index into Decls
	Range Range
}

type frameKind int

const (
	itemFrame frameKind = iota
	fieldFrame
	variantFrame
)

type frame struct {
	kind    frameKind
	scope   []string
	pos     int
	end     int
	inherit model.Visibility // visibility handed to members, "" for none
	impl    string           // enclosing impl header, "" outside impl blocks
}

type recognizer struct {
	src   string
	toks  []token
	match []int
	lines *scan.Lines
	decls []model.Declaration
	attrs []Range
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Declarations recognizes the declarations in src. spans must come from
// scan.Scan over the same src; a trailing unterminated span may be dropped
// by the caller so that declarations before it are still recognized.
func Declarations(src string, spans []scan.Span) Result {
	toks := tokenize(spans)
	r := &recognizer{
		src:   src,
		toks:  toks,
		match: matchBrackets(toks),
		lines: scan.NewLines(src),
	}
	r.run()

	sort.SliceStable(r.decls, func(i, j int) bool { return r.decls[i].Start < r.decls[j].Start })
	sort.Slice(r.attrs, func(i, j int) bool { return r.attrs[i].Start < r.attrs[j].Start })

	res := Result{Decls: r.decls, Attrs: r.attrs}
	for i, d := range r.decls {
		if d.Kind == model.Module && d.HasBody {
			res.ModuleBodies = append(res.ModuleBodies, ModuleBody{Decl: i, Range: Range{d.BodyStart, d.BodyEnd}})
		}
	}
	return res
}

func (r *recognizer) run() {
	stack := []frame{{kind: itemFrame, end: len(r.toks)}}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.pos >= f.end {
			stack = stack[:len(stack)-1]
			continue
		}
		var child *frame
		switch f.kind {
		case itemFrame:
			child = r.item(f)
		case fieldFrame:
			child = r.field(f)
		case variantFrame:
			child = r.variant(f)
		}
		if child != nil {
			stack = append(stack, *child)
		}
	}
}

func (r *recognizer) text(i int) string {
	if i < 0 || i >= len(r.toks) {
		return ""
	}
	return r.toks[i].text
}

func (r *recognizer) is(i int, s string) bool {
	return i >= 0 && i < len(r.toks) && r.toks[i].kind != tLiteral && r.toks[i].text == s
}

func (r *recognizer) isIdent(i int) bool {
	return i >= 0 && i < len(r.toks) && r.toks[i].kind == tIdent
}

func (r *recognizer) isOpener(i int) bool {
	return r.is(i, "(") || r.is(i, "[") || r.is(i, "{")
}

// closeOf returns the matching closer of the opener at i, clamped to end-1.
func (r *recognizer) closeOf(i, end int) int {
	m := r.match[i]
	if m < 0 || m >= end {
		return end - 1
	}
	return m
}

// attributes skips outer and inner attributes starting at i, recording their
// ranges. It returns the index after the last attribute and the byte offset
// of the first one (-1 when there are none).
func (r *recognizer) attributes(i, end int) (int, int, []string) {
	first := -1
	var texts []string
	for i < end && r.is(i, "#") {
		j := i + 1
		if r.is(j, "!") {
			j++
		}
		if !r.is(j, "[") {
			break
		}
		c := r.closeOf(j, end)
		if first < 0 {
			first = r.toks[i].start
		}
		rg := Range{r.toks[i].start, r.toks[c].end}
		r.attrs = append(r.attrs, rg)
		texts = append(texts, r.src[rg.Start:rg.End])
		i = c + 1
	}
	return i, first, texts
}

// visibility parses an optional visibility qualifier at i.
func (r *recognizer) visibility(i int) (model.Visibility, int) {
	if !r.is(i, "pub") {
		return model.Private, i
	}
	if !r.is(i+1, "(") {
		return model.Public, i + 1
	}
	c := r.closeOf(i+1, len(r.toks))
	if r.is(i+2, "self") && c == i+3 {
		return model.Private, c + 1
	}
	return model.PackagePrivate, c + 1
}

// skipTo returns the index of the first `;` (or `{` when stopAtBrace) at
// bracket depth zero, skipping over groups. It returns end when none is found.
func (r *recognizer) skipTo(i, end int, stopAtBrace bool) int {
	for i < end {
		switch {
		case r.is(i, ";"):
			return i
		case r.is(i, "{") && stopAtBrace:
			return i
		case r.isOpener(i):
			i = r.closeOf(i, end) + 1
		default:
			i++
		}
	}
	return end
}

// skipToComma returns the index of the next `,` outside brackets and angle
// brackets, or end.
func (r *recognizer) skipToComma(i, end int) int {
	angle := 0
	for i < end {
		switch {
		case r.isOpener(i):
			i = r.closeOf(i, end) + 1
			continue
		case r.is(i, "<"):
			angle++
		case r.is(i, ">") && angle > 0:
			angle--
		case r.is(i, ",") && angle == 0:
			return i
		}
		i++
	}
	return end
}

// angleEnd returns the index of the `>` closing the generic list opened at i.
// `->` and `=>` are single tokens so they never count.
func (r *recognizer) angleEnd(i, end int) int {
	depth := 0
	for j := i; j < end; j++ {
		switch {
		case r.is(j, "<"):
			depth++
		case r.is(j, ">"):
			depth--
			if depth == 0 {
				return j
			}
		case r.is(j, ";") || r.is(j, "{") && depth == 0:
			return j - 1
		case r.isOpener(j):
			j = r.closeOf(j, end)
		}
	}
	return end - 1
}

// genericParams extracts parameter names from the list opened at i.
func (r *recognizer) genericParams(i, close int) []string {
	var params []string
	expect := true
	angle := 0
	for k := i + 1; k < close; k++ {
		switch {
		case r.isOpener(k):
			k = r.closeOf(k, close)
			expect = false
			continue
		case r.is(k, "<"):
			angle++
		case r.is(k, ">"):
			angle--
		case r.is(k, ",") && angle == 0:
			expect = true
			continue
		}
		if !expect {
			continue
		}
		t := r.toks[k]
		switch {
		case t.kind == tLifetime:
			params = append(params, t.text)
		case t.kind == tIdent && t.text == "const" && r.isIdent(k+1):
			params = append(params, identName(r.text(k+1)))
			k++
		case t.kind == tIdent:
			params = append(params, identName(t.text))
		}
		expect = false
	}
	return params
}

// signature returns the whitespace-collapsed source between two byte offsets.
func (r *recognizer) signature(start, end int) string {
	if end < start {
		end = start
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(r.src[start:end], " "))
}

func (r *recognizer) declare(d model.Declaration) {
	if d.AttrStart < 0 || d.AttrStart > d.Start {
		d.AttrStart = d.Start
	}
	d.Line = r.lines.Line(d.Start)
	r.decls = append(r.decls, d)
}

// childScope extends a scope without sharing the backing array.
func childScope(scope []string, seg string) []string {
	out := make([]string, 0, len(scope)+1)
	out = append(out, scope...)
	return append(out, seg)
}
