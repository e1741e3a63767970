package recognize

import (
	"strconv"
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

// item recognizes one item at f.pos and advances f.pos past it. It returns a
// frame to push when the item has a body that can hold further items.
func (r *recognizer) item(f *frame) *frame {
	i, attrStart, attrTexts := r.attributes(f.pos, f.end)
	if i >= f.end {
		f.pos = i
		return nil
	}
	if r.is(i, ";") {
		f.pos = i + 1
		return nil
	}

	start := r.toks[i].start
	vis, i := r.visibility(i)
	if f.inherit != "" {
		vis = f.inherit
	}

	d := model.Declaration{Visibility: vis, AttrStart: attrStart, Start: start, Scope: f.scope, Impl: f.impl}
	if d.AttrStart < 0 {
		d.AttrStart = start
	}

	var q model.Qualifiers
	var hasQual bool
qualifiers:
	for {
		switch {
		case r.is(i, "default") && r.isIdent(i+1):
			i++
		case r.is(i, "const") && (r.is(i+1, "fn") || r.is(i+1, "unsafe") || r.is(i+1, "async") || r.is(i+1, "extern")):
			q.Const, hasQual = true, true
			i++
		case r.is(i, "async") && !r.is(i+1, "{") && !r.is(i+1, "move"):
			q.Async, hasQual = true, true
			i++
		case r.is(i, "unsafe") && !r.is(i+1, "{"):
			q.Unsafe, hasQual = true, true
			i++
		case r.is(i, "safe") && r.isIdent(i+1):
			i++
		case r.is(i, "auto") && r.is(i+1, "trait"):
			i++
		case r.is(i, "extern") && r.is(i+1, "crate"):
			f.pos = r.skipTo(i, f.end, false) + 1
			return nil
		case r.is(i, "extern"):
			abi := "C"
			j := i + 1
			if j < len(r.toks) && r.toks[j].kind == tLiteral {
				abi = unquote(r.toks[j].text)
				j++
			}
			if r.is(j, "{") {
				// foreign block: transparent scope
				c := r.closeOf(j, f.end)
				f.pos = c + 1
				return &frame{kind: itemFrame, scope: f.scope, pos: j + 1, end: c}
			}
			q.ABI, hasQual = abi, true
			i = j
		default:
			break qualifiers
		}
	}

	switch r.text(i) {
	case "fn":
		d.Kind = model.Function
		d.Qualifiers = &q
		return r.function(f, d, i)
	case "struct", "union":
		if r.isIdent(i + 1) {
			return r.structure(f, d, i)
		}
	case "enum":
		if r.isIdent(i + 1) {
			return r.enumeration(f, d, i)
		}
	case "trait":
		d.Kind = model.Trait
		if hasQual && q.Unsafe {
			d.Qualifiers = &model.Qualifiers{Unsafe: true}
		}
		return r.container(f, d, i, model.Trait)
	case "impl":
		if hasQual && q.Unsafe {
			d.Qualifiers = &model.Qualifiers{Unsafe: true}
		}
		return r.impl(f, d, i)
	case "mod":
		if r.isIdent(i + 1) {
			return r.module(f, d, i)
		}
	case "macro_rules":
		if r.is(i+1, "!") && r.isIdent(i+2) {
			if hasAttr(attrTexts, "macro_export") {
				d.Visibility = model.Public
			}
			return r.macroRules(f, d, i)
		}
	case "macro":
		if r.isIdent(i + 1) {
			return r.macro(f, d, i)
		}
	case "const":
		if r.isIdent(i+1) || r.is(i+1, "_") {
			return r.simple(f, d, i, model.Const)
		}
	case "static":
		return r.static(f, d, i)
	case "type":
		if r.isIdent(i + 1) {
			return r.simple(f, d, i, model.TypeAlias)
		}
	case "use":
		f.pos = r.skipTo(i, f.end, false) + 1
		return nil
	}

	// item-position macro invocation, or something not understood
	if r.isIdent(i) && r.is(i+1, "!") {
		j := i + 2
		if r.isIdent(j) {
			j++
		}
		if r.isOpener(j) {
			c := r.closeOf(j, f.end)
			j = c + 1
			if r.is(j, ";") {
				j++
			}
		}
		f.pos = j
		return nil
	}
	if r.isOpener(i) {
		f.pos = r.closeOf(i, f.end) + 1
		return nil
	}
	f.pos = i + 1
	return nil
}

// body finds the end of an item whose header starts at i: either a `;` or a
// brace group. It returns the index of the terminator and whether it is a
// brace.
func (r *recognizer) body(i, end int) (int, bool) {
	j := r.skipTo(i, end, true)
	return j, r.is(j, "{")
}

// afterName returns the index after a name at i and its generic list.
func (r *recognizer) afterName(d *model.Declaration, i, end int) int {
	d.Name = identName(r.text(i))
	i++
	if r.is(i, "<") {
		c := r.angleEnd(i, end)
		d.GenericParams = r.genericParams(i, c)
		i = c + 1
	}
	return i
}

func (r *recognizer) finish(f *frame, d model.Declaration, term int) {
	if term >= f.end || term >= len(r.toks) {
		term = min(f.end, len(r.toks)) - 1
	}
	d.End = r.toks[term].end
	r.declare(d)
	f.pos = term + 1
}

func (r *recognizer) function(f *frame, d model.Declaration, i int) *frame {
	if !r.isIdent(i + 1) {
		f.pos = i + 1
		return nil
	}
	j := r.afterName(&d, i+1, f.end)
	term, brace := r.body(j, f.end)
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if brace {
		d.HasBody = true
		term = r.closeOf(term, f.end)
	}
	r.finish(f, d, term)
	return nil
}

// headerEnd returns the byte offset where the signature stops: before the
// terminator token at term.
func (r *recognizer) headerEnd(term int) int {
	if term >= len(r.toks) {
		return len(r.src)
	}
	return r.toks[term].start
}

func (r *recognizer) structure(f *frame, d model.Declaration, i int) *frame {
	if r.text(i) == "union" {
		d.Kind = model.Enum
	} else {
		d.Kind = model.Struct
	}
	j := r.afterName(&d, i+1, f.end)
	d.Shape = model.ShapeUnit
	if r.is(j, "(") {
		d.Shape = model.ShapeTuple
	}
	term, brace := r.body(j, f.end)
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if !brace {
		r.finish(f, d, term)
		return nil
	}
	d.Shape = model.ShapeStruct
	c := r.closeOf(term, f.end)
	r.finish(f, d, c)
	return &frame{kind: fieldFrame, scope: childScope(f.scope, d.Name), pos: term + 1, end: c}
}

func (r *recognizer) enumeration(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Enum
	j := r.afterName(&d, i+1, f.end)
	term, brace := r.body(j, f.end)
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if !brace {
		r.finish(f, d, term)
		return nil
	}
	c := r.closeOf(term, f.end)
	vis := d.Visibility
	r.finish(f, d, c)
	return &frame{kind: variantFrame, scope: childScope(f.scope, d.Name), pos: term + 1, end: c, inherit: vis}
}

// container handles traits: a named item whose brace body holds items that
// inherit its visibility.
func (r *recognizer) container(f *frame, d model.Declaration, i int, kind model.DeclKind) *frame {
	d.Kind = kind
	if !r.isIdent(i + 1) {
		f.pos = i + 1
		return nil
	}
	j := r.afterName(&d, i+1, f.end)
	term, brace := r.body(j, f.end)
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if !brace {
		r.finish(f, d, term)
		return nil
	}
	c := r.closeOf(term, f.end)
	vis := d.Visibility
	r.finish(f, d, c)
	return &frame{kind: itemFrame, scope: childScope(f.scope, d.Name), pos: term + 1, end: c, inherit: vis}
}

func (r *recognizer) module(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Module
	d.Name = identName(r.text(i + 1))
	j := i + 2
	term, brace := r.body(j, f.end)
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if !brace {
		r.finish(f, d, term)
		return nil
	}
	c := r.closeOf(term, f.end)
	d.HasBody = true
	d.BodyStart = r.toks[term].end
	d.BodyEnd = r.toks[c].start
	if c <= term {
		d.BodyEnd = d.BodyStart
	}
	r.finish(f, d, c)
	return &frame{kind: itemFrame, scope: childScope(f.scope, d.Name), pos: term + 1, end: c}
}

func (r *recognizer) impl(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Impl
	j := i + 1
	if r.is(j, "<") {
		c := r.angleEnd(j, f.end)
		d.GenericParams = r.genericParams(j, c)
		j = c + 1
	}
	term, brace := r.body(j, f.end)

	// header runs up to `where` or the body
	hdrEnd := term
	for k := j; k < term; k++ {
		if r.is(k, "where") {
			hdrEnd = k
			break
		}
	}
	forAt := -1
	angle := 0
	for k := j; k < hdrEnd; k++ {
		switch {
		case r.is(k, "<"):
			angle++
		case r.is(k, ">"):
			angle--
		case r.isOpener(k):
			k = r.closeOf(k, hdrEnd)
		case r.is(k, "for") && angle == 0 && !r.is(k+1, "<"):
			forAt = k
		}
		if forAt >= 0 {
			break
		}
	}
	typeStart := j
	if forAt >= 0 {
		d.Trait = r.tokenText(j, forAt)
		typeStart = forAt + 1
	}
	d.SelfType = r.tokenText(typeStart, hdrEnd)
	d.Name = r.typeName(typeStart, hdrEnd)
	if d.Name == "" {
		d.Name = d.SelfType
	}
	d.Signature = r.signature(d.Start, r.headerEnd(term))
	if !brace {
		r.finish(f, d, term)
		return nil
	}
	c := r.closeOf(term, f.end)
	r.finish(f, d, c)
	header := d.SelfType
	if d.Trait != "" {
		header = d.Trait + " for " + d.SelfType
	}
	return &frame{kind: itemFrame, scope: childScope(f.scope, d.Name), pos: term + 1, end: c, impl: header}
}

// tokenText returns the collapsed source text of tokens [i, j).
func (r *recognizer) tokenText(i, j int) string {
	if i >= j || i >= len(r.toks) {
		return ""
	}
	return r.signature(r.toks[i].start, r.toks[j-1].end)
}

// typeName returns the base name of the type written in tokens [i, j): the
// last identifier outside generic arguments, so `&'a mut Foo<T>` gives Foo
// and `std::fmt::Display` gives Display.
func (r *recognizer) typeName(i, j int) string {
	name := ""
	angle := 0
	for k := i; k < j; k++ {
		switch {
		case r.is(k, "<"):
			angle++
		case r.is(k, ">"):
			angle--
		case r.isOpener(k):
			k = r.closeOf(k, j)
		case angle == 0 && r.isIdent(k):
			switch r.text(k) {
			case "dyn", "mut", "const", "impl":
			default:
				name = identName(r.text(k))
			}
		}
	}
	return name
}

func (r *recognizer) macroRules(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Macro
	d.Name = identName(r.text(i + 2))
	j := i + 3
	if !r.isOpener(j) {
		f.pos = j
		return nil
	}
	c := r.closeOf(j, f.end)
	d.Arms = r.countArms(j, c)
	d.Signature = "macro_rules! " + d.Name
	r.finish(f, d, c)
	if r.is(f.pos, ";") {
		f.pos++
	}
	return nil
}

// macro handles declarative macros 2.0: `macro name(args) { body }` or
// `macro name { arms }`.
func (r *recognizer) macro(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Macro
	d.Name = identName(r.text(i + 1))
	j := i + 2
	switch {
	case r.is(j, "{"):
		c := r.closeOf(j, f.end)
		d.Arms = r.countArms(j, c)
		d.Signature = r.signature(d.Start, r.headerEnd(j))
		r.finish(f, d, c)
	case r.is(j, "("):
		c := r.closeOf(j, f.end)
		d.Arms = 1
		d.Signature = r.signature(d.Start, r.toks[c].end)
		if r.is(c+1, "{") {
			c = r.closeOf(c+1, f.end)
		}
		r.finish(f, d, c)
	default:
		f.pos = j
	}
	return nil
}

// countArms counts `=>` directly inside the group opened at open.
func (r *recognizer) countArms(open, close int) int {
	n := 0
	for k := open + 1; k < close; k++ {
		switch {
		case r.isOpener(k):
			k = r.closeOf(k, close)
		case r.is(k, "=>"):
			n++
		}
	}
	return n
}

func (r *recognizer) simple(f *frame, d model.Declaration, i int, kind model.DeclKind) *frame {
	d.Kind = kind
	j := r.afterName(&d, i+1, f.end)
	term := r.skipTo(j, f.end, false)
	if d.Name == "_" {
		f.pos = term + 1
		return nil
	}
	sigEnd := term
	if kind == model.Const {
		sigEnd = r.initializer(j, term)
	}
	d.Signature = r.signature(d.Start, r.headerEnd(sigEnd))
	r.finish(f, d, term)
	return nil
}

func (r *recognizer) static(f *frame, d model.Declaration, i int) *frame {
	d.Kind = model.Static
	j := i + 1
	if r.is(j, "mut") {
		d.Mutable = true
		j++
	}
	if !r.isIdent(j) {
		f.pos = j
		return nil
	}
	j = r.afterName(&d, j, f.end)
	term := r.skipTo(j, f.end, false)
	d.Signature = r.signature(d.Start, r.headerEnd(r.initializer(j, term)))
	r.finish(f, d, term)
	return nil
}

// initializer returns the index of a top-level `=` in [i, term), or term.
func (r *recognizer) initializer(i, term int) int {
	angle := 0
	for k := i; k < term; k++ {
		switch {
		case r.isOpener(k):
			k = r.closeOf(k, term)
		case r.is(k, "<"):
			angle++
		case r.is(k, ">"):
			angle--
		case r.is(k, "=") && angle <= 0:
			return k
		}
	}
	return term
}

// field recognizes one named field of a struct body.
func (r *recognizer) field(f *frame) *frame {
	i, attrStart, _ := r.attributes(f.pos, f.end)
	if i >= f.end {
		f.pos = i
		return nil
	}
	start := r.toks[i].start
	vis, i := r.visibility(i)
	if f.inherit != "" {
		vis = f.inherit
	}
	comma := r.skipToComma(i, f.end)
	if r.isIdent(i) && r.is(i+1, ":") {
		d := model.Declaration{
			Kind:       model.Field,
			Name:       identName(r.text(i)),
			Visibility: vis,
			Start:      start,
			AttrStart:  attrStart,
			Scope:      f.scope,
		}
		last := comma - 1
		d.End = r.toks[last].end
		d.Signature = r.signature(start, d.End)
		r.declare(d)
	}
	f.pos = comma + 1
	return nil
}

// variant recognizes one enum variant. Struct-like variants push a field
// frame for their body.
func (r *recognizer) variant(f *frame) *frame {
	i, attrStart, _ := r.attributes(f.pos, f.end)
	if i >= f.end {
		f.pos = i
		return nil
	}
	if !r.isIdent(i) {
		f.pos = r.skipToComma(i, f.end) + 1
		return nil
	}
	d := model.Declaration{
		Kind:       model.Variant,
		Name:       identName(r.text(i)),
		Visibility: f.inherit,
		Start:      r.toks[i].start,
		AttrStart:  attrStart,
		Scope:      f.scope,
		Shape:      model.ShapeUnit,
	}
	j := i + 1
	var child *frame
	switch {
	case r.is(j, "("):
		d.Shape = model.ShapeTuple
		j = r.closeOf(j, f.end) + 1
	case r.is(j, "{"):
		d.Shape = model.ShapeStruct
		c := r.closeOf(j, f.end)
		child = &frame{kind: fieldFrame, scope: childScope(f.scope, d.Name), pos: j + 1, end: c, inherit: f.inherit}
		j = c + 1
	}
	comma := r.skipToComma(j, f.end)
	d.End = r.toks[comma-1].end
	d.Signature = r.signature(d.Start, d.End)
	r.declare(d)
	f.pos = comma + 1
	return child
}

func hasAttr(texts []string, name string) bool {
	for _, t := range texts {
		if strings.Contains(t, name) {
			return true
		}
	}
	return false
}

func unquote(lit string) string {
	if s, err := strconv.Unquote(lit); err == nil {
		return s
	}
	return strings.Trim(lit, `"`)
}
