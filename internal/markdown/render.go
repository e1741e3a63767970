// Package markdown renders a documentation index as Markdown and HTML.
package markdown

import (
	"fmt"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	gmparser "github.com/gomarkdown/markdown/parser"

	"github.com/jcdickinson/ferrisdoc/internal/index"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

// Section names, matching the docs.rs anchors.
const (
	SecFields          = "fields"
	SecVariants        = "variants"
	SecImplementations = "implementations"
	SecImplementors    = "implementors"
	SecRequiredMethods = "required-methods"
	SecProvidedMethods = "provided-methods"
)

type Options struct {
	FrontMatter bool
	Title       string
}

// Anchor returns the heading id used for a fully qualified path.
func Anchor(path string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.ReplaceAll(path, model.PathSep, "-")) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

type renderer struct {
	ix      *index.Index
	b       strings.Builder
	anchors map[string]string // path -> anchor of every rendered heading
	impls   []model.SymbolRecord
}

// Render produces one Markdown document for the whole index: each module
// with its documentation followed by its items in declaration order.
func Render(ix *index.Index, opts Options) string {
	r := &renderer{ix: ix, anchors: make(map[string]string)}
	for rec := range ix.All() {
		if rec.Declaration.Kind == model.Impl {
			r.impls = append(r.impls, rec)
			continue
		}
		r.anchors[rec.Path()] = Anchor(rec.Path())
	}
	for n := range ix.Nodes() {
		r.anchors[n.Path] = Anchor(n.Path)
	}

	var modules []string
	for _, root := range ix.Roots() {
		modules = append(modules, r.module(root, 1)...)
	}

	out := r.b.String()
	if opts.FrontMatter {
		fields := map[string]any{
			"modules": modules,
			"symbols": ix.Len(),
		}
		if opts.Title != "" {
			fields["title"] = opts.Title
		}
		out = AddFrontMatter(out, fields)
	}
	return out
}

// RenderRecords renders records without module structure, for lookups.
// members are the records declared under them, such as fields and methods,
// and fill in the per-kind sections.
func RenderRecords(recs, members []model.SymbolRecord) string {
	ix := index.New()
	all := append(append([]model.SymbolRecord(nil), recs...), members...)
	ix.Insert(&model.FileResult{Records: all})

	r := &renderer{ix: ix, anchors: make(map[string]string)}
	for _, rec := range all {
		if rec.Declaration.Kind == model.Impl {
			r.impls = append(r.impls, rec)
			continue
		}
		r.anchors[rec.Path()] = Anchor(rec.Path())
	}
	for _, rec := range recs {
		n, _ := ix.Module(rec.Module)
		if rec.Declaration.Kind == model.Impl && n != nil && r.ownsImpl(n, rec) {
			continue
		}
		r.record(n, rec, 2)
	}
	return r.b.String()
}

// Document renders a stored path: the module heading and documentation when
// doc is set, then the records found for path.
func Document(path string, doc *model.Doc, recs, members []model.SymbolRecord) string {
	var b strings.Builder
	if doc != nil {
		fmt.Fprintf(&b, "# mod `%s`\n\n", path)
		for _, part := range []string{doc.Summary, doc.Details} {
			if part != "" {
				b.WriteString(part + "\n\n")
			}
		}
	}
	b.WriteString(RenderRecords(recs, members))
	return b.String()
}

// ToHTML converts rendered Markdown to an HTML fragment.
func ToHTML(md string) []byte {
	p := gmparser.NewWithExtensions(gmparser.CommonExtensions | gmparser.HeadingIDs | gmparser.AutoHeadingIDs)
	hr := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return gm.ToHTML([]byte(md), p, hr)
}

// module renders n and its submodules and returns the module paths written.
func (r *renderer) module(n *index.Node, depth int) []string {
	level := min(depth, 2)
	r.heading(level, "mod `"+n.Path+"`", n.Path)

	var doc model.Doc
	if parent, ok := r.parent(n); ok {
		for _, rec := range parent.Records {
			if rec.Declaration.Kind == model.Module && rec.Declaration.Name == n.Name {
				doc = merge(doc, rec.Doc)
			}
		}
	}
	doc = merge(doc, n.Doc())
	r.doc(n.Path, doc)

	claimed := make(map[string]bool)
	for _, rec := range n.Records {
		switch rec.Declaration.Kind {
		case model.Module, model.Field, model.Variant:
			continue
		case model.Impl:
			if r.ownsImpl(n, rec) {
				continue
			}
		case model.Struct, model.Enum, model.Trait, model.TypeAlias:
			claimed[rec.Declaration.Name] = true
		}
		r.record(n, rec, 3)
	}

	modules := []string{n.Path}
	for _, c := range n.Children {
		if claimed[c.Name] && !r.isModule(n, c.Name) {
			continue
		}
		modules = append(modules, r.module(c, depth+1)...)
	}
	return modules
}

func (r *renderer) parent(n *index.Node) (*index.Node, bool) {
	segs := model.SplitPath(n.Path)
	if len(segs) < 2 {
		return nil, false
	}
	return r.ix.Module(strings.Join(segs[:len(segs)-1], model.PathSep))
}

func (r *renderer) isModule(n *index.Node, name string) bool {
	for _, rec := range n.Records {
		if rec.Declaration.Kind == model.Module && rec.Declaration.Name == name {
			return true
		}
	}
	return false
}

// ownsImpl reports whether an impl block is rendered under a type declared in
// the same module.
func (r *renderer) ownsImpl(n *index.Node, impl model.SymbolRecord) bool {
	for _, rec := range n.Records {
		if rec.Declaration.Name != impl.Declaration.Name {
			continue
		}
		switch rec.Declaration.Kind {
		case model.Struct, model.Enum, model.TypeAlias:
			return true
		}
	}
	return false
}

func (r *renderer) heading(level int, text, path string) {
	r.b.WriteString(strings.Repeat("#", level))
	r.b.WriteString(" ")
	r.b.WriteString(text)
	if path != "" {
		fmt.Fprintf(&r.b, " {#%s}", Anchor(path))
	}
	r.b.WriteString("\n\n")
}

func (r *renderer) record(n *index.Node, rec model.SymbolRecord, level int) {
	d := rec.Declaration
	path := rec.Path()
	if d.Kind == model.Impl {
		r.heading(level, "`"+d.Signature+"`", "")
	} else {
		r.heading(level, string(d.Kind)+" `"+d.Name+"`", path)
	}
	if d.Signature != "" && d.Kind != model.Impl {
		fmt.Fprintf(&r.b, "```rust\n%s\n```\n\n", d.Signature)
	}
	fmt.Fprintf(&r.b, "*Defined in `%s:%d`*\n\n", rec.File, d.Line)
	r.doc(rec.Module, rec.Doc)

	if n == nil {
		return
	}
	scope, _ := n.Child(d.Name)
	switch d.Kind {
	case model.Struct:
		r.members(rec, SecFields, "Fields", scope, model.Field)
		r.implementations(n, rec, scope)
	case model.Enum:
		r.members(rec, SecVariants, "Variants", scope, model.Variant)
		r.implementations(n, rec, scope)
	case model.TypeAlias:
		r.implementations(n, rec, scope)
	case model.Trait:
		r.traitMethods(rec, scope)
		r.implementors(rec)
	case model.Impl:
		r.methods(scope, rec)
	}
}

// doc writes the prose and tag lists of a doc, with intra-doc links resolved
// relative to module.
func (r *renderer) doc(module string, doc model.Doc) {
	resolve := r.resolver(module)
	if doc.Summary != "" {
		r.b.WriteString(RewriteLinks(doc.Summary, resolve))
		r.b.WriteString("\n\n")
	}
	if doc.Details != "" {
		r.b.WriteString(RewriteLinks(doc.Details, resolve))
		r.b.WriteString("\n\n")
	}

	list := func(title string, key model.TagKey) {
		tags := doc.TagsOf(key)
		if len(tags) == 0 {
			return
		}
		fmt.Fprintf(&r.b, "**%s**\n\n", title)
		for _, t := range tags {
			r.b.WriteString("- ")
			if t.Name != "" {
				fmt.Fprintf(&r.b, "`%s`", t.Name)
				if t.Direction != "" {
					fmt.Fprintf(&r.b, " [%s]", t.Direction)
				}
				r.b.WriteString(": ")
			}
			r.b.WriteString(oneLine(RewriteLinks(t.Value, resolve)))
			r.b.WriteString("\n")
		}
		r.b.WriteString("\n")
	}
	list("Type Parameters", model.TypeParam)
	list("Parameters", model.Param)
	list("Returns", model.Return)
	list("Safety", model.Safety)
	list("Notes", model.Unrecognized)
}

func (r *renderer) members(owner model.SymbolRecord, section, title string, scope *index.Node, kind model.DeclKind) {
	if scope == nil {
		return
	}
	var items []model.SymbolRecord
	for _, rec := range scope.Records {
		if rec.Declaration.Kind == kind {
			items = append(items, rec)
		}
	}
	if len(items) == 0 {
		return
	}
	r.heading(4, title, sectionPath(owner, section))
	for _, rec := range items {
		fmt.Fprintf(&r.b, "- **%s**", rec.Declaration.Name)
		if rec.Declaration.Shape != "" && kind == model.Variant {
			fmt.Fprintf(&r.b, " (%s)", rec.Declaration.Shape)
		}
		if rec.Summary != "" {
			r.b.WriteString(": ")
			r.b.WriteString(oneLine(RewriteLinks(rec.Summary, r.resolver(rec.Module))))
		}
		r.b.WriteString("\n")
		if kind == model.Variant && rec.Declaration.Shape == model.ShapeStruct {
			if fields, ok := scope.Child(rec.Declaration.Name); ok {
				for _, f := range fields.Records {
					if f.Declaration.Kind != model.Field {
						continue
					}
					fmt.Fprintf(&r.b, "  - **%s**", f.Declaration.Name)
					if f.Summary != "" {
						r.b.WriteString(": " + oneLine(f.Summary))
					}
					r.b.WriteString("\n")
				}
			}
		}
	}
	r.b.WriteString("\n")
}

// implementations lists the impl blocks written for a type in its module.
func (r *renderer) implementations(n *index.Node, typ model.SymbolRecord, scope *index.Node) {
	var impls []model.SymbolRecord
	for _, rec := range n.Records {
		if rec.Declaration.Kind == model.Impl && rec.Declaration.Name == typ.Declaration.Name {
			impls = append(impls, rec)
		}
	}
	if len(impls) == 0 {
		return
	}
	r.heading(4, "Implementations", sectionPath(typ, SecImplementations))
	for _, impl := range impls {
		fmt.Fprintf(&r.b, "##### `%s`\n\n", impl.Declaration.Signature)
		if impl.Summary != "" {
			r.b.WriteString(RewriteLinks(impl.Summary, r.resolver(impl.Module)) + "\n\n")
		}
		r.methods(scope, impl)
	}
}

// methods lists the functions declared inside one impl block.
func (r *renderer) methods(scope *index.Node, impl model.SymbolRecord) {
	if scope == nil {
		return
	}
	wrote := false
	for _, rec := range scope.Records {
		d := rec.Declaration
		if rec.File != impl.File || d.Start < impl.Declaration.Start || d.Start >= impl.Declaration.End {
			continue
		}
		r.item(rec)
		wrote = true
	}
	if wrote {
		r.b.WriteString("\n")
	}
}

func (r *renderer) traitMethods(trait model.SymbolRecord, scope *index.Node) {
	if scope == nil {
		return
	}
	var required, provided []model.SymbolRecord
	for _, rec := range scope.Records {
		if rec.Declaration.Kind != model.Function {
			continue
		}
		if rec.Declaration.HasBody {
			provided = append(provided, rec)
		} else {
			required = append(required, rec)
		}
	}
	for _, group := range []struct {
		section, title string
		recs           []model.SymbolRecord
	}{{SecRequiredMethods, "Required Methods", required}, {SecProvidedMethods, "Provided Methods", provided}} {
		if len(group.recs) == 0 {
			continue
		}
		r.heading(4, group.title, sectionPath(trait, group.section))
		for _, rec := range group.recs {
			r.item(rec)
		}
		r.b.WriteString("\n")
	}
}

// implementors lists impl blocks of the trait anywhere in the index.
func (r *renderer) implementors(trait model.SymbolRecord) {
	var lines []string
	for _, impl := range r.impls {
		if traitName(impl.Declaration.Trait) == trait.Declaration.Name {
			lines = append(lines, fmt.Sprintf("- `%s` in `%s`", impl.Declaration.Signature, impl.Module))
		}
	}
	if len(lines) == 0 {
		return
	}
	r.heading(4, "Implementors", sectionPath(trait, SecImplementors))
	r.b.WriteString(strings.Join(lines, "\n"))
	r.b.WriteString("\n\n")
}

func (r *renderer) item(rec model.SymbolRecord) {
	fmt.Fprintf(&r.b, "- `%s`", rec.Declaration.Signature)
	if rec.Summary != "" {
		r.b.WriteString(": ")
		r.b.WriteString(oneLine(RewriteLinks(rec.Summary, r.resolver(rec.Module))))
	}
	r.b.WriteString("\n")
}

// resolver resolves rustdoc-style intra-doc paths written in module to the
// anchors of rendered headings.
func (r *renderer) resolver(module string) Resolver {
	return func(dest string) (string, bool) {
		path := strings.Trim(dest, "`")
		if i := strings.Index(path, "@"); i >= 0 {
			path = path[i+1:]
		}
		path = strings.TrimSuffix(strings.TrimSuffix(path, "()"), "!")
		if path == "" || strings.ContainsAny(path, "/#:. ") && !strings.Contains(path, model.PathSep) {
			return "", false
		}

		segs := model.SplitPath(module)
		rel := model.SplitPath(path)
		switch {
		case len(rel) > 0 && rel[0] == "crate" && len(segs) > 0:
			rel = append([]string{segs[0]}, rel[1:]...)
			return r.anchorOf(strings.Join(rel, model.PathSep))
		case len(rel) > 0 && (rel[0] == "self" || rel[0] == "super"):
			for len(rel) > 0 && (rel[0] == "self" || rel[0] == "super") {
				if rel[0] == "super" && len(segs) > 0 {
					segs = segs[:len(segs)-1]
				}
				rel = rel[1:]
			}
			return r.anchorOf(model.JoinPath(strings.Join(segs, model.PathSep), strings.Join(rel, model.PathSep)))
		}

		// innermost enclosing module first, then absolute
		for i := len(segs); i >= 0; i-- {
			if a, ok := r.anchorOf(model.JoinPath(strings.Join(segs[:i], model.PathSep), path)); ok {
				return a, true
			}
		}
		return "", false
	}
}

func (r *renderer) anchorOf(path string) (string, bool) {
	a, ok := r.anchors[path]
	if !ok {
		return "", false
	}
	return "#" + a, true
}

// traitName returns the base name of a trait path such as `fmt::Display` or
// `From<T>`.
func traitName(trait string) string {
	if i := strings.Index(trait, "<"); i >= 0 {
		trait = trait[:i]
	}
	trait = strings.TrimPrefix(strings.TrimSpace(trait), "!")
	if i := strings.LastIndex(trait, model.PathSep); i >= 0 {
		trait = trait[i+len(model.PathSep):]
	}
	return strings.TrimSpace(trait)
}

func sectionPath(owner model.SymbolRecord, section string) string {
	return model.JoinPath(owner.Path(), section)
}

func merge(a, b model.Doc) model.Doc {
	switch {
	case a.Empty():
		return b
	case b.Empty():
		return a
	}
	out := a
	if b.Summary != "" {
		out.Details = strings.TrimSpace(out.Details + "\n\n" + b.Summary)
	}
	if b.Details != "" {
		out.Details = strings.TrimSpace(out.Details + "\n\n" + b.Details)
	}
	out.Tags = append(append([]model.Tag(nil), a.Tags...), b.Tags...)
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
