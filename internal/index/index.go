// Package index aggregates per-file results into a documentation tree keyed
// by module path.
package index

import (
	"fmt"
	"iter"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

// Node is one module path in the tree. Type scopes such as an impl target
// are nodes too, so methods live under crate::Type.
type Node struct {
	Name     string                `json:"name"`
	Path     string                `json:"path"`
	Docs     []model.Doc           `json:"docs,omitempty"` // module documentation, one per contributing file
	Files    []string              `json:"files,omitempty"`
	Records  []model.SymbolRecord  `json:"records,omitempty"`
	Dangling []model.DanglingBlock `json:"dangling,omitempty"`
	Children []*Node               `json:"children,omitempty"`

	children map[string]*Node
	seen     map[string]bool
}

// Doc returns the node's module documentation merged across files.
func (n *Node) Doc() model.Doc {
	var out model.Doc
	for _, d := range n.Docs {
		switch {
		case out.Summary == "":
			out.Summary = d.Summary
		case d.Summary != "":
			out.Details = joinText(out.Details, d.Summary)
		}
		out.Details = joinText(out.Details, d.Details)
		out.Tags = append(out.Tags, d.Tags...)
	}
	return out
}

// Child returns the named child node.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

func (n *Node) child(name string) *Node {
	if c, ok := n.children[name]; ok {
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	c := &Node{Name: name, Path: model.JoinPath(n.Path, name)}
	n.children[name] = c
	n.Children = append(n.Children, c)
	return c
}

// Index is the documentation tree. Insert is safe for concurrent use;
// traversal must not run concurrently with Insert.
type Index struct {
	mu   sync.Mutex
	root *Node
}

// New returns an empty index.
func New() *Index {
	return &Index{root: &Node{}}
}

// Roots returns the top-level nodes, one per crate, in insertion order.
func (ix *Index) Roots() []*Node {
	return ix.root.Children
}

// Insert merges a file's result into the tree and returns the duplicate
// declaration diagnostics it caused.
func (ix *Index) Insert(fr *model.FileResult) []model.Diagnostic {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	fileNode := ix.node(fr.Module)
	fileNode.Files = append(fileNode.Files, fr.File)
	if !fr.ModuleDoc.Empty() {
		fileNode.Docs = append(fileNode.Docs, fr.ModuleDoc)
	}

	var diags []model.Diagnostic
	for _, rec := range fr.Records {
		n := ix.node(rec.Module)
		if rec.Declaration.Kind != model.Impl {
			key := string(rec.Declaration.Kind) + "\x00" + rec.Declaration.Impl + "\x00" + rec.Declaration.Name
			if n.seen == nil {
				n.seen = make(map[string]bool)
			}
			if n.seen[key] {
				diags = append(diags, model.Diagnostic{
					Kind:     model.DuplicateDeclaration,
					File:     rec.File,
					Offset:   rec.Declaration.Start,
					Line:     rec.Declaration.Line,
					Path:     rec.Path(),
					Name:     rec.Declaration.Name,
					DeclKind: rec.Declaration.Kind,
					Message:  fmt.Sprintf("%s %s declared more than once in %s", rec.Declaration.Kind, rec.Declaration.Name, n.Path),
				})
			}
			n.seen[key] = true
		}
		n.Records = append(n.Records, rec)
		if rec.Declaration.Kind == model.Module {
			n.child(rec.Declaration.Name)
		}
	}
	for _, d := range fr.Dangling {
		n := ix.node(d.Module)
		n.Dangling = append(n.Dangling, d)
	}
	return diags
}

// node returns the node for path, creating it and its ancestors.
func (ix *Index) node(path string) *Node {
	n := ix.root
	for _, seg := range model.SplitPath(path) {
		n = n.child(seg)
	}
	return n
}

// Module returns the node for a module path.
func (ix *Index) Module(path string) (*Node, bool) {
	n := ix.root
	for _, seg := range model.SplitPath(path) {
		c, ok := n.children[seg]
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, n != ix.root
}

// Lookup returns every record whose fully qualified path is path.
func (ix *Index) Lookup(path string) []model.SymbolRecord {
	segs := model.SplitPath(path)
	if len(segs) < 2 {
		return nil
	}
	parent, ok := ix.Module(strings.Join(segs[:len(segs)-1], model.PathSep))
	if !ok {
		return nil
	}
	name := segs[len(segs)-1]
	var out []model.SymbolRecord
	for _, r := range parent.Records {
		if r.Declaration.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Nodes yields every node depth first, parents before children.
func (ix *Index) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		stack := make([]*Node, 0, len(ix.root.Children))
		for i := len(ix.root.Children) - 1; i >= 0; i-- {
			stack = append(stack, ix.root.Children[i])
		}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(n) {
				return
			}
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}
}

// All yields every record depth first: a node's records in declaration order,
// then its children's. The sequence can be ranged over more than once.
func (ix *Index) All() iter.Seq[model.SymbolRecord] {
	return func(yield func(model.SymbolRecord) bool) {
		for n := range ix.Nodes() {
			for _, r := range n.Records {
				if !yield(r) {
					return
				}
			}
		}
	}
}

// Find returns the records of the given kinds whose name matches re, in the
// order of All. No kinds selects every kind; a nil re matches every name.
func (ix *Index) Find(kinds []model.DeclKind, re *regexp.Regexp) iter.Seq[model.SymbolRecord] {
	return func(yield func(model.SymbolRecord) bool) {
		for r := range ix.All() {
			if len(kinds) > 0 && !slices.Contains(kinds, r.Declaration.Kind) {
				continue
			}
			if re != nil && !re.MatchString(r.Declaration.Name) {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Len returns the number of records in the index.
func (ix *Index) Len() int {
	n := 0
	for range ix.All() {
		n++
	}
	return n
}

func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "\n\n" + b
}
