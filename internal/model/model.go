// Package model defines the documentation data model shared by the
// extraction stages and the index.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// PathSep joins module path segments.
const PathSep = "::"

// DeclKind is the syntactic kind of a declaration.
type DeclKind string

const (
	Module    DeclKind = "mod"
	Struct    DeclKind = "struct"
	Enum      DeclKind = "enum"
	Trait     DeclKind = "trait"
	Function  DeclKind = "fn"
	Macro     DeclKind = "macro"
	Const     DeclKind = "const"
	Static    DeclKind = "static"
	TypeAlias DeclKind = "type"
	Impl      DeclKind = "impl"
	Field     DeclKind = "field"
	Variant   DeclKind = "variant"
)

// Kinds lists every declaration kind.
var Kinds = []DeclKind{Module, Struct, Enum, Trait, Function, Macro, Const, Static, TypeAlias, Impl, Field, Variant}

// ParseKinds parses a list of declaration kinds separated by `,` or `|`.
// Matching is case insensitive. An empty list selects every kind.
func ParseKinds(s string) ([]DeclKind, error) {
	var out []DeclKind
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		k := DeclKind(part)
		if !slices.Contains(Kinds, k) {
			names := make([]string, len(Kinds))
			for i, k := range Kinds {
				names[i] = string(k)
			}
			return nil, fmt.Errorf("unknown declaration kind %q (want one of %s)", part, strings.Join(names, ", "))
		}
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Visibility is the visibility qualifier written on a declaration.
type Visibility string

const (
	Public         Visibility = "pub"
	PackagePrivate Visibility = "pub(crate)"
	Private        Visibility = "priv"
)

// Shape distinguishes unit, tuple and struct-like structs and variants.
type Shape string

const (
	ShapeUnit   Shape = "unit"
	ShapeTuple  Shape = "tuple"
	ShapeStruct Shape = "struct"
)

// Qualifiers are the function qualifiers written before `fn`.
type Qualifiers struct {
	Const  bool   `json:"const,omitempty"`
	Async  bool   `json:"async,omitempty"`
	Unsafe bool   `json:"unsafe,omitempty"`
	ABI    string `json:"abi,omitempty"` // set for extern functions, "C" when no ABI string is given
}

// Declaration is a declaration site found by the recognizer. Fields after
// Signature are only meaningful for some kinds.
type Declaration struct {
	Kind          DeclKind   `json:"kind"`
	Name          string     `json:"name"`
	Visibility    Visibility `json:"visibility"`
	GenericParams []string   `json:"generic_params,omitempty"`
	Start         int        `json:"start"`      // first token after attributes
	End           int        `json:"end"`        // end of the item, exclusive
	AttrStart     int        `json:"attr_start"` // first attribute, or Start
	Line          int        `json:"line"`
	Scope         []string   `json:"scope,omitempty"` // enclosing segments within the file
	Impl          string     `json:"impl,omitempty"`  // header of the enclosing impl block
	Signature     string     `json:"signature"`

	Qualifiers *Qualifiers `json:"qualifiers,omitempty"` // Function
	HasBody    bool        `json:"has_body,omitempty"`   // Function, Module
	BodyStart  int         `json:"body_start,omitempty"` // Module with an inline body
	BodyEnd    int         `json:"body_end,omitempty"`
	Mutable    bool        `json:"mutable,omitempty"`   // Static
	Trait      string      `json:"trait,omitempty"`     // Impl
	SelfType   string      `json:"self_type,omitempty"` // Impl
	Shape      Shape       `json:"shape,omitempty"`     // Struct, Variant
	Arms       int         `json:"arms,omitempty"`      // Macro
}

// DocLine is one documentation line with its comment delimiters stripped.
// Offset is the byte offset of Text in the source buffer.
type DocLine struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// DocBlock is a maximal run of documentation comment lines of one style.
type DocBlock struct {
	Lines []DocLine `json:"lines"`
	Start int       `json:"start"`
	End   int       `json:"end"`
	Inner bool      `json:"inner,omitempty"` // `//!` or `/*! */`
}

// TagKey identifies a documentation tag.
type TagKey string

const (
	Brief        TagKey = "brief"
	Param        TagKey = "param"
	TypeParam    TagKey = "tparam"
	Return       TagKey = "return"
	Safety       TagKey = "safety"
	File         TagKey = "file"
	Unrecognized TagKey = "unrecognized"
)

// Tag is one keyed field of a documentation block. Name is set for Param and
// TypeParam, and holds the raw marker for Unrecognized tags.
type Tag struct {
	Key       TagKey `json:"key"`
	Name      string `json:"name,omitempty"`
	Value     string `json:"value"`
	Direction string `json:"direction,omitempty"` // "in", "out" or "in,out" for Param
	Offset    int    `json:"offset"`
}

// Doc is the parsed form of one or more doc blocks.
type Doc struct {
	Summary string `json:"summary,omitempty"`
	Details string `json:"details,omitempty"`
	Tags    []Tag  `json:"tags,omitempty"`
}

// Empty reports whether the doc carries no text at all.
func (d Doc) Empty() bool {
	return d.Summary == "" && d.Details == "" && len(d.Tags) == 0
}

// TagsOf returns the tags with the given key in order.
func (d Doc) TagsOf(key TagKey) []Tag {
	var out []Tag
	for _, t := range d.Tags {
		if t.Key == key {
			out = append(out, t)
		}
	}
	return out
}

// SymbolRecord is a declaration together with its parsed documentation.
type SymbolRecord struct {
	Declaration Declaration `json:"declaration"`
	Module      string      `json:"module"` // fully qualified enclosing path
	File        string      `json:"file"`
	Doc
}

// Path returns the record's fully qualified path.
func (r SymbolRecord) Path() string {
	return JoinPath(r.Module, r.Declaration.Name)
}

// Documented reports whether a doc block was bound to the record.
func (r SymbolRecord) Documented() bool {
	return !r.Doc.Empty()
}

// DanglingBlock is a doc block that no declaration claimed.
type DanglingBlock struct {
	File   string   `json:"file"`
	Module string   `json:"module"`
	Line   int      `json:"line"`
	Block  DocBlock `json:"block"`
	Doc    Doc      `json:"doc"`
}

// FileResult is the output of one file's pipeline.
type FileResult struct {
	File        string          `json:"file"`
	Module      string          `json:"module"`
	ModuleDoc   Doc             `json:"module_doc"`
	Records     []SymbolRecord  `json:"records"`
	Dangling    []DanglingBlock `json:"dangling"`
	Diagnostics []Diagnostic    `json:"diagnostics"`
}

// DiagnosticKind classifies a non-fatal finding.
type DiagnosticKind string

const (
	UnterminatedSpan     DiagnosticKind = "unterminated-span"
	DanglingDocBlock     DiagnosticKind = "dangling-doc-block"
	DuplicateDeclaration DiagnosticKind = "duplicate-declaration"
	DemotedTag           DiagnosticKind = "demoted-tag"
)

// Diagnostic is a non-fatal finding attributable to a file and offset.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	File     string         `json:"file"`
	Offset   int            `json:"offset"`
	Line     int            `json:"line"`
	Path     string         `json:"path,omitempty"`
	Name     string         `json:"name,omitempty"`
	DeclKind DeclKind       `json:"decl_kind,omitempty"`
	TagKey   TagKey         `json:"tag_key,omitempty"`
	Message  string         `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", d.File, d.Line, d.Kind, d.Message)
}

// JoinPath appends name to a module path.
func JoinPath(module, name string) string {
	if module == "" {
		return name
	}
	if name == "" {
		return module
	}
	return module + PathSep + name
}

// SplitPath splits a fully qualified path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, PathSep)
}
