// Package tags parses doxygen-style tags out of documentation text.
package tags

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/model"
)

// Policy selects which of several Brief tags is authoritative.
type Policy int

const (
	FirstWins Policy = iota
	LastWins
)

func (p Policy) String() string {
	if p == LastWins {
		return "last"
	}
	return "first"
}

// ParsePolicy parses "first" or "last". The empty string means first.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return FirstWins, nil
	case "last":
		return LastWins, nil
	}
	return FirstWins, fmt.Errorf("unknown brief policy %q (want first or last)", s)
}

// Parsed is the result of parsing one documentation text.
type Parsed struct {
	Doc model.Doc
	// Demoted holds the Brief tags that lost to the authoritative one, as
	// they appear in Doc.Tags.
	Demoted []model.Tag
}

var (
	markerRe  = regexp.MustCompile(`^([@\\])([A-Za-z][A-Za-z0-9_]*)(\[[^\]]*\])?(?:\s+(.*))?$`)
	headingRe = regexp.MustCompile(`^#{1,6}\s+(.*?)[\s#]*$`)
)

var keys = map[string]model.TagKey{
	"brief":   model.Brief,
	"param":   model.Param,
	"tparam":  model.TypeParam,
	"return":  model.Return,
	"returns": model.Return,
	"safety":  model.Safety,
	"file":    model.File,
}

// HasFile reports whether a line opens a File tag.
func HasFile(lines []model.DocLine) bool {
	for _, l := range lines {
		if m := markerRe.FindStringSubmatch(strings.TrimSpace(l.Text)); m != nil && m[2] == "file" {
			return true
		}
	}
	return false
}

// Parse splits documentation lines into free text and tags. The authoritative
// Brief becomes the summary and the free text the details; without a Brief
// the free text is the summary.
func Parse(lines []model.DocLine, policy Policy) Parsed {
	return ParseBlocks([]model.DocBlock{{Lines: lines}}, policy)
}

// ParseBlocks parses several doc blocks as one text. A block boundary ends
// the open tag and the current paragraph.
func ParseBlocks(blocks []model.DocBlock, policy Policy) Parsed {
	var (
		free  freeText
		tags  []model.Tag
		raw   []string   // marker text per tag
		parts [][]string // value pieces per tag
		open  = -1
		fence bool
	)

	for l := range allLines(blocks) {
		if l.Offset < 0 {
			free.flush()
			open, fence = -1, false
			continue
		}
		t := strings.TrimSpace(l.Text)

		if isFence(t) || fence {
			if isFence(t) {
				fence = !fence
				if fence {
					free.openCode()
				}
			}
			free.code(l.Text)
			if !fence {
				free.flush()
			}
			open = -1
			continue
		}

		if m := markerRe.FindStringSubmatch(t); m != nil {
			key, ok := keys[m[2]]
			tag := model.Tag{Key: key, Offset: l.Offset}
			marker := m[1] + m[2] + m[3]
			rest := strings.TrimSpace(m[4])
			switch {
			case !ok:
				tag.Key, tag.Name = model.Unrecognized, marker
			case key == model.Param && m[3] != "":
				tag.Direction = direction(m[3])
			case m[3] != "":
				tag.Key, tag.Name = model.Unrecognized, marker
			}
			if tag.Key == model.Param || tag.Key == model.TypeParam {
				tag.Name, rest = nextToken(rest)
			}
			tags = append(tags, tag)
			raw = append(raw, marker)
			parts = append(parts, nil)
			open = len(tags) - 1
			if rest != "" {
				parts[open] = append(parts[open], rest)
			}
			continue
		}

		if h := headingRe.FindStringSubmatch(t); h != nil {
			if strings.EqualFold(h[1], "safety") {
				tags = append(tags, model.Tag{Key: model.Safety, Offset: l.Offset})
				raw = append(raw, "# Safety")
				parts = append(parts, nil)
				open = len(tags) - 1
				continue
			}
			open = -1
			free.heading(t)
			continue
		}

		switch {
		case t == "":
			if open < 0 {
				free.flush()
			}
		case open >= 0:
			parts[open] = append(parts[open], t)
		default:
			free.line(t)
		}
	}

	for i := range tags {
		tags[i].Value = strings.Join(parts[i], " ")
	}

	var out Parsed
	text := free.String()

	auth := -1
	for i, tag := range tags {
		if tag.Key != model.Brief {
			continue
		}
		if auth < 0 || policy == LastWins {
			auth = i
		}
	}
	if auth < 0 {
		out.Doc.Summary = text
		out.Doc.Tags = tags
		return out
	}

	out.Doc.Summary = tags[auth].Value
	out.Doc.Details = text
	for i, tag := range tags {
		switch {
		case i == auth:
			continue
		case tag.Key == model.Brief:
			tag.Key, tag.Name = model.Unrecognized, raw[i]
			out.Demoted = append(out.Demoted, tag)
		}
		out.Doc.Tags = append(out.Doc.Tags, tag)
	}
	return out
}

// allLines yields the lines of every block, with a line at offset -1
// between blocks.
func allLines(blocks []model.DocBlock) iter.Seq[model.DocLine] {
	return func(yield func(model.DocLine) bool) {
		for i, b := range blocks {
			if i > 0 && !yield(model.DocLine{Offset: -1}) {
				return
			}
			for _, l := range b.Lines {
				if !yield(l) {
					return
				}
			}
		}
	}
}

func isFence(t string) bool {
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// direction normalizes a `[in]`, `[out]` or `[in,out]` suffix.
func direction(s string) string {
	s = strings.Trim(s, "[]")
	s = strings.ReplaceAll(s, " ", "")
	return strings.ToLower(s)
}

func nextToken(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// freeText accumulates paragraphs. Prose lines join with spaces; fenced code
// keeps its line breaks.
type freeText struct {
	paras  []string
	cur    []string
	inCode bool
}

func (f *freeText) line(s string) {
	f.cur = append(f.cur, s)
}

func (f *freeText) openCode() {
	f.flush()
	f.inCode = true
}

func (f *freeText) code(s string) {
	f.cur = append(f.cur, s)
}

func (f *freeText) heading(s string) {
	f.flush()
	f.paras = append(f.paras, s)
}

func (f *freeText) flush() {
	if len(f.cur) > 0 {
		sep := " "
		if f.inCode {
			sep = "\n"
		}
		f.paras = append(f.paras, strings.Join(f.cur, sep))
		f.cur = nil
	}
	f.inCode = false
}

func (f *freeText) String() string {
	f.flush()
	return strings.Join(f.paras, "\n\n")
}
