// Package compress strips a Rust source buffer down to its code: comments,
// blank lines and redundant whitespace are removed while literals are kept
// byte for byte.
package compress

import (
	"fmt"
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

// Options controls compression.
type Options struct {
	LineNumbers bool // prefix each output line with "<n>: ", n being its source line
	KeepDocs    bool // keep `///`, `//!`, `/** */` and `/*! */` comments
}

// Line is one line of compressed output.
type Line struct {
	Number int // 1-based source line the text starts on
	Text   string
}

type builder struct {
	lines   *scan.Lines
	out     []Line
	cur     strings.Builder
	start   int // offset the current line starts at
	pending bool
}

func (b *builder) write(offset int, text string) {
	if b.cur.Len() == 0 {
		b.start = offset
	} else if b.pending {
		b.cur.WriteByte(' ')
	}
	b.pending = false
	b.cur.WriteString(text)
}

func (b *builder) flush() {
	if b.cur.Len() > 0 {
		b.out = append(b.out, Line{Number: b.lines.Line(b.start), Text: b.cur.String()})
		b.cur.Reset()
	}
	b.pending = false
}

// code writes a code span, collapsing whitespace runs to one space and
// breaking lines at newlines.
func (b *builder) code(s scan.Span) {
	text := s.Text
	i := 0
	for i < len(text) {
		switch c := text[i]; c {
		case '\n':
			b.flush()
			i++
		case ' ', '\t', '\r', '\f', '\v':
			b.pending = true
			i++
		default:
			j := i
			for j < len(text) && !isSpace(text[j]) {
				j++
			}
			b.write(s.Start+i, text[i:j])
			i = j
		}
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\f', '\v', '\n':
		return true
	}
	return false
}

// Lines compresses src and returns the surviving lines. An unterminated
// literal or block comment is reported as a *scan.UnterminatedError.
func Lines(src string, opts Options) ([]Line, error) {
	spans, err := scan.Scan(src)
	if err != nil {
		return nil, err
	}

	b := &builder{lines: scan.NewLines(src)}
	for _, s := range spans {
		switch {
		case s.IsLiteral():
			b.write(s.Start, s.Text)
		case s.IsComment() && opts.KeepDocs && s.Doc() != scan.NotDoc:
			b.flush()
			b.write(s.Start, strings.TrimRight(s.Text, " \t\r"))
			b.flush()
		case s.IsComment():
			// a comment separates tokens; a multi-line one also ends the line
			if strings.Contains(s.Text, "\n") {
				b.flush()
			} else {
				b.pending = true
			}
		default:
			b.code(s)
		}
	}
	b.flush()
	return b.out, nil
}

// Compress compresses src and formats the result, one line per surviving
// source line.
func Compress(src string, opts Options) (string, error) {
	lines, err := Lines(src, opts)
	if err != nil {
		return "", err
	}
	return format(lines, opts), nil
}

func format(lines []Line, opts Options) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if opts.LineNumbers {
			fmt.Fprintf(&sb, "%d: ", l.Number)
		}
		sb.WriteString(l.Text)
	}
	return sb.String()
}

// File compresses one file's content into a fenced block headed by its path
// and the source line range the surviving lines span.
func File(path, src string, opts Options) (string, error) {
	lines, err := Lines(src, opts)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	first, last := 0, 0
	if len(lines) > 0 {
		first = lines[0].Number
		l := lines[len(lines)-1]
		last = l.Number + strings.Count(l.Text, "\n")
	}
	return fmt.Sprintf("@@@ %s | rust\n> Lines: %d-%d\n```\n%s\n```", path, first, last, format(lines, opts)), nil
}
