// Package scan splits Rust source text into classified spans: code,
// comments and string/char literals.
package scan

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind classifies a span.
type Kind int

const (
	Code Kind = iota
	LineComment
	BlockComment
	StringLiteral
	CharLiteral
	RawString
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case LineComment:
		return "line comment"
	case BlockComment:
		return "block comment"
	case StringLiteral:
		return "string literal"
	case CharLiteral:
		return "char literal"
	case RawString:
		return "raw string"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DocStyle is the documentation style of a comment span.
type DocStyle int

const (
	NotDoc DocStyle = iota
	OuterDoc
	InnerDoc
)

// Span is a half-open byte range [Start, End) of the source buffer.
type Span struct {
	Kind  Kind
	Start int
	End   int
	Text  string
}

// IsComment reports whether the span is a line or block comment.
func (s Span) IsComment() bool {
	return s.Kind == LineComment || s.Kind == BlockComment
}

// IsLiteral reports whether the span is a string, char or raw string literal.
func (s Span) IsLiteral() bool {
	return s.Kind == StringLiteral || s.Kind == CharLiteral || s.Kind == RawString
}

// Doc returns the documentation style of a comment span. `////` and `/***`
// are ordinary comments, as is the empty block comment `/**/`.
func (s Span) Doc() DocStyle {
	t := s.Text
	switch s.Kind {
	case LineComment:
		switch {
		case strings.HasPrefix(t, "//!"):
			return InnerDoc
		case strings.HasPrefix(t, "///") && !strings.HasPrefix(t, "////"):
			return OuterDoc
		}
	case BlockComment:
		switch {
		case strings.HasPrefix(t, "/*!"):
			return InnerDoc
		case strings.HasPrefix(t, "/**") && !strings.HasPrefix(t, "/***") && !strings.HasPrefix(t, "/**/"):
			return OuterDoc
		}
	}
	return NotDoc
}

// UnterminatedError reports a literal or block comment still open at the end
// of the buffer. The span returned for it runs to the end of the buffer.
type UnterminatedError struct {
	Kind   Kind
	Offset int
}

func (e *UnterminatedError) Error() string {
	return fmt.Sprintf("unterminated %s starting at offset %d", e.Kind, e.Offset)
}

type scanner struct {
	src       string
	cur       int
	codeStart int
	spans     []Span
}

// Scan splits src into spans that are ordered, non-overlapping and cover the
// whole buffer. Adjacent code is merged into one span. When a literal or
// block comment is left open, the spans up to and including the open one are
// returned together with an *UnterminatedError.
func Scan(src string) ([]Span, error) {
	s := &scanner{src: src}
	return s.run()
}

func (s *scanner) run() ([]Span, error) {
	for !s.isAtEnd() {
		start := s.cur
		var kind Kind
		var terminated bool
		switch {
		case s.hasPrefix("//"):
			s.lineComment()
			kind, terminated = LineComment, true
		case s.hasPrefix("/*"):
			kind, terminated = BlockComment, s.blockComment()
		default:
			k, matched, ok := s.literal()
			if !matched {
				s.code()
				continue
			}
			kind, terminated = k, ok
		}
		s.emit(kind, start)
		if !terminated {
			return s.spans, &UnterminatedError{Kind: kind, Offset: start}
		}
	}
	s.flushCode(s.cur)
	return s.spans, nil
}

func (s *scanner) isAtEnd() bool {
	return s.cur >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.src[s.cur]
}

func (s *scanner) peekN(n int) byte {
	if s.cur+n >= len(s.src) {
		return 0
	}
	return s.src[s.cur+n]
}

func (s *scanner) hasPrefix(p string) bool {
	return strings.HasPrefix(s.src[s.cur:], p)
}

func (s *scanner) flushCode(end int) {
	if s.codeStart < end {
		s.spans = append(s.spans, Span{Kind: Code, Start: s.codeStart, End: end, Text: s.src[s.codeStart:end]})
	}
}

func (s *scanner) emit(kind Kind, start int) {
	s.flushCode(start)
	s.spans = append(s.spans, Span{Kind: kind, Start: start, End: s.cur, Text: s.src[start:s.cur]})
	s.codeStart = s.cur
}

// code consumes one code token: a whole identifier or number, or a single
// byte. Consuming whole words keeps literal prefixes (b, r, br, c, cr) from
// being recognized in the middle of an identifier.
func (s *scanner) code() {
	if isWordByte(s.peek()) {
		for !s.isAtEnd() && isWordByte(s.peek()) {
			s.cur++
		}
		return
	}
	s.cur++
}

func (s *scanner) lineComment() {
	for !s.isAtEnd() && s.peek() != '\n' {
		s.cur++
	}
}

func (s *scanner) blockComment() bool {
	s.cur += 2
	depth := 1
	for !s.isAtEnd() {
		switch {
		case s.hasPrefix("/*"):
			depth++
			s.cur += 2
		case s.hasPrefix("*/"):
			depth--
			s.cur += 2
			if depth == 0 {
				return true
			}
		default:
			s.cur++
		}
	}
	return false
}

// literal tries to scan a literal at the cursor. matched is false when the
// cursor is not at a literal, in which case the cursor has not moved.
func (s *scanner) literal() (kind Kind, matched, terminated bool) {
	switch c := s.peek(); {
	case c == '"':
		s.cur++
		return StringLiteral, true, s.quoted('"')
	case c == '\'':
		if n := s.charLength(s.cur); n > 0 {
			s.cur++
			return CharLiteral, true, s.quoted('\'')
		}
		return Code, false, false
	case c == 'r':
		if hashes, ok := s.rawOpener(s.cur + 1); ok {
			s.cur += 1 + hashes + 1
			return RawString, true, s.rawBody(hashes)
		}
	case c == 'b' || c == 'c':
		next := s.peekN(1)
		switch {
		case next == '"':
			s.cur += 2
			return StringLiteral, true, s.quoted('"')
		case next == '\'' && c == 'b':
			s.cur += 2
			return CharLiteral, true, s.quoted('\'')
		case next == 'r':
			if hashes, ok := s.rawOpener(s.cur + 2); ok {
				s.cur += 2 + hashes + 1
				return RawString, true, s.rawBody(hashes)
			}
		}
	}
	return Code, false, false
}

// charLength returns the length in bytes of the char literal starting at the
// quote at i, or 0 when the quote starts a lifetime or label. A char literal
// is a quote followed by an escape, or by exactly one character and a closing
// quote.
func (s *scanner) charLength(i int) int {
	if i+1 >= len(s.src) {
		return 0
	}
	if s.src[i+1] == '\\' {
		return 1
	}
	r, size := utf8.DecodeRuneInString(s.src[i+1:])
	if r == '\'' || r == '\n' {
		return 0
	}
	if i+1+size < len(s.src) && s.src[i+1+size] == '\'' {
		return 2 + size
	}
	return 0
}

// quoted consumes a literal body up to and including the closing quote,
// honouring backslash escapes.
func (s *scanner) quoted(quote byte) bool {
	for !s.isAtEnd() {
		switch s.peek() {
		case '\\':
			s.cur += 2
			if s.cur > len(s.src) {
				s.cur = len(s.src)
			}
		case quote:
			s.cur++
			return true
		default:
			s.cur++
		}
	}
	return false
}

// rawOpener reports whether a raw string opener (`#*"`) starts at i and how
// many hashes it carries.
func (s *scanner) rawOpener(i int) (int, bool) {
	n := 0
	for i+n < len(s.src) && s.src[i+n] == '#' {
		n++
	}
	if i+n < len(s.src) && s.src[i+n] == '"' {
		return n, true
	}
	return 0, false
}

// rawBody consumes a raw string body. The string closes at a quote followed
// by exactly the opening number of hashes; a quote followed by fewer or more
// hashes is part of the body.
func (s *scanner) rawBody(hashes int) bool {
	for s.cur < len(s.src) {
		idx := strings.IndexByte(s.src[s.cur:], '"')
		if idx < 0 {
			break
		}
		s.cur += idx + 1
		n := 0
		for s.cur+n < len(s.src) && s.src[s.cur+n] == '#' {
			n++
		}
		if n == hashes {
			s.cur += n
			return true
		}
		s.cur += n
	}
	s.cur = len(s.src)
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
