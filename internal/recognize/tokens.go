package recognize

import (
	"strings"

	"github.com/jcdickinson/ferrisdoc/internal/scan"
)

type tokKind int

const (
	tIdent tokKind = iota
	tLifetime
	tNumber
	tPunct
	tLiteral
)

type token struct {
	kind  tokKind
	text  string
	start int
	end   int
}

// tokenize turns code spans into tokens. Literal spans become single opaque
// tokens and comments are dropped.
func tokenize(spans []scan.Span) []token {
	var toks []token
	for _, sp := range spans {
		switch {
		case sp.IsLiteral():
			toks = append(toks, token{kind: tLiteral, text: sp.Text, start: sp.Start, end: sp.End})
		case sp.Kind == scan.Code:
			toks = tokenizeCode(toks, sp)
		}
	}
	return toks
}

func tokenizeCode(toks []token, sp scan.Span) []token {
	src := sp.Text
	i := 0
	for i < len(src) {
		c := src[i]
		start := i
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		case isIdentStart(c):
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			// raw identifier r#name
			if src[start:i] == "r" && i+1 < len(src) && src[i] == '#' && isIdentStart(src[i+1]) {
				i++
				for i < len(src) && isIdentByte(src[i]) {
					i++
				}
			}
			toks = append(toks, token{kind: tIdent, text: src[start:i], start: sp.Start + start, end: sp.Start + i})
			continue
		case '0' <= c && c <= '9':
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tNumber, text: src[start:i], start: sp.Start + start, end: sp.Start + i})
			continue
		case c == '\'' && i+1 < len(src) && isIdentStart(src[i+1]):
			i++
			for i < len(src) && isIdentByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tLifetime, text: src[start:i], start: sp.Start + start, end: sp.Start + i})
			continue
		}
		n := 1
		if i+1 < len(src) {
			switch src[i : i+2] {
			case "->", "=>", "::":
				n = 2
			}
		}
		i += n
		toks = append(toks, token{kind: tPunct, text: src[start:i], start: sp.Start + start, end: sp.Start + i})
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}

// identName strips the raw identifier prefix.
func identName(s string) string {
	return strings.TrimPrefix(s, "r#")
}

// matchBrackets pairs every opening bracket with its closer. Unclosed
// openers match len(toks); stray closers match nothing.
func matchBrackets(toks []token) []int {
	match := make([]int, len(toks))
	for i := range match {
		match[i] = -1
	}
	var stack []int
	for i, t := range toks {
		if t.kind != tPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			stack = append(stack, i)
		case ")", "]", "}":
			open := opener(t.text)
			for j := len(stack) - 1; j >= 0; j-- {
				if toks[stack[j]].text != open {
					continue
				}
				for _, k := range stack[j+1:] {
					match[k] = i
				}
				match[stack[j]] = i
				match[i] = stack[j]
				stack = stack[:j]
				break
			}
		}
	}
	for _, k := range stack {
		match[k] = len(toks)
	}
	return match
}

func opener(closer string) string {
	switch closer {
	case ")":
		return "("
	case "]":
		return "["
	}
	return "{"
}
