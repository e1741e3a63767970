package markdown

import (
	"fmt"
	"sort"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// Resolver maps a link destination to its replacement. ok is false for
// destinations that should be left alone.
type Resolver func(dest string) (newDest string, ok bool)

// MapResolver resolves destinations through a fixed map.
func MapResolver(linkMap map[string]string) Resolver {
	return func(dest string) (string, bool) {
		d, ok := linkMap[dest]
		return d, ok
	}
}

// destinations returns the link destinations in src in document order.
func destinations(src string) []string {
	doc := gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))

	var dests []string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if link, ok := node.(*ast.Link); ok {
			dests = append(dests, string(link.Destination))
		}
		return ast.GoToNext
	})
	return dests
}

// RewriteLinks rewrites markdown link destinations using resolve.
// It parses the markdown to AST to find all link destinations, then performs
// targeted string replacements to preserve original formatting.
func RewriteLinks(src string, resolve Resolver) string {
	if resolve == nil || !strings.Contains(src, "](") && !strings.Contains(src, "]:") {
		return src
	}

	// Collect unique destinations that need replacement
	seen := make(map[string]bool)
	type replacement struct {
		oldDest string
		newDest string
	}
	var replacements []replacement

	for _, dest := range destinations(src) {
		if seen[dest] {
			continue
		}
		seen[dest] = true
		if newDest, ok := resolve(dest); ok && newDest != dest {
			replacements = append(replacements, replacement{dest, newDest})
		}
	}

	if len(replacements) == 0 {
		return src
	}

	result := src

	// Inline links: [text](destination), one pass per replacement
	for _, r := range replacements {
		result = strings.ReplaceAll(result, "]("+r.oldDest+")", "]("+r.newDest+")")
	}

	// Reference-style definitions: [ref]: destination
	refMap := make(map[string]string, len(replacements))
	for _, r := range replacements {
		refMap["]: "+r.oldDest] = "]: " + r.newDest
	}
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for oldSuffix, newSuffix := range refMap {
			if strings.HasSuffix(trimmed, oldSuffix) {
				lines[i] = strings.Replace(line, oldSuffix, newSuffix, 1)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// AddFrontMatter prepends a YAML front-matter block with the given fields in
// key order. List values are written as YAML sequences.
func AddFrontMatter(src string, fields map[string]any) string {
	if len(fields) == 0 {
		return src
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("---\n")
	for _, k := range keys {
		switch v := fields[k].(type) {
		case []string:
			b.WriteString(k + ":\n")
			for _, item := range v {
				b.WriteString(fmt.Sprintf("  - %q\n", item))
			}
		case string:
			b.WriteString(fmt.Sprintf("%s: %q\n", k, v))
		default:
			b.WriteString(fmt.Sprintf("%s: %v\n", k, v))
		}
	}
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String()
}
