package markdown

import (
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
)

// Section extracts the part of rendered Markdown under the heading whose id
// is name or ends in "-"+name, e.g. "fields" or "required-methods". The
// section runs up to the next heading of the same or a higher level.
func Section(md, name string) (string, bool) {
	source := []byte(md)
	doc := gm.Parse(source, gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.HeadingIDs,
	))

	var found []int
	start, level := -1, 0
	for _, child := range doc.GetChildren() {
		h, ok := child.(*ast.Heading)
		if !ok {
			continue
		}
		offset := findHeadingOffset(md, h, found)
		if offset < 0 {
			continue
		}
		found = append(found, offset)

		if start >= 0 {
			if h.Level <= level {
				return strings.TrimSpace(md[start:offset]), true
			}
			continue
		}
		if h.HeadingID == name || strings.HasSuffix(h.HeadingID, "-"+name) {
			start, level = offset, h.Level
		}
	}
	if start < 0 {
		return "", false
	}
	return strings.TrimSpace(md[start:]), true
}

// findHeadingOffset finds the byte offset in src where a heading starts.
// It searches for lines starting with '#' characters after the previously
// found offsets.
func findHeadingOffset(src string, heading *ast.Heading, found []int) int {
	prefix := strings.Repeat("#", heading.Level) + " "
	searchFrom := 0
	if len(found) > 0 {
		searchFrom = found[len(found)-1] + 1
	}

	inFence := false
	for i := searchFrom; i < len(src); i++ {
		// Must be at line start
		if i > 0 && src[i-1] != '\n' {
			continue
		}
		if strings.HasPrefix(src[i:], "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(src[i:], prefix) {
			return i
		}
	}
	return -1
}
