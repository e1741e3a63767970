package scan

import "sort"

// Lines maps byte offsets to 1-based line numbers.
type Lines struct {
	starts []int
}

// NewLines indexes the line starts of src.
func NewLines(src string) *Lines {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{starts: starts}
}

// Line returns the 1-based line containing offset.
func (l *Lines) Line(offset int) int {
	return sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset })
}
