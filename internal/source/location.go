package source

import (
	"cmp"
	"fmt"
	"slices"
)

// Location points at a position inside a source file. Line and Column are
// 1-based; Column counts runes, not bytes. A zero Line means the whole file.
type Location struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// String renders path:line:column, dropping the parts that are unset.
func (l Location) String() string {
	switch {
	case l.Line == 0:
		return l.Path
	case l.Column == 0:
		return fmt.Sprintf("%s:%d", l.Path, l.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", l.Path, l.Line, l.Column)
	}
}

// Compare orders locations by path, then line, then column.
func (l Location) Compare(o Location) int {
	if c := cmp.Compare(l.Path, o.Path); c != 0 {
		return c
	}
	if c := cmp.Compare(l.Line, o.Line); c != 0 {
		return c
	}
	return cmp.Compare(l.Column, o.Column)
}

// Warning is a non-fatal problem found while reading a file.
type Warning struct {
	Location Location `json:"location"`
	Message  string   `json:"message"`
}

// SortWarnings orders warnings by location, then message.
func SortWarnings(ws []Warning) {
	slices.SortStableFunc(ws, func(a, b Warning) int {
		if c := a.Location.Compare(b.Location); c != 0 {
			return c
		}
		return cmp.Compare(a.Message, b.Message)
	})
}
