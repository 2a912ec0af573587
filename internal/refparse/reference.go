// Package refparse extracts cross-reference tokens such as :ref:`label` and
// :py:func:`display <pkg.fn>` from document text.
package refparse

import (
	"strings"

	"git.home.luguber.info/inful/docverify/internal/source"
)

// Reference is an unresolved cross-reference token.
type Reference struct {
	Role     string `json:"role"` // as written, including any domain prefix ("py:func")
	Target   string `json:"target"`
	Display  string `json:"display,omitempty"`
	DocID    string `json:"doc_id"`
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	External bool   `json:"external,omitempty"`
}

// Location returns where the token starts.
func (r Reference) Location() source.Location {
	return source.Location{Path: r.Path, Line: r.Line, Column: r.Column}
}

// SplitRole separates an explicit domain prefix from the role name.
// ":py:func:" yields ("py", "func"); ":ref:" yields ("", "ref").
func (r Reference) SplitRole() (domain, name string) {
	if i := strings.LastIndexByte(r.Role, ':'); i >= 0 {
		return r.Role[:i], r.Role[i+1:]
	}
	return "", r.Role
}

// IsExternal reports whether target points outside the corpus: a URL or an
// address containing '@'.
func IsExternal(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.Contains(target, "@")
}
