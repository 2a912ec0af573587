// Package domain holds the registry of referenceable objects (Python
// symbols, documents, labels, terms, ...) and resolves cross-references
// against it.
//
// A Registry is created empty for each build. During the parse phase
// documents register their objects concurrently; Freeze is called once every
// document has been registered, after which the registry is read-only and
// Resolve may be called from any goroutine without locking.
package domain

import (
	"fmt"
	"maps"
	"slices"

	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Object is a registered named entity.
type Object struct {
	Domain   string          `json:"domain"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Location source.Location `json:"location"`
}

// Status classifies a resolved reference.
type Status int

const (
	StatusValid Status = iota
	StatusBroken
	StatusExternal
	StatusUnknownRole
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusBroken:
		return "broken"
	case StatusExternal:
		return "external"
	case StatusUnknownRole:
		return "unknown_role"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Resolution is the outcome of resolving one reference.
type Resolution struct {
	Reference   refparse.Reference
	Status      Status
	Target      RoleTarget // zero for external references and unknown roles
	Object      *Object    // set when Status is StatusValid
	Suggestions []string   // set when Status is StatusBroken
}

// RoleTarget is what a role resolves against.
type RoleTarget struct {
	Domain string
	Type   string // informational for domains that share one namespace
}

// Table maps role names to domain object types. Keys are either bare roles
// ("func") or domain-qualified roles ("py:func").
type Table map[string]RoleTarget

// DefaultTable returns the built-in roles.
func DefaultTable() Table {
	return Table{
		"doc":    {Domain: "std", Type: "doc"},
		"ref":    {Domain: "std", Type: "label"},
		"numref": {Domain: "std", Type: "label"},
		"term":   {Domain: "std", Type: "term"},
		"envvar": {Domain: "std", Type: "envvar"},
		"option": {Domain: "std", Type: "option"},
		"func":   {Domain: "py", Type: "function"},
		"class":  {Domain: "py", Type: "class"},
		"mod":    {Domain: "py", Type: "module"},
		"meth":   {Domain: "py", Type: "method"},
		"attr":   {Domain: "py", Type: "attribute"},
		"data":   {Domain: "py", Type: "data"},
		"exc":    {Domain: "py", Type: "exception"},
		"obj":    {Domain: "py", Type: "object"},
	}
}

// With returns a copy of t extended with role.
func (t Table) With(role string, target RoleTarget) Table {
	out := maps.Clone(t)
	if out == nil {
		out = Table{}
	}
	out[role] = target
	return out
}

// Lookup maps the role of ref. A domain prefix must agree with the table
// entry of the bare role ("py:func" matches "func" only if that is a py role).
func (t Table) Lookup(role string) (RoleTarget, bool) {
	if rt, ok := t[role]; ok {
		return rt, true
	}
	ref := refparse.Reference{Role: role}
	prefix, name := ref.SplitRole()
	if prefix == "" {
		return RoleTarget{}, false
	}
	rt, ok := t[name]
	if !ok || rt.Domain != prefix {
		return RoleTarget{}, false
	}
	return rt, true
}

// Roles returns the role names in the table, sorted.
func (t Table) Roles() []string {
	return slices.Sorted(maps.Keys(t))
}
