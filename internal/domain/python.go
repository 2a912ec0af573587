package domain

import (
	"strings"

	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/refparse"
)

// PythonDomain resolves Python symbols by exact qualified name. Modules,
// classes, functions and attributes share one namespace, so :func: may point
// at any object type.
type PythonDomain struct{}

func (PythonDomain) Name() string { return "py" }

func (PythonDomain) Scope(string) string { return "" }

func (d PythonDomain) RegisterObjects(reg *Registry, doc *parser.Document) error {
	return registerDeclared(reg, doc, d.Name())
}

func (d PythonDomain) ValidateReference(reg *Registry, ref refparse.Reference, rt RoleTarget) Resolution {
	if o, ok := reg.Lookup(d.Name(), rt.Type, pyTarget(ref.Target)); ok {
		return Resolution{Status: StatusValid, Object: &o}
	}
	return Resolution{Status: StatusBroken}
}

func (d PythonDomain) Suggestions(reg *Registry, rt RoleTarget, ref refparse.Reference) []string {
	return Rank(pyTarget(ref.Target), reg.Names(d.Name(), rt.Type))
}

// pyTarget drops call parentheses and a leading dot ("pkg.run()" -> "pkg.run").
func pyTarget(t string) string {
	t = strings.TrimSuffix(strings.TrimSpace(t), "()")
	return strings.TrimPrefix(t, ".")
}
