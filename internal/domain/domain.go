package domain

import (
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/refparse"
)

// Domain is a named category of referenceable objects with its own
// registration, resolution and suggestion rules. The set of domains is fixed
// at build time; roles reach them through a Table.
type Domain interface {
	// Name is the domain prefix used in roles and objects ("py", "std").
	Name() string
	// Scope returns the namespace objType lives in. Objects in different
	// scopes may share a name without conflict.
	Scope(objType string) string
	// RegisterObjects registers the objects of doc that belong to this domain.
	RegisterObjects(reg *Registry, doc *parser.Document) error
	// ValidateReference resolves ref against the frozen registry.
	ValidateReference(reg *Registry, ref refparse.Reference, rt RoleTarget) Resolution
	// Suggestions ranks registered names for an unresolved ref.
	Suggestions(reg *Registry, rt RoleTarget, ref refparse.Reference) []string
}

func registerDeclared(reg *Registry, doc *parser.Document, domain string) error {
	for _, o := range doc.Objects {
		if o.Domain != domain {
			continue
		}
		if err := reg.RegisterObject(o.Domain, o.Type, o.Name, o.Location); err != nil {
			return err
		}
	}
	return nil
}
