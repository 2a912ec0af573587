package domain

import (
	"path"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Source extensions stripped from :doc: targets.
var docExtensions = []string{".rst", ".md", ".markdown", ".txt"}

// StdDomain covers documents, labels, glossary terms, environment
// variables and command-line options. Each object type is its own
// namespace. Labels and terms are matched case-insensitively.
type StdDomain struct{}

func (StdDomain) Name() string { return "std" }

func (StdDomain) Scope(objType string) string { return objType }

// RegisterObjects registers the document itself plus its std declarations.
func (d StdDomain) RegisterObjects(reg *Registry, doc *parser.Document) error {
	if err := reg.RegisterObject(d.Name(), "doc", doc.ID, source.Location{Path: doc.Path}); err != nil {
		return err
	}
	return registerDeclared(reg, doc, d.Name())
}

func (d StdDomain) ValidateReference(reg *Registry, ref refparse.Reference, rt RoleTarget) Resolution {
	for _, candidate := range d.candidates(ref, rt) {
		if o, ok := reg.Lookup(d.Name(), rt.Type, candidate); ok {
			return Resolution{Status: StatusValid, Object: &o}
		}
	}
	return Resolution{Status: StatusBroken}
}

func (d StdDomain) Suggestions(reg *Registry, rt RoleTarget, ref refparse.Reference) []string {
	candidates := d.candidates(ref, rt)
	if len(candidates) == 0 {
		return nil
	}
	return Rank(candidates[0], reg.Names(d.Name(), rt.Type))
}

// candidates lists the names a target may denote, most specific first.
func (d StdDomain) candidates(ref refparse.Reference, rt RoleTarget) []string {
	target := strings.TrimSpace(ref.Target)
	switch rt.Type {
	case "doc":
		return DocCandidates(ref.DocID, target)
	case "label", "term":
		return []string{strings.ToLower(target)}
	default:
		return []string{target}
	}
}

// DocCandidates resolves a :doc: or toctree target written in document
// from. Relative targets are tried relative to from's directory first, then
// from the corpus root; a leading '/' means root-relative only.
func DocCandidates(from, target string) []string {
	target = strings.TrimSpace(target)
	for _, ext := range docExtensions {
		if strings.HasSuffix(target, ext) {
			target = strings.TrimSuffix(target, ext)
			break
		}
	}
	if strings.HasPrefix(target, "/") {
		return []string{path.Clean(strings.TrimPrefix(target, "/"))}
	}
	var out []string
	for _, c := range []string{path.Join(path.Dir(from), target), path.Clean(target)} {
		if c == ".." || strings.HasPrefix(c, "../") || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
