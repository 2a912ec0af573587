package parser

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/refparse"
)

type option struct {
	Name  string
	Value string
	Line  int
}

type contentLine struct {
	No   int
	Text string // original line, indentation included
}

// directive is one parsed directive block, shared by the RST and Markdown
// front ends.
type directive struct {
	Name    string
	Arg     string
	Line    int
	Column  int
	Options []option
	Content []contentLine
}

func (d *directive) option(name string) (option, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return option{}, false
}

// Directives whose content is never scanned for references.
var literalDirectives = map[string]bool{
	"code-block":     true,
	"code":           true,
	"sourcecode":     true,
	"raw":            true,
	"math":           true,
	"highlight":      true,
	"literalinclude": true,
}

// consumesContent reports whether the directive handler owns the content
// lines. Other directives leave their content to the enclosing parser so
// nested directives (methods inside a class) are seen.
func (p *Parser) consumesContent(name string) bool {
	return literalDirectives[name] || name == "toctree" || name == "glossary" || p.needs.Has(name)
}

// record keeps the directive's written shape for structural checks.
func (s *docState) record(d *directive, hasContent bool) {
	use := DirectiveUse{
		Name:       d.Name,
		Arg:        d.Arg,
		HasContent: hasContent,
		Location:   s.loc(d.Line, d.Column),
	}
	for _, o := range d.Options {
		use.Options = append(use.Options, DirectiveOption{Name: o.Name, Value: o.Value, Line: o.Line})
	}
	s.doc.Directives = append(s.doc.Directives, use)
}

func (s *docState) directive(d *directive) {
	name := d.Name
	if s.p.needs.Has(name) {
		s.item(d)
		return
	}

	switch strings.TrimPrefix(name, "py:") {
	case "toctree":
		s.toctree(d)
	case "glossary":
		s.glossary(d)
	case "envvar":
		s.object("std", "envvar", strings.TrimSpace(d.Arg), d.Line, d.Column)
	case "option":
		for _, part := range strings.Split(d.Arg, ",") {
			if fields := strings.Fields(part); len(fields) > 0 {
				s.object("std", "option", fields[0], d.Line, d.Column)
			}
		}
	case "module":
		s.module = pyName(d.Arg)
		s.class = ""
		s.object("py", "module", s.module, d.Line, d.Column)
	case "currentmodule":
		s.module = pyName(d.Arg)
		if s.module == "None" {
			s.module = ""
		}
		s.class = ""
	case "function", "decorator":
		s.object("py", "function", s.qualify(pyName(d.Arg), false), d.Line, d.Column)
	case "class", "exception":
		qualified := s.qualify(pyName(d.Arg), false)
		s.class = qualified
		s.object("py", strings.TrimPrefix(name, "py:"), qualified, d.Line, d.Column)
	case "method", "classmethod", "staticmethod":
		s.object("py", "method", s.qualify(pyName(d.Arg), true), d.Line, d.Column)
	case "attribute", "property":
		s.object("py", "attribute", s.qualify(pyName(d.Arg), true), d.Line, d.Column)
	case "data":
		s.object("py", "data", s.qualify(pyName(d.Arg), false), d.Line, d.Column)
	}
}

// pyName extracts the dotted name from a Python directive argument such as
// "connect(host, port=5432) -> Conn".
func pyName(arg string) string {
	arg = strings.TrimSpace(arg)
	for _, prefix := range []string{"async ", "final "} {
		arg = strings.TrimPrefix(arg, prefix)
	}
	if i := strings.IndexAny(arg, "( :=["); i >= 0 {
		arg = arg[:i]
	}
	return arg
}

func (s *docState) qualify(name string, nested bool) string {
	if name == "" {
		return ""
	}
	if nested && s.class != "" && !strings.Contains(name, ".") {
		return s.class + "." + name
	}
	if s.module != "" && !strings.HasPrefix(name, s.module+".") {
		return s.module + "." + name
	}
	return name
}

func (s *docState) toctree(d *directive) {
	_, glob := d.option("glob")
	for _, cl := range d.Content {
		entry := strings.TrimSpace(cl.Text)
		if entry == "" || strings.HasPrefix(entry, ":") {
			continue
		}
		target := entry
		if strings.HasSuffix(entry, ">") {
			if lt := strings.LastIndexByte(entry, '<'); lt >= 0 {
				target = strings.TrimSpace(entry[lt+1 : len(entry)-1])
			}
		}
		if target == "self" || refparse.IsExternal(target) {
			continue
		}
		s.doc.Toctree = append(s.doc.Toctree, TocEntry{
			Target:   target,
			Glob:     glob && strings.ContainsAny(target, "*?["),
			Location: s.loc(cl.No, indentOf(cl.Text)+1),
		})
	}
}

// glossary registers every term line: content lines at the shallowest
// indentation. Deeper lines are definitions.
func (s *docState) glossary(d *directive) {
	base := -1
	for _, cl := range d.Content {
		if strings.TrimSpace(cl.Text) == "" {
			continue
		}
		if ind := indentOf(cl.Text); base < 0 || ind < base {
			base = ind
		}
	}
	for _, cl := range d.Content {
		text := strings.TrimSpace(cl.Text)
		if text == "" {
			continue
		}
		if indentOf(cl.Text) != base {
			s.scan(cl.No, cl.Text)
			continue
		}
		if i := strings.Index(text, " : "); i >= 0 {
			text = text[:i]
		}
		s.object("std", "term", strings.ToLower(text), cl.No, base+1)
	}
}

// item builds a ContentItem from a need directive.
func (s *docState) item(d *directive) {
	for _, cl := range d.Content {
		s.scan(cl.No, cl.Text)
	}
	idOpt, ok := d.option("id")
	if !ok || strings.TrimSpace(idOpt.Value) == "" {
		s.warn(d.Line, fmt.Sprintf("%s directive without :id: is ignored", d.Name))
		return
	}

	item := ContentItem{
		ID:       strings.TrimSpace(idOpt.Value),
		Type:     d.Name,
		Title:    strings.TrimSpace(d.Arg),
		Fields:   map[string]any{},
		Location: s.loc(d.Line, d.Column),
	}
	for _, o := range d.Options {
		s.setField(&item, o.Name, o.Value)
	}
	s.finishItem(&item)
}

// setField stores one raw option value with its inferred type.
func (s *docState) setField(item *ContentItem, name, raw string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if s.isListField(name) {
		s.setList(item, name, splitList(raw))
		return
	}
	item.Fields[name] = typedValue(raw)
}

func (s *docState) isListField(name string) bool {
	return name == "constraints" || name == "tags" || s.p.relations.Has(name)
}

func (s *docState) setList(item *ContentItem, name string, list []string) {
	switch {
	case name == "constraints":
		item.Constraints = list
	case name == "tags":
		item.Fields[name] = list
		item.AddTags(list...)
	case s.p.relations.Has(name):
		if item.Relations == nil {
			item.Relations = map[string][]string{}
		}
		item.Relations[name] = list
		item.Fields[name] = list
	default:
		item.Fields[name] = list
	}
}

func (s *docState) finishItem(item *ContentItem) {
	item.Fields["id"] = item.ID
	item.Fields["type"] = item.Type
	if _, ok := item.Fields["title"]; !ok {
		item.Fields["title"] = item.Title
	}
	s.doc.Items = append(s.doc.Items, *item)
	s.content()
}

// typedValue infers bool, int64, float64 or string from an option value.
func typedValue(raw string) any {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if v != "" && strings.IndexFunc(v, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// splitList splits comma or semicolon separated values, dropping empties.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// parseOption matches ":name: value" (value may be empty).
func parseOption(text string) (name, value string, ok bool) {
	t := strings.TrimSpace(text)
	if len(t) < 3 || t[0] != ':' {
		return "", "", false
	}
	end := strings.IndexByte(t[1:], ':')
	if end <= 0 {
		return "", "", false
	}
	name = t[1 : end+1]
	if strings.ContainsAny(name, " `\t") {
		return "", "", false
	}
	rest := t[end+2:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", "", false
	}
	return name, strings.TrimSpace(rest), true
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
