package parser

import (
	"slices"

	"git.home.luguber.info/inful/docverify/internal/refparse"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Document is the structural representation of one parsed file.
type Document struct {
	ID         string               `json:"id"`
	Path       string               `json:"path"`
	Title      string               `json:"title,omitempty"`
	Headings   []Heading            `json:"headings,omitempty"`
	Toctree    []TocEntry           `json:"toctree,omitempty"`
	References []refparse.Reference `json:"references,omitempty"`
	Items      []ContentItem        `json:"items,omitempty"`
	Objects    []Object             `json:"objects,omitempty"`
	Labels     []Label              `json:"labels,omitempty"`
	Directives []DirectiveUse       `json:"directives,omitempty"`
	Warnings   []source.Warning     `json:"warnings,omitempty"`
	// SourceBytes is the size of the content the document was parsed from.
	SourceBytes int64 `json:"source_bytes"`
}

// Heading is a section title.
type Heading struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Line  int    `json:"line"`
}

// TocEntry is one child listed in a toctree.
type TocEntry struct {
	Target   string          `json:"target"`
	Glob     bool            `json:"glob,omitempty"` // Target is a doublestar pattern over document ids
	Location source.Location `json:"location"`
}

// Label is an explicit link target. Title is the heading it precedes, if any.
type Label struct {
	Name     string          `json:"name"`
	Title    string          `json:"title,omitempty"`
	Location source.Location `json:"location"`
}

// DirectiveUse records a directive as written: its argument, options and
// whether a content block follows.
type DirectiveUse struct {
	Name       string            `json:"name"`
	Arg        string            `json:"arg,omitempty"`
	Options    []DirectiveOption `json:"options,omitempty"`
	HasContent bool              `json:"has_content,omitempty"`
	Location   source.Location   `json:"location"`
}

// DirectiveOption is one ":name: value" line of a directive.
type DirectiveOption struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Line  int    `json:"line"`
}

// Object is a named entity declared by the document, such as a Python
// function or an environment variable.
type Object struct {
	Domain   string          `json:"domain"`
	Type     string          `json:"type"`
	Name     string          `json:"name"`
	Location source.Location `json:"location"`
}

// ContentItem is a requirement-like record declared by a need directive.
type ContentItem struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Title       string              `json:"title,omitempty"`
	Fields      map[string]any      `json:"fields"`
	Constraints []string            `json:"constraints,omitempty"`
	Relations   map[string][]string `json:"relations,omitempty"`
	Tags        []string            `json:"tags,omitempty"` // sorted, unique
	Location    source.Location     `json:"location"`
}

// AddTags unions tags into the item's tag set and reports whether anything
// was added.
func (c *ContentItem) AddTags(tags ...string) bool {
	changed := false
	for _, t := range tags {
		i, found := slices.BinarySearch(c.Tags, t)
		if found {
			continue
		}
		c.Tags = slices.Insert(c.Tags, i, t)
		changed = true
	}
	return changed
}

// Clone returns a copy that can be mutated without affecting cached documents.
func (c ContentItem) Clone() ContentItem {
	out := c
	out.Fields = make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		if list, ok := v.([]string); ok {
			v = slices.Clone(list)
		}
		out.Fields[k] = v
	}
	out.Constraints = slices.Clone(c.Constraints)
	out.Tags = slices.Clone(c.Tags)
	if c.Relations != nil {
		out.Relations = make(map[string][]string, len(c.Relations))
		for k, v := range c.Relations {
			out.Relations[k] = slices.Clone(v)
		}
	}
	return out
}

// EstimatedSize approximates the memory held by the document, for cache budgets.
func (d *Document) EstimatedSize() int64 {
	const perRecord = 128
	n := len(d.Headings) + len(d.Toctree) + len(d.References) + len(d.Items) +
		len(d.Objects) + len(d.Labels) + len(d.Directives) + len(d.Warnings)
	return d.SourceBytes + int64(n*perRecord)
}
