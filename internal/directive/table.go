// Package directive checks the written shape of directives against a table
// of known directives: whether an argument or content block is expected and
// which options are accepted.
package directive

import (
	"maps"
	"slices"
	"strings"
)

// ArgMode says whether a directive takes an argument after "name::".
type ArgMode int

const (
	ArgNone ArgMode = iota
	ArgOptional
	ArgRequired
)

// ContentMode says whether a directive takes an indented content block.
type ContentMode int

const (
	ContentNone ContentMode = iota
	ContentOptional
	ContentRequired
)

// OptionKind constrains an option value: any text, no value at all, a
// non-negative integer, or one of Option.Choices.
type OptionKind int

const (
	OptText OptionKind = iota
	OptFlag
	OptInt
	OptChoice
)

// Option describes one accepted option.
type Option struct {
	Kind    OptionKind
	Choices []string
}

// Definition is the accepted shape of one directive.
type Definition struct {
	Arg     ArgMode
	Content ContentMode
	// InlineContent means text after "name::" starts the content block, as
	// in ".. note:: Mind the gap."
	InlineContent bool
	Options       map[string]Option
	// AnyOption accepts options not listed in Options. Object and need
	// directives carry free-form fields.
	AnyOption bool
}

// Table maps lower-case directive names to their definitions.
type Table map[string]Definition

// Names returns the directive names in lexical order.
func (t Table) Names() []string {
	return slices.Sorted(maps.Keys(t))
}

// With returns a copy of t where each name not already known accepts any
// argument, option and content.
func (t Table) With(names ...string) Table {
	out := maps.Clone(t)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := out[n]; !ok {
			out[n] = free
		}
	}
	return out
}

var (
	text = Option{Kind: OptText}
	flag = Option{Kind: OptFlag}
	num  = Option{Kind: OptInt}

	free = Definition{Arg: ArgOptional, Content: ContentOptional, AnyOption: true}
)

func choice(values ...string) Option {
	return Option{Kind: OptChoice, Choices: values}
}

// opts merges option sets; later sets win.
func opts(sets ...map[string]Option) map[string]Option {
	out := map[string]Option{}
	for _, s := range sets {
		maps.Copy(out, s)
	}
	return out
}

// common options accepted by nearly every docutils directive.
var common = map[string]Option{"class": text, "name": text}

var imageOptions = map[string]Option{
	"alt":     text,
	"height":  text,
	"width":   text,
	"scale":   num,
	"align":   choice("left", "center", "right", "top", "middle", "bottom"),
	"target":  text,
	"loading": choice("embed", "link", "lazy"),
}

var includeRange = map[string]Option{
	"start-line":  num,
	"end-line":    num,
	"start-after": text,
	"end-before":  text,
	"encoding":    text,
	"tab-width":   num,
}

var codeOptions = map[string]Option{
	"linenos":         flag,
	"lineno-start":    num,
	"emphasize-lines": text,
	"caption":         text,
	"dedent":          text,
	"force":           flag,
}

var tableOptions = map[string]Option{
	"header-rows":  num,
	"stub-columns": num,
	"widths":       text,
	"width":        text,
	"align":        choice("left", "center", "right"),
}

// Builtin returns the docutils and Sphinx directives the parser knows about.
// Need directives and project extensions are added with Table.With.
func Builtin() Table {
	t := Table{}

	admonition := Definition{Content: ContentRequired, InlineContent: true, Options: common}
	for _, n := range []string{"attention", "caution", "danger", "error", "hint", "important", "note", "tip", "warning", "seealso"} {
		t[n] = admonition
	}
	t["admonition"] = Definition{Arg: ArgRequired, Content: ContentRequired, Options: common}
	t["versionadded"] = Definition{Arg: ArgRequired, Content: ContentOptional, Options: common}
	t["versionchanged"] = t["versionadded"]
	t["versionremoved"] = t["versionadded"]
	t["deprecated"] = t["versionadded"]

	t["toctree"] = Definition{Content: ContentOptional, Options: opts(common, map[string]Option{
		"maxdepth":      num,
		"numbered":      text,
		"titlesonly":    flag,
		"glob":          flag,
		"reversed":      flag,
		"hidden":        flag,
		"includehidden": flag,
		"caption":       text,
	})}
	t["glossary"] = Definition{Content: ContentRequired, Options: opts(common, map[string]Option{"sorted": flag})}

	code := Definition{Arg: ArgOptional, Content: ContentRequired, Options: opts(common, codeOptions)}
	t["code-block"] = code
	t["sourcecode"] = code
	t["code"] = Definition{Arg: ArgOptional, Content: ContentRequired, Options: opts(common, map[string]Option{"number-lines": text})}
	t["highlight"] = Definition{Arg: ArgRequired, Options: map[string]Option{"linenothreshold": num, "force": flag}}
	t["literalinclude"] = Definition{Arg: ArgRequired, Options: opts(common, codeOptions, includeRange, map[string]Option{
		"language": text,
		"lines":    text,
		"prepend":  text,
		"append":   text,
		"pyobject": text,
		"diff":     text,
	})}
	t["include"] = Definition{Arg: ArgRequired, Options: opts(includeRange, map[string]Option{
		"literal":      flag,
		"code":         text,
		"number-lines": text,
		"parser":       text,
	})}
	t["raw"] = Definition{Arg: ArgRequired, Content: ContentOptional, Options: opts(common, map[string]Option{
		"file":     text,
		"url":      text,
		"encoding": text,
	})}
	t["math"] = Definition{Content: ContentRequired, InlineContent: true, Options: opts(common, map[string]Option{
		"label":  text,
		"nowrap": flag,
	})}

	t["image"] = Definition{Arg: ArgRequired, Options: opts(common, imageOptions)}
	t["figure"] = Definition{Arg: ArgRequired, Content: ContentOptional, Options: opts(common, imageOptions, map[string]Option{
		"figwidth": text,
		"figclass": text,
	})}

	t["table"] = Definition{Arg: ArgOptional, Content: ContentRequired, Options: opts(common, tableOptions)}
	t["list-table"] = t["table"]
	t["csv-table"] = Definition{Arg: ArgOptional, Content: ContentOptional, Options: opts(common, tableOptions, map[string]Option{
		"header":    text,
		"file":      text,
		"url":       text,
		"encoding":  text,
		"delim":     text,
		"quote":     text,
		"escape":    text,
		"keepspace": flag,
	})}

	t["topic"] = Definition{Arg: ArgRequired, Content: ContentRequired, Options: common}
	t["sidebar"] = Definition{Arg: ArgOptional, Content: ContentRequired, Options: opts(common, map[string]Option{"subtitle": text})}
	t["rubric"] = Definition{Arg: ArgRequired, Options: common}
	t["centered"] = Definition{Arg: ArgRequired}
	t["only"] = Definition{Arg: ArgRequired, Content: ContentRequired}
	t["hlist"] = Definition{Content: ContentRequired, Options: map[string]Option{"columns": num}}
	t["contents"] = Definition{Arg: ArgOptional, Options: opts(common, map[string]Option{
		"depth":     num,
		"local":     flag,
		"backlinks": choice("entry", "top", "none"),
	})}
	t["sectnum"] = Definition{Options: map[string]Option{"depth": num, "prefix": text, "suffix": text, "start": num}}
	t["index"] = Definition{Arg: ArgOptional, Content: ContentOptional, Options: map[string]Option{"name": text}}
	for _, n := range []string{"container", "compound", "epigraph", "highlights", "pull-quote", "line-block", "parsed-literal"} {
		t[n] = Definition{Arg: ArgOptional, Content: ContentRequired, Options: common}
	}
	for _, n := range []string{"sectionauthor", "codeauthor", "default-role", "default-domain", "tabularcolumns", "title"} {
		t[n] = Definition{Arg: ArgRequired}
	}
	t["productionlist"] = Definition{Arg: ArgOptional, Content: ContentRequired}
	t["meta"] = Definition{Content: ContentRequired, AnyOption: true}
	t["role"] = Definition{Arg: ArgRequired, Content: ContentOptional, AnyOption: true}

	// Object directives. Sphinx accepts a long and extension-defined list of
	// options (:module:, :no-index:, :async:, ...), so options are not checked.
	object := Definition{Arg: ArgRequired, Content: ContentOptional, AnyOption: true}
	for _, n := range []string{"module", "currentmodule", "function", "decorator", "class", "exception",
		"method", "classmethod", "staticmethod", "attribute", "property", "data", "type"} {
		t[n] = object
		t["py:"+n] = object
	}
	t["py:decoratormethod"] = object
	t["envvar"] = object
	t["option"] = object
	t["program"] = object
	t["describe"] = object
	t["object"] = object
	for _, n := range []string{"automodule", "autoclass", "autofunction", "automethod", "autoattribute", "autoexception", "autodata"} {
		t[n] = object
	}
	return t
}
