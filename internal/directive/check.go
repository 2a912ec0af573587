package directive

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/domain"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/source"
)

// Kind classifies a Problem.
type Kind int

const (
	// UnknownDirective is a directive name missing from the table.
	UnknownDirective Kind = iota
	// InvalidOption is an option the directive does not accept, or a value
	// of the wrong kind.
	InvalidOption
	// InvalidShape is a missing or unexpected argument or content block.
	InvalidShape
)

// Problem is one structural defect of a directive use.
type Problem struct {
	Kind        Kind
	Location    source.Location
	Message     string
	Suggestions []string
}

// Check returns the problems of one directive use, in source order.
func (t Table) Check(u parser.DirectiveUse) []Problem {
	def, ok := t[u.Name]
	if !ok {
		return []Problem{{
			Kind:        UnknownDirective,
			Location:    u.Location,
			Message:     fmt.Sprintf("unknown directive %q", u.Name),
			Suggestions: domain.Rank(u.Name, t.Names()),
		}}
	}

	var out []Problem
	shape := func(format string) {
		out = append(out, Problem{Kind: InvalidShape, Location: u.Location, Message: fmt.Sprintf(format, u.Name)})
	}
	hasArg := strings.TrimSpace(u.Arg) != ""
	hasContent := u.HasContent
	if def.InlineContent {
		hasContent = hasContent || hasArg
		hasArg = false
	}
	switch {
	case def.Arg == ArgRequired && !hasArg:
		shape("directive %q requires an argument")
	case def.Arg == ArgNone && hasArg:
		shape("directive %q takes no argument")
	}
	switch {
	case def.Content == ContentRequired && !hasContent:
		shape("directive %q requires content")
	case def.Content == ContentNone && hasContent:
		shape("directive %q does not allow content")
	}

	if def.AnyOption {
		return out
	}
	for _, o := range u.Options {
		loc := source.Location{Path: u.Location.Path, Line: o.Line}
		od, ok := def.Options[o.Name]
		if !ok {
			out = append(out, Problem{
				Kind:        InvalidOption,
				Location:    loc,
				Message:     fmt.Sprintf("unknown option %q for directive %q", o.Name, u.Name),
				Suggestions: domain.Rank(o.Name, optionNames(def)),
			})
			continue
		}
		if msg := checkValue(od, strings.TrimSpace(o.Value)); msg != "" {
			out = append(out, Problem{
				Kind:     InvalidOption,
				Location: loc,
				Message:  fmt.Sprintf("option %q of directive %q %s", o.Name, u.Name, msg),
			})
		}
	}
	return out
}

// CheckAll checks every directive recorded in doc.
func (t Table) CheckAll(doc *parser.Document) []Problem {
	var out []Problem
	for _, u := range doc.Directives {
		out = append(out, t.Check(u)...)
	}
	return out
}

func checkValue(o Option, v string) string {
	switch o.Kind {
	case OptFlag:
		if v != "" {
			return "takes no value"
		}
	case OptInt:
		if _, err := strconv.ParseUint(v, 10, 32); err != nil {
			return fmt.Sprintf("must be a non-negative integer, got %q", v)
		}
	case OptChoice:
		if !slices.Contains(o.Choices, strings.ToLower(v)) {
			return fmt.Sprintf("must be one of %s, got %q", strings.Join(o.Choices, ", "), v)
		}
	}
	return ""
}

func optionNames(def Definition) []string {
	names := make([]string, 0, len(def.Options))
	for n := range def.Options {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
