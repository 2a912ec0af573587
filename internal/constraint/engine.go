package constraint

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/docverify/internal/logfields"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/report"
)

// Engine evaluates content items against a fixed rule set. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	rules  map[string]*Rule
	global []*Rule
}

// NewEngine indexes rules by name. Names must be unique.
func NewEngine(rules []*Rule) *Engine {
	e := &Engine{rules: make(map[string]*Rule, len(rules))}
	for _, r := range rules {
		e.rules[r.Name] = r
		if r.Global {
			e.global = append(e.global, r)
		}
	}
	return e
}

// Len returns the number of rules.
func (e *Engine) Len() int { return len(e.rules) }

// Rule returns the rule called name.
func (e *Engine) Rule(name string) (*Rule, bool) {
	r, ok := e.rules[name]
	return r, ok
}

// Outcome is the result of evaluating one item.
type Outcome struct {
	Issues []report.Issue
	// Evaluated counts rule evaluations, passed or failed.
	Evaluated int
	// Failed counts failed rules.
	Failed int
	// FailBuild is set when a failed rule carries ActionFailBuild.
	FailBuild bool
	// Styled is set when a failed rule added a tag the item did not have.
	Styled bool
}

// Evaluate checks item against the rules it lists, in order, followed by
// every global rule it does not list. A failed rule records one issue with
// the rule's severity and runs its actions; style tags are unioned into
// item.Tags. Unknown rule names produce an UnknownConstraint warning.
func (e *Engine) Evaluate(item *parser.ContentItem) Outcome {
	var out Outcome
	seen := make(map[string]bool, len(item.Constraints)+len(e.global))

	for _, name := range item.Constraints {
		if seen[name] {
			continue
		}
		seen[name] = true
		r, ok := e.rules[name]
		if !ok {
			out.Issues = append(out.Issues, report.Issue{
				Code:     report.CodeUnknownConstraint,
				Severity: report.SeverityWarning,
				Location: item.Location,
				Message:  fmt.Sprintf("item %s references unknown constraint %q", item.ID, name),
				Rule:     name,
				ItemID:   item.ID,
			})
			continue
		}
		e.apply(r, item, &out)
	}
	for _, r := range e.global {
		if !seen[r.Name] {
			seen[r.Name] = true
			e.apply(r, item, &out)
		}
	}
	return out
}

func (e *Engine) apply(r *Rule, item *parser.ContentItem, out *Outcome) {
	out.Evaluated++
	passed, err := r.Check(item.Fields)
	if passed {
		return
	}
	out.Failed++

	var undefined *UndefinedFieldError
	errors.As(err, &undefined)
	msg := r.render(item, undefined)
	out.Issues = append(out.Issues, report.Issue{
		Code:     report.CodeConstraintViolation,
		Severity: r.Severity,
		Location: item.Location,
		Message:  msg,
		Rule:     r.Name,
		ItemID:   item.ID,
	})

	for _, a := range r.Actions {
		switch a {
		case ActionWarn:
			slog.Warn("Constraint failed",
				logfields.Rule(r.Name),
				logfields.ItemID(item.ID),
				logfields.Path(item.Location.Path),
				slog.String("message", msg))
		case ActionFailBuild:
			out.FailBuild = true
		case ActionApplyStyle:
			if item.AddTags(r.Styles...) {
				out.Styled = true
			}
		}
	}
}

// messageData is what message templates see.
type messageData struct {
	ID         string
	Title      string
	Type       string
	Rule       string
	Expression string
	Severity   string
	Fields     map[string]any
	Undefined  string
}

func (r *Rule) render(item *parser.ContentItem, undefined *UndefinedFieldError) string {
	def := r.defaultMessage(item, undefined)
	if r.message == nil {
		return def
	}
	data := messageData{
		ID:         item.ID,
		Title:      item.Title,
		Type:       item.Type,
		Rule:       r.Name,
		Expression: r.Expression,
		Severity:   r.Severity.String(),
		Fields:     item.Fields,
	}
	if undefined != nil {
		data.Undefined = undefined.Field
	}
	var b strings.Builder
	if err := r.message.Execute(&b, data); err != nil {
		slog.Debug("Constraint message template failed", logfields.Rule(r.Name), logfields.Error(err))
		return def
	}
	return b.String()
}

func (r *Rule) defaultMessage(item *parser.ContentItem, undefined *UndefinedFieldError) string {
	if undefined != nil {
		return fmt.Sprintf("item %s fails constraint %q: %s", item.ID, r.Name, undefined)
	}
	return fmt.Sprintf("item %s fails constraint %q: %s", item.ID, r.Name, r.Expression)
}
