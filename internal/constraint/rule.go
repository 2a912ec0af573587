package constraint

import (
	"fmt"
	"slices"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/docverify/internal/config"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/foundation/normalization"
	"git.home.luguber.info/inful/docverify/internal/report"
)

// Action is what happens when a rule fails, in addition to the issue that
// is always recorded.
type Action int

const (
	// ActionWarn logs the failure.
	ActionWarn Action = iota
	// ActionFailBuild forces a failing verdict regardless of severity.
	ActionFailBuild
	// ActionApplyStyle adds the rule's styles to the item's tag set.
	ActionApplyStyle
)

func (a Action) String() string {
	switch a {
	case ActionWarn:
		return "warn"
	case ActionFailBuild:
		return "fail_build"
	case ActionApplyStyle:
		return "apply_style"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

var actionNormalizer = normalization.NewNormalizer("constraint action", map[string]Action{
	"warn":        ActionWarn,
	"fail_build":  ActionFailBuild,
	"break":       ActionFailBuild,
	"apply_style": ActionApplyStyle,
	"style":       ActionApplyStyle,
}, ActionWarn)

// ParseAction converts a configured action name.
func ParseAction(raw string) (Action, error) {
	return actionNormalizer.Parse(raw)
}

// Rule is a compiled constraint rule. Rules are immutable once built.
type Rule struct {
	Name       string
	Expression string
	Severity   report.Severity
	Actions    []Action
	Styles     []string
	Global     bool

	expr    Expr
	message *template.Template
}

// Has reports whether the rule carries action a.
func (r *Rule) Has(a Action) bool { return slices.Contains(r.Actions, a) }

// Check evaluates the rule against fields.
func (r *Rule) Check(fields map[string]any) (bool, error) {
	return r.expr.Eval(fields)
}

// NewRule compiles one configured rule. Rules without actions warn. Styles
// imply apply_style.
func NewRule(cfg config.ConstraintConfig) (*Rule, error) {
	fail := func(msg string, cause error) error {
		b := derrors.ConfigError(msg).WithContext("rule", cfg.Name)
		if cause != nil {
			b = b.WithCause(cause)
		}
		return b.Build()
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fail("constraint name cannot be empty", nil)
	}
	expr, err := Parse(cfg.Expression)
	if err != nil {
		return nil, fail(fmt.Sprintf("invalid expression for constraint %q", name), err)
	}
	sev, err := report.ParseSeverity(cfg.Severity)
	if err != nil {
		return nil, fail(fmt.Sprintf("invalid severity for constraint %q", name), err)
	}

	r := &Rule{
		Name:       name,
		Expression: cfg.Expression,
		Severity:   sev,
		Styles:     slices.Clone(cfg.Styles),
		Global:     cfg.Global,
		expr:       expr,
	}
	for _, raw := range cfg.Actions {
		a, err := ParseAction(raw)
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid action for constraint %q", name), err)
		}
		if !r.Has(a) {
			r.Actions = append(r.Actions, a)
		}
	}
	if len(r.Styles) > 0 && !r.Has(ActionApplyStyle) {
		r.Actions = append(r.Actions, ActionApplyStyle)
	}
	if r.Has(ActionApplyStyle) && len(r.Styles) == 0 {
		return nil, fail(fmt.Sprintf("constraint %q uses apply_style without styles", name), nil)
	}
	if len(r.Actions) == 0 {
		r.Actions = []Action{ActionWarn}
	}

	if cfg.Message != "" {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(cfg.Message)
		if err != nil {
			return nil, fail(fmt.Sprintf("invalid message template for constraint %q", name), err)
		}
		r.message = tmpl
	}
	return r, nil
}

// RulesFromConfig compiles every configured rule. The first invalid rule
// aborts with a ConfigError.
func RulesFromConfig(cfgs []config.ConstraintConfig) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		r, err := NewRule(c)
		if err != nil {
			return nil, err
		}
		if seen[r.Name] {
			return nil, derrors.ConfigError("duplicate constraint name").WithContext("rule", r.Name).Build()
		}
		seen[r.Name] = true
		rules = append(rules, r)
	}
	return rules, nil
}
