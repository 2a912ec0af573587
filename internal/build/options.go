package build

import (
	"runtime"

	"git.home.luguber.info/inful/docverify/internal/config"
	"git.home.luguber.info/inful/docverify/internal/domain"
	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/parser"
	"git.home.luguber.info/inful/docverify/internal/report"
)

// Options controls one build.
type Options struct {
	// Workers bounds parallelism in the parse and validate phases.
	Workers int
	Policy  report.Policy
	// RootDoc is the document id exempt from orphan checks.
	RootDoc      string
	CheckOrphans bool
	// CheckDirectives reports unknown directives and malformed arguments,
	// options and content.
	CheckDirectives bool
	// ExtraDirectives are accepted without checks, alongside the built-in
	// directives and the need directives.
	ExtraDirectives []string
	// BrokenSeverity overrides the severity of broken references by role.
	// Roles not listed report SeverityWarning.
	BrokenSeverity map[string]report.Severity
	Roles          domain.Table
	Parser         parser.Options
}

// DefaultOptions returns options with the built-in role table.
func DefaultOptions() Options {
	return Options{
		Workers:         runtime.GOMAXPROCS(0),
		Policy:          report.DefaultPolicy(),
		RootDoc:         config.DefaultRootDoc,
		CheckOrphans:    true,
		CheckDirectives: true,
		Roles:           domain.DefaultTable(),
		Parser: parser.Options{
			NeedDirectives: config.DefaultNeedDirectives,
			RelationFields: config.DefaultRelationFields,
		},
	}
}

// OptionsFromConfig derives build options from a finalized configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg.Build.Workers > 0 {
		opts.Workers = cfg.Build.Workers
	}

	failSeverity, err := report.ParseSeverity(cfg.Build.FailSeverity)
	if err != nil {
		return opts, derrors.ConfigError("invalid build.fail_severity").WithCause(err).Build()
	}
	if cfg.Build.FailSeverity == "" {
		failSeverity = report.SeverityError
	}
	opts.Policy = report.Policy{FailSeverity: failSeverity, FailOnWarning: cfg.Build.FailOnWarning}

	if cfg.Source.RootDoc != "" {
		opts.RootDoc = cfg.Source.RootDoc
	}
	opts.CheckOrphans = cfg.Build.OrphanChecks()
	opts.CheckDirectives = cfg.Build.DirectiveChecks()
	opts.ExtraDirectives = cfg.Source.ExtraDirectives
	if len(cfg.Source.NeedDirectives) > 0 {
		opts.Parser.NeedDirectives = cfg.Source.NeedDirectives
	}
	if len(cfg.Source.RelationFields) > 0 {
		opts.Parser.RelationFields = cfg.Source.RelationFields
	}

	for role, m := range cfg.Roles {
		opts.Roles = opts.Roles.With(role, domain.RoleTarget{Domain: m.Domain, Type: m.Type})
	}
	if len(cfg.References) > 0 {
		opts.BrokenSeverity = make(map[string]report.Severity, len(cfg.References))
		for role, raw := range cfg.References {
			sev, err := report.ParseSeverity(raw)
			if err != nil {
				return opts, derrors.ConfigError("invalid reference severity").
					WithCause(err).WithContext("role", role).Build()
			}
			opts.BrokenSeverity[role] = sev
		}
	}
	return opts, nil
}

// brokenSeverity returns the severity for a broken reference with role.
// A domain-qualified role falls back to its bare name.
func (o Options) brokenSeverity(role string) report.Severity {
	if sev, ok := o.BrokenSeverity[role]; ok {
		return sev
	}
	for i := len(role) - 1; i >= 0; i-- {
		if role[i] == ':' {
			if sev, ok := o.BrokenSeverity[role[i+1:]]; ok {
				return sev
			}
			break
		}
	}
	return report.SeverityWarning
}
