package config

import (
	"sort"

	derrors "git.home.luguber.info/inful/docverify/internal/foundation/errors"
	"git.home.luguber.info/inful/docverify/internal/report"
	"git.home.luguber.info/inful/docverify/internal/retry"
)

// Validate checks the configuration after defaults have been applied. The
// first problem found is returned as a fatal ConfigError. Constraint
// expressions are compiled separately when the constraint engine is built.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, check := range []func() error{
		v.validateBuild,
		v.validateCache,
		v.validateRoles,
		v.validateReferences,
		v.validateConstraints,
		v.validatePublish,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validateBuild() error {
	if cv.config.Build.Workers < 0 {
		return derrors.ConfigError("build.workers must not be negative").
			WithContext("workers", cv.config.Build.Workers).
			Build()
	}
	if _, err := report.ParseSeverity(cv.config.Build.FailSeverity); err != nil {
		return derrors.ConfigError("invalid build.fail_severity").WithCause(err).Build()
	}
	return nil
}

func (cv *configurationValidator) validateCache() error {
	if cv.config.Cache.MaxItems == 0 || cv.config.Cache.MaxBytes == 0 {
		return derrors.ConfigError("cache budgets must be positive after defaults").Build()
	}
	return nil
}

func (cv *configurationValidator) validateRoles() error {
	for _, role := range sortedKeys(cv.config.Roles) {
		m := cv.config.Roles[role]
		if m.Domain == "" || m.Type == "" {
			return derrors.ConfigError("role mapping requires domain and type").
				WithContext("role", role).
				Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateReferences() error {
	for _, role := range sortedKeys(cv.config.References) {
		if _, err := report.ParseSeverity(cv.config.References[role]); err != nil {
			return derrors.ConfigError("invalid broken-reference severity").
				WithCause(err).
				WithContext("role", role).
				Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validateConstraints() error {
	seen := make(map[string]bool, len(cv.config.Constraints))
	for i, rule := range cv.config.Constraints {
		if rule.Name == "" {
			return derrors.ConfigError("constraint name cannot be empty").
				WithContext("index", i).
				Build()
		}
		if seen[rule.Name] {
			return derrors.ConfigError("duplicate constraint name").
				WithContext("rule", rule.Name).
				Build()
		}
		seen[rule.Name] = true
		if rule.Expression == "" {
			return derrors.ConfigError("constraint expression cannot be empty").
				WithContext("rule", rule.Name).
				Build()
		}
		if _, err := report.ParseSeverity(rule.Severity); err != nil {
			return derrors.ConfigError("invalid constraint severity").
				WithCause(err).
				WithContext("rule", rule.Name).
				Build()
		}
	}
	return nil
}

func (cv *configurationValidator) validatePublish() error {
	p := cv.config.Publish
	if p.Retries < 0 {
		return derrors.ConfigError("publish.retries must not be negative").
			WithContext("retries", p.Retries).
			Build()
	}
	if _, err := retry.ParseMode(p.Backoff); err != nil {
		return derrors.ConfigError("invalid publish.backoff").WithCause(err).Build()
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
